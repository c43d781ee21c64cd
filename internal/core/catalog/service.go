// Package catalog persists validated rule sets in a database so translation
// runs can reference them by name instead of shipping rule files around.
// Rule sets are validated (compiled and dependency-resolved) before storage;
// the catalog never holds a rule set that cannot execute.
package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/fieldbridge/internal/core/db"
	"github.com/solatis/fieldbridge/internal/rules"
	"github.com/solatis/fieldbridge/internal/types"
)

// ErrRuleSetNotFound indicates the named rule set does not exist in the catalog.
var ErrRuleSetNotFound = errors.New("rule set not found")

// ErrRuleSetExists indicates a rule set with the same name is already stored.
var ErrRuleSetExists = errors.New("rule set already exists")

// RuleSetInfo describes a stored rule set without loading its rules.
type RuleSetInfo struct {
	RuleSetID types.RuleSetID `db:"rule_set_id"`
	Name      string          `db:"name"`
	Revision  string          `db:"revision"`
	RuleCount int             `db:"rule_count"`
	CreatedAt string          `db:"created_at"`
}

// storedRule is the row shape for the rules table.
type storedRule struct {
	Position int    `db:"position"`
	Name     string `db:"name"`
	Version  int    `db:"version"`
	Spec     string `db:"spec"`
}

// Service provides rule-set storage and retrieval.
type Service struct {
	database *sqlx.DB
	queries  *db.Queries
}

// NewService creates a catalog service backed by the given database.
func NewService(database *sqlx.DB, queries *db.Queries) (*Service, error) {
	if database == nil {
		return nil, errors.New("database is required")
	}
	if queries == nil {
		return nil, errors.New("queries are required")
	}
	return &Service{database: database, queries: queries}, nil
}

// ImportRuleSet validates a JSON rule-set document and stores it under name.
// The whole document is rejected if any rule fails validation or the set
// cannot be dependency-resolved. Returns the stored rule set's metadata.
func (s *Service) ImportRuleSet(ctx context.Context, name string, raw []byte) (RuleSetInfo, error) {
	if name == "" {
		return RuleSetInfo{}, errors.New("rule set name is required")
	}

	ruleSet, err := rules.FromJSON(raw)
	if err != nil {
		return RuleSetInfo{}, fmt.Errorf("invalid rule set: %w", err)
	}
	if len(ruleSet) == 0 {
		return RuleSetInfo{}, errors.New("rule set is empty")
	}
	if len(ruleSet) > types.MaxRuleSetSize {
		return RuleSetInfo{}, types.ErrRuleSetTooLarge
	}

	// Resolution is the last validation gate: unresolved or cyclic
	// dependencies must never reach storage.
	if _, err := rules.ResolveOrder(ruleSet); err != nil {
		return RuleSetInfo{}, fmt.Errorf("invalid rule set: %w", err)
	}

	var existing RuleSetInfo
	err = s.queries.Get(ctx, "get-rule-set", &existing, name)
	if err == nil {
		return RuleSetInfo{}, fmt.Errorf("%w: %s", ErrRuleSetExists, name)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return RuleSetInfo{}, fmt.Errorf("failed to check for existing rule set: %w", err)
	}

	specs := make([]string, len(ruleSet))
	for i, r := range ruleSet {
		data, err := json.Marshal(r.Spec())
		if err != nil {
			return RuleSetInfo{}, fmt.Errorf("failed to encode rule %s: %w", r.Name(), err)
		}
		specs[i] = string(data)
	}

	info := RuleSetInfo{
		RuleSetID: types.NewRuleSetID(),
		Name:      name,
		Revision:  computeRevision(ruleSet, specs),
		RuleCount: len(ruleSet),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	// The rule-set row and its rules commit together: a mid-batch failure
	// must never leave a half-written set behind.
	tx, err := s.database.Beginx()
	if err != nil {
		return RuleSetInfo{}, fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = s.queries.ExecTx(ctx, tx, "insert-rule-set",
		info.RuleSetID, info.Name, info.Revision, info.RuleCount, info.CreatedAt)
	if err != nil {
		tx.Rollback()
		return RuleSetInfo{}, fmt.Errorf("failed to store rule set: %w", err)
	}

	for i, r := range ruleSet {
		_, err = s.queries.ExecTx(ctx, tx, "insert-rule",
			info.RuleSetID, i, r.Name(), r.Version(), specs[i])
		if err != nil {
			tx.Rollback()
			return RuleSetInfo{}, fmt.Errorf("failed to store rule %s: %w", r.Name(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return RuleSetInfo{}, fmt.Errorf("failed to commit rule set: %w", err)
	}

	return info, nil
}

// GetRuleSet returns metadata for the named rule set.
func (s *Service) GetRuleSet(ctx context.Context, name string) (RuleSetInfo, error) {
	var info RuleSetInfo
	err := s.queries.Get(ctx, "get-rule-set", &info, name)
	if errors.Is(err, sql.ErrNoRows) {
		return RuleSetInfo{}, fmt.Errorf("%w: %s", ErrRuleSetNotFound, name)
	}
	if err != nil {
		return RuleSetInfo{}, fmt.Errorf("failed to load rule set: %w", err)
	}
	return info, nil
}

// ListRuleSets returns metadata for all stored rule sets, newest first.
func (s *Service) ListRuleSets(ctx context.Context) ([]RuleSetInfo, error) {
	var infos []RuleSetInfo
	if err := s.queries.Select(ctx, "list-rule-sets", &infos); err != nil {
		return nil, fmt.Errorf("failed to list rule sets: %w", err)
	}
	return infos, nil
}

// LoadRuleSet retrieves and recompiles the named rule set in stored order.
// Stored specs were validated at import time, so compilation failures here
// indicate catalog corruption.
func (s *Service) LoadRuleSet(ctx context.Context, name string) ([]rules.Rule, error) {
	info, err := s.GetRuleSet(ctx, name)
	if err != nil {
		return nil, err
	}

	var rows []storedRule
	if err := s.queries.Select(ctx, "list-rules", &rows, info.RuleSetID); err != nil {
		return nil, fmt.Errorf("failed to load rules for %s: %w", name, err)
	}

	ruleSet := make([]rules.Rule, 0, len(rows))
	for _, row := range rows {
		var spec types.RuleSpec
		if err := json.Unmarshal([]byte(row.Spec), &spec); err != nil {
			return nil, fmt.Errorf("corrupt rule %s in set %s: %w", row.Name, name, err)
		}
		r, err := rules.NewRule(spec)
		if err != nil {
			return nil, fmt.Errorf("corrupt rule %s in set %s: %w", row.Name, name, err)
		}
		ruleSet = append(ruleSet, r)
	}

	return ruleSet, nil
}

// DeleteRuleSet removes the named rule set and all its rules.
func (s *Service) DeleteRuleSet(ctx context.Context, name string) error {
	info, err := s.GetRuleSet(ctx, name)
	if err != nil {
		return err
	}

	tx, err := s.database.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := s.queries.ExecTx(ctx, tx, "delete-rules", info.RuleSetID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete rules for %s: %w", name, err)
	}
	if _, err := s.queries.ExecTx(ctx, tx, "delete-rule-set", info.RuleSetID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete rule set %s: %w", name, err)
	}
	return tx.Commit()
}

// computeRevision derives a content hash over the rule set.
// Identical rule sets always produce identical revisions, so consumers can
// compare revisions across environments to detect drift.
func computeRevision(ruleSet []rules.Rule, specs []string) string {
	h := sha256.New()
	for i, r := range ruleSet {
		fmt.Fprintf(h, "%s\n%d\n%s\n", r.Name(), r.Version(), specs[i])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
