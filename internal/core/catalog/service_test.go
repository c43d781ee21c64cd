package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/solatis/fieldbridge/internal/core/db"
	"github.com/solatis/fieldbridge/internal/rules"
)

const testRuleSetJSON = `[
	{
		"name": "bus-to-acbus",
		"source_type": "bus",
		"target_type": "ACBus",
		"version": 2,
		"field_map": {"name": "bus_name", "voltage": "base_kv"}
	},
	{
		"name": "gen-to-thermal",
		"source_type": "generator",
		"target_type": "ThermalStandard",
		"field_map": {"name": "gen_name"},
		"filter": {"field": "fuel", "op": "eq", "values": ["coal", "gas"]},
		"depends_on": ["bus-to-acbus"]
	}
]`

func openTestService(t *testing.T) (*Service, context.Context) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	database, err := db.Open("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.MigrateUp(database); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		t.Fatalf("failed to load queries: %v", err)
	}

	svc, err := NewService(database, queries)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	return svc, context.Background()
}

func TestImportRuleSet_RoundTrip(t *testing.T) {
	svc, ctx := openTestService(t)

	info, err := svc.ImportRuleSet(ctx, "grid-import", []byte(testRuleSetJSON))
	if err != nil {
		t.Fatalf("ImportRuleSet() error = %v", err)
	}
	if info.Name != "grid-import" {
		t.Errorf("Name = %q, want %q", info.Name, "grid-import")
	}
	if info.RuleCount != 2 {
		t.Errorf("RuleCount = %d, want 2", info.RuleCount)
	}
	if info.Revision == "" {
		t.Error("Revision is empty")
	}

	loaded, err := svc.LoadRuleSet(ctx, "grid-import")
	if err != nil {
		t.Fatalf("LoadRuleSet() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d rules, want 2", len(loaded))
	}
	if got := loaded[0].Name(); got != "bus-to-acbus" {
		t.Errorf("loaded[0].Name() = %q, want %q", got, "bus-to-acbus")
	}
	if got := loaded[0].Version(); got != 2 {
		t.Errorf("loaded[0].Version() = %d, want 2", got)
	}
	if got := loaded[1].DependsOn(); len(got) != 1 || got[0] != "bus-to-acbus" {
		t.Errorf("loaded[1].DependsOn() = %v, want [bus-to-acbus]", got)
	}
	if loaded[1].Filter() == nil {
		t.Error("loaded[1].Filter() = nil, want compiled filter")
	}
}

func TestImportRuleSet_PreservesFieldMapOrder(t *testing.T) {
	svc, ctx := openTestService(t)

	ruleSet := `[{
		"name": "ordered",
		"source_type": "bus",
		"target_type": "ACBus",
		"field_map": {"zulu": "z", "alpha": "a", "mike": "m"}
	}]`
	if _, err := svc.ImportRuleSet(ctx, "ordered-set", []byte(ruleSet)); err != nil {
		t.Fatalf("ImportRuleSet() error = %v", err)
	}

	loaded, err := svc.LoadRuleSet(ctx, "ordered-set")
	if err != nil {
		t.Fatalf("LoadRuleSet() error = %v", err)
	}

	want := []string{"zulu", "alpha", "mike"}
	fm := loaded[0].FieldMap()
	if len(fm) != len(want) {
		t.Fatalf("field map has %d entries, want %d", len(fm), len(want))
	}
	for i, m := range fm {
		if m.Target != want[i] {
			t.Errorf("field_map[%d].Target = %q, want %q", i, m.Target, want[i])
		}
	}
}

func TestImportRuleSet_RejectsInvalid(t *testing.T) {
	svc, ctx := openTestService(t)

	cases := []struct {
		name string
		raw  string
	}{
		{"empty set", `[]`},
		{"bad filter op", `[{"name": "r", "source_type": "a", "target_type": "b",
			"field_map": {"x": "y"},
			"filter": {"field": "f", "op": "matches", "values": ["v"]}}]`},
		{"unresolved dependency", `[{"name": "r", "source_type": "a", "target_type": "b",
			"field_map": {"x": "y"}, "depends_on": ["ghost"]}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.ImportRuleSet(ctx, "bad-set", []byte(tc.raw)); err == nil {
				t.Error("ImportRuleSet() error = nil, want error")
			}
		})
	}

	// Nothing invalid may reach storage.
	infos, err := svc.ListRuleSets(ctx)
	if err != nil {
		t.Fatalf("ListRuleSets() error = %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("catalog has %d rule sets after failed imports, want 0", len(infos))
	}
}

func TestImportRuleSet_DuplicateName(t *testing.T) {
	svc, ctx := openTestService(t)

	if _, err := svc.ImportRuleSet(ctx, "grid-import", []byte(testRuleSetJSON)); err != nil {
		t.Fatalf("first import error = %v", err)
	}
	_, err := svc.ImportRuleSet(ctx, "grid-import", []byte(testRuleSetJSON))
	if !errors.Is(err, ErrRuleSetExists) {
		t.Errorf("second import error = %v, want ErrRuleSetExists", err)
	}
}

func TestImportRuleSet_AtomicOnInsertFailure(t *testing.T) {
	svc, ctx := openTestService(t)

	// Make the per-rule insert fail after the rule-set row is written.
	if _, err := svc.database.Exec("ALTER TABLE rules RENAME TO rules_unavailable"); err != nil {
		t.Fatalf("failed to rename rules table: %v", err)
	}
	if _, err := svc.ImportRuleSet(ctx, "grid-import", []byte(testRuleSetJSON)); err == nil {
		t.Fatal("ImportRuleSet() error = nil, want insert failure")
	}
	if _, err := svc.database.Exec("ALTER TABLE rules_unavailable RENAME TO rules"); err != nil {
		t.Fatalf("failed to restore rules table: %v", err)
	}

	// The failed import must leave no rows behind.
	infos, err := svc.ListRuleSets(ctx)
	if err != nil {
		t.Fatalf("ListRuleSets() error = %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("catalog has %d rule sets after failed import, want 0", len(infos))
	}

	// The name is free again: re-import succeeds and loads in full.
	info, err := svc.ImportRuleSet(ctx, "grid-import", []byte(testRuleSetJSON))
	if err != nil {
		t.Fatalf("re-import error = %v", err)
	}
	loaded, err := svc.LoadRuleSet(ctx, "grid-import")
	if err != nil {
		t.Fatalf("LoadRuleSet() error = %v", err)
	}
	if len(loaded) != info.RuleCount {
		t.Errorf("loaded %d rules, want %d", len(loaded), info.RuleCount)
	}
}

func TestLoadRuleSet_NotFound(t *testing.T) {
	svc, ctx := openTestService(t)

	_, err := svc.LoadRuleSet(ctx, "missing")
	if !errors.Is(err, ErrRuleSetNotFound) {
		t.Errorf("LoadRuleSet() error = %v, want ErrRuleSetNotFound", err)
	}
}

func TestDeleteRuleSet(t *testing.T) {
	svc, ctx := openTestService(t)

	if _, err := svc.ImportRuleSet(ctx, "grid-import", []byte(testRuleSetJSON)); err != nil {
		t.Fatalf("ImportRuleSet() error = %v", err)
	}
	if err := svc.DeleteRuleSet(ctx, "grid-import"); err != nil {
		t.Fatalf("DeleteRuleSet() error = %v", err)
	}
	if _, err := svc.LoadRuleSet(ctx, "grid-import"); !errors.Is(err, ErrRuleSetNotFound) {
		t.Errorf("LoadRuleSet() after delete error = %v, want ErrRuleSetNotFound", err)
	}
}

func TestComputeRevision_Deterministic(t *testing.T) {
	ruleSet, err := rules.FromJSON([]byte(testRuleSetJSON))
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	specs := []string{"spec-a", "spec-b"}

	first := computeRevision(ruleSet, specs)
	second := computeRevision(ruleSet, specs)
	if first != second {
		t.Errorf("revisions differ: %q != %q", first, second)
	}

	changed := computeRevision(ruleSet, []string{"spec-a", "spec-c"})
	if changed == first {
		t.Error("revision unchanged after spec content change")
	}
}
