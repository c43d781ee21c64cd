// internal/rules/execute.go
package rules

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/solatis/fieldbridge/internal/record"
	"github.com/solatis/fieldbridge/internal/types"
)

/*
 * Rule execution and field mapping.
 *
 * Executes rules in resolved order against a shared record collection.
 * Per rule: resolve type tags against the caller's registry, stream a
 * snapshot of the collection, filter matching records, and build zero or
 * more target records per source record (fan-out for multi-target rules).
 *
 * Failure semantics:
 *   - ValidationError/DependencyError: fatal, surfaced before any rule runs
 *   - Unknown type tag: rule-level failure, remaining rules still run
 *   - Per-record construction failure: counted in skipped, rule succeeds
 *   - Fail-fast mode promotes the first record failure to a rule failure
 *     and stops the run after that rule
 *
 * Output visibility: records produced by a rule are appended to the shared
 * collection after the rule completes, so dependent rules (and their
 * getters) see them through the same collection. The executor maintains no
 * other state between rules.
 *
 * Concurrency: rules always run sequentially in resolved order. Within one
 * rule, per-record filtering and mapping are pure functions of the record
 * plus immutable rule state, so Options.Workers > 1 fans records out over
 * an errgroup; outcomes are collected by input index, keeping results
 * deterministic regardless of completion order.
 */

// Constructor validates field values and instantiates a target record.
// Supplied by the caller; the engine performs no validation of its own on
// target records.
type Constructor func(typeTag string, fields map[string]any) (record.Record, error)

// Registry maps type tags to record constructors. Both source and target
// tags of a rule must resolve before the rule executes.
type Registry map[string]Constructor

// Resolve returns the constructor for a tag and whether the tag is known.
func (r Registry) Resolve(tag string) (Constructor, bool) {
	c, ok := r[tag]
	return c, ok
}

// GetterContext is the immutable context passed to getters alongside the
// source record.
type GetterContext struct {
	Rule       Rule
	TargetType string

	// Records is the shared collection, including records produced by
	// rules this rule depends on. Getters must treat it as read-only.
	Records *record.Set
}

// Getter computes a target field value from a source record instead of
// copying a field. Registered under a stable string key; field-map entries
// naming a registered key invoke the getter and bypass defaults.
type Getter func(rec record.Record, gctx GetterContext) (any, error)

// Getters is a registry of named getters keyed by stable string keys.
type Getters map[string]Getter

// Options configures engine behavior.
type Options struct {
	// FailFast stops the run at the first failed rule and promotes
	// per-record construction failures to rule failures. Default is
	// continue-on-error: every rule runs and partial translation is
	// reported, not dropped.
	FailFast bool

	// Workers bounds per-record parallelism within a single rule.
	// Values below 2 select sequential processing.
	Workers int
}

// Engine executes rules against record collections. Immutable after
// construction; safe to reuse across translation runs.
type Engine struct {
	registry Registry
	getters  Getters
	opts     Options
}

// NewEngine creates an engine with the caller's type registry and getter
// registry. Either may be nil when a rule set uses no getters or the
// caller resolves types elsewhere.
func NewEngine(registry Registry, getters Getters, opts Options) *Engine {
	return &Engine{registry: registry, getters: getters, opts: opts}
}

// ApplyRulesToContext resolves the dependency order and executes every
// rule, returning the aggregate result. Resolution errors are fatal and
// return before any rule executes; rule-level failures are recorded in the
// result and, unless FailFast is set, do not stop the run.
func (e *Engine) ApplyRulesToContext(ruleSet []Rule, records *record.Set) (*TranslationResult, error) {
	ordered, err := ResolveOrder(ruleSet)
	if err != nil {
		return nil, err
	}

	result := &TranslationResult{RunID: types.NewRunID()}
	for _, rule := range ordered {
		res := e.ApplySingleRule(rule, records)
		records.Append(res.Outputs...)
		result.add(res)

		if e.opts.FailFast && !res.Success {
			break
		}
	}
	return result, nil
}

// ApplySingleRule executes exactly one rule against the collection and
// returns its result. Output records are returned but NOT appended to the
// collection; ApplyRulesToContext does that between rules.
func (e *Engine) ApplySingleRule(rule Rule, records *record.Set) RuleResult {
	res := RuleResult{RuleName: rule.Name(), Success: true}

	for _, tag := range rule.SourceTypes() {
		if _, ok := e.registry.Resolve(tag); !ok {
			res.Success = false
			res.Err = fmt.Errorf("source %w: %q", types.ErrUnknownTypeTag, tag)
			return res
		}
	}
	constructors := make(map[string]Constructor, len(rule.TargetTypes()))
	for _, tag := range rule.TargetTypes() {
		c, ok := e.registry.Resolve(tag)
		if !ok {
			res.Success = false
			res.Err = fmt.Errorf("target %w: %q", types.ErrUnknownTypeTag, tag)
			return res
		}
		constructors[tag] = c
	}

	outcomes := e.mapRecords(rule, records.Snapshot(), constructors, records)

	for _, oc := range outcomes {
		res.Skipped += oc.skipped
		res.Converted += len(oc.outputs)
		res.Outputs = append(res.Outputs, oc.outputs...)

		if oc.err != nil && e.opts.FailFast {
			res.Success = false
			res.Err = oc.err
			return res
		}
	}
	return res
}

// recordOutcome is the result of processing one source record under one
// rule: produced target records, a skip tally, and the first failure (if
// any) for fail-fast promotion.
type recordOutcome struct {
	outputs []record.Record
	skipped int
	err     error
}

// mapRecords processes the snapshot sequentially or, when Workers > 1,
// over a bounded errgroup with outcomes stored by input index.
func (e *Engine) mapRecords(rule Rule, snapshot []record.Record, constructors map[string]Constructor, records *record.Set) []recordOutcome {
	outcomes := make([]recordOutcome, len(snapshot))

	if e.opts.Workers <= 1 || len(snapshot) < 2 {
		for i, rec := range snapshot {
			outcomes[i] = e.processRecord(rule, rec, constructors, records)
		}
		return outcomes
	}

	g := new(errgroup.Group)
	g.SetLimit(e.opts.Workers)
	for i, rec := range snapshot {
		i, rec := i, rec
		g.Go(func() error {
			outcomes[i] = e.processRecord(rule, rec, constructors, records)
			return nil
		})
	}
	g.Wait()
	return outcomes
}

// processRecord filters one record and, if it matches, constructs one
// target record per target type. Records of other types and filtered-out
// records tally as skipped, not as errors. A construction failure skips
// the record but keeps any targets already built (partial fan-out is
// visible in the counts, not silently dropped).
func (e *Engine) processRecord(rule Rule, rec record.Record, constructors map[string]Constructor, records *record.Set) recordOutcome {
	if !rule.MatchesSourceType(rec.TypeTag()) {
		return recordOutcome{skipped: 1}
	}
	if !rule.Filter().Evaluate(rec) {
		return recordOutcome{skipped: 1}
	}

	var oc recordOutcome
	for _, target := range rule.targetTypes {
		fields, err := e.buildFields(rule, rec, target, records)
		if err != nil {
			oc.skipped = 1
			if oc.err == nil {
				oc.err = err
			}
			continue
		}

		out, err := constructors[target](target, fields)
		if err != nil {
			oc.skipped = 1
			if oc.err == nil {
				oc.err = &types.ConstructionError{TypeTag: target, Err: err}
			}
			continue
		}
		oc.outputs = append(oc.outputs, out)
	}
	return oc
}

// buildFields resolves each field-map entry for one target type: a
// registered getter key invokes the getter (bypassing defaults), otherwise
// the source field is copied, falling back to the target's default when
// the source lacks it. Defaults for target fields outside the field map
// are applied afterwards. Fields with no mapping, no source value and no
// default are omitted; the constructor decides whether they were required.
func (e *Engine) buildFields(rule Rule, rec record.Record, target string, records *record.Set) (map[string]any, error) {
	fields := make(map[string]any, len(rule.fieldMap)+len(rule.defaults))
	gctx := GetterContext{Rule: rule, TargetType: target, Records: records}

	for _, fm := range rule.fieldMap {
		if getter, ok := e.getters[fm.Source]; ok {
			v, err := getter(rec, gctx)
			if err != nil {
				return nil, fmt.Errorf("getter %q for field %q: %w", fm.Source, fm.Target, err)
			}
			fields[fm.Target] = v
			continue
		}

		if v, ok := rec.Field(fm.Source); ok {
			fields[fm.Target] = v
			continue
		}
		if dv, ok := rule.defaults[fm.Target]; ok {
			fields[fm.Target] = dv
		}
	}

	for k, v := range rule.defaults {
		if _, set := fields[k]; !set {
			fields[k] = v
		}
	}

	return fields, nil
}
