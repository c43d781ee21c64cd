// internal/rules/rule.go
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/solatis/fieldbridge/internal/types"
)

/*
 * Rule construction and validation.
 *
 * Compiles types.RuleSpec into an immutable Rule: all fields validated and
 * copied at construction, no setters, accessors return fresh slices. A
 * "changed" rule is always a new instance built from a modified spec.
 *
 * Batch construction (FromRecords/FromJSON) is all-or-nothing: a single
 * malformed record fails the whole batch with every invalid record listed
 * by index. Silently accepting a partial batch would let a typo'd rule
 * vanish from a translation without a trace.
 */

// Rule is one validated, immutable transformation rule. Construct via
// NewRule, FromRecords or FromJSON; the zero value is not usable.
type Rule struct {
	name        string
	sourceTypes []string
	targetTypes []string
	version     int
	fieldMap    types.FieldMap
	defaults    map[string]any
	filter      *Predicate
	dependsOn   []string

	// Original declarative form, kept for serialization. Deep-copied on
	// access so the compiled state can never drift from it.
	spec types.RuleSpec
}

// NewRule validates a rule spec and compiles its filter. Structural
// violations surface as *types.ValidationError naming the rule and the
// offending field; construction is the only place they can occur.
func NewRule(spec types.RuleSpec) (Rule, error) {
	if spec.Name == "" {
		return Rule{}, &types.ValidationError{Field: "name", Err: fmt.Errorf("rule name is required")}
	}
	if len(spec.SourceType) == 0 {
		return Rule{}, &types.ValidationError{Rule: spec.Name, Field: "source_type", Err: fmt.Errorf("at least one source type is required")}
	}
	if len(spec.TargetType) == 0 {
		return Rule{}, &types.ValidationError{Rule: spec.Name, Field: "target_type", Err: fmt.Errorf("at least one target type is required")}
	}
	for _, tag := range spec.SourceType {
		if tag == "" {
			return Rule{}, &types.ValidationError{Rule: spec.Name, Field: "source_type", Err: fmt.Errorf("empty type tag")}
		}
	}
	for _, tag := range spec.TargetType {
		if tag == "" {
			return Rule{}, &types.ValidationError{Rule: spec.Name, Field: "target_type", Err: fmt.Errorf("empty type tag")}
		}
	}

	if len(spec.FieldMap) > types.MaxFieldMapEntries {
		return Rule{}, &types.ValidationError{Rule: spec.Name, Field: "field_map", Err: fmt.Errorf("too many entries (%d > %d)", len(spec.FieldMap), types.MaxFieldMapEntries)}
	}
	seen := make(map[string]struct{}, len(spec.FieldMap))
	for _, fm := range spec.FieldMap {
		if fm.Target == "" {
			return Rule{}, &types.ValidationError{Rule: spec.Name, Field: "field_map", Err: fmt.Errorf("empty target field name")}
		}
		if fm.Source == "" {
			return Rule{}, &types.ValidationError{Rule: spec.Name, Field: fm.Target, Err: fmt.Errorf("empty mapping for target field")}
		}
		if _, dup := seen[fm.Target]; dup {
			return Rule{}, &types.ValidationError{Rule: spec.Name, Field: fm.Target, Err: types.ErrDuplicateTargetField}
		}
		seen[fm.Target] = struct{}{}
	}

	for _, dep := range spec.DependsOn {
		if dep == "" {
			return Rule{}, &types.ValidationError{Rule: spec.Name, Field: "depends_on", Err: fmt.Errorf("empty rule name")}
		}
		if dep == spec.Name {
			return Rule{}, &types.ValidationError{Rule: spec.Name, Field: "depends_on", Err: fmt.Errorf("rule cannot depend on itself")}
		}
	}

	filter, err := CompileFilter(spec.Filter)
	if err != nil {
		if verr, ok := err.(*types.ValidationError); ok && verr.Rule == "" {
			verr.Rule = spec.Name
		}
		return Rule{}, err
	}

	spec = copySpec(spec)
	return Rule{
		name:        spec.Name,
		sourceTypes: spec.SourceType,
		targetTypes: spec.TargetType,
		version:     spec.Version,
		fieldMap:    spec.FieldMap,
		defaults:    spec.Defaults,
		filter:      filter,
		dependsOn:   spec.DependsOn,
		spec:        spec,
	}, nil
}

// FromRecords builds one Rule per plain mapping object (e.g. parsed JSON).
// All-or-nothing: any malformed record fails the batch with a
// *types.BatchError listing every invalid record by index.
func FromRecords(records []map[string]any) ([]Rule, error) {
	out := make([]Rule, 0, len(records))
	errs := make(map[int]error)

	for i, m := range records {
		spec, err := types.SpecFromMap(m)
		if err != nil {
			errs[i] = err
			continue
		}
		rule, err := NewRule(spec)
		if err != nil {
			errs[i] = err
			continue
		}
		out = append(out, rule)
	}

	if len(errs) > 0 {
		return nil, &types.BatchError{Errs: errs}
	}
	return out, nil
}

// FromJSON builds rules from a JSON array of rule objects, preserving
// field_map declaration order. Same all-or-nothing semantics as FromRecords.
func FromJSON(data []byte) ([]Rule, error) {
	var specs []types.RuleSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}

	out := make([]Rule, 0, len(specs))
	errs := make(map[int]error)
	for i, spec := range specs {
		rule, err := NewRule(spec)
		if err != nil {
			errs[i] = err
			continue
		}
		out = append(out, rule)
	}

	if len(errs) > 0 {
		return nil, &types.BatchError{Errs: errs}
	}
	return out, nil
}

// Name returns the rule's unique name within its set.
func (r Rule) Name() string { return r.name }

// Version returns the declared schema version. Informational; the engine
// never enforces it.
func (r Rule) Version() int { return r.version }

// SourceTypes returns the source type tags. Always a fresh slice, even for
// single-type rules.
func (r Rule) SourceTypes() []string {
	return append([]string(nil), r.sourceTypes...)
}

// TargetTypes returns the target type tags. Always a fresh slice, even for
// single-type rules.
func (r Rule) TargetTypes() []string {
	return append([]string(nil), r.targetTypes...)
}

// FieldMap returns the ordered field mappings as a fresh slice.
func (r Rule) FieldMap() types.FieldMap {
	return append(types.FieldMap(nil), r.fieldMap...)
}

// Defaults returns a copy of the default values keyed by target field.
func (r Rule) Defaults() map[string]any {
	cp := make(map[string]any, len(r.defaults))
	for k, v := range r.defaults {
		cp[k] = v
	}
	return cp
}

// Filter returns the compiled filter predicate, or nil when the rule
// processes every matching-type record.
func (r Rule) Filter() *Predicate { return r.filter }

// DependsOn returns the names of rules that must execute first, as a fresh
// slice.
func (r Rule) DependsOn() []string {
	return append([]string(nil), r.dependsOn...)
}

// HasMultipleTargets reports whether the rule fans out to more than one
// target type per source record.
func (r Rule) HasMultipleTargets() bool { return len(r.targetTypes) > 1 }

// HasMultipleSources reports whether the rule matches more than one source
// type.
func (r Rule) HasMultipleSources() bool { return len(r.sourceTypes) > 1 }

// MatchesSourceType reports whether the tag is one of the rule's source
// types.
func (r Rule) MatchesSourceType(tag string) bool {
	for _, t := range r.sourceTypes {
		if t == tag {
			return true
		}
	}
	return false
}

// Spec returns the rule's declarative form as a deep copy. Round-trips:
// NewRule(r.Spec()) reproduces a rule with identical field values.
func (r Rule) Spec() types.RuleSpec {
	return copySpec(r.spec)
}

// copySpec deep-copies every mutable member of a rule spec.
func copySpec(spec types.RuleSpec) types.RuleSpec {
	cp := spec
	cp.SourceType = append(types.StringList(nil), spec.SourceType...)
	cp.TargetType = append(types.StringList(nil), spec.TargetType...)
	cp.FieldMap = append(types.FieldMap(nil), spec.FieldMap...)
	cp.DependsOn = append([]string(nil), spec.DependsOn...)
	if spec.Defaults != nil {
		cp.Defaults = make(map[string]any, len(spec.Defaults))
		for k, v := range spec.Defaults {
			cp.Defaults[k] = v
		}
	}
	if spec.Filter != nil {
		cp.Filter = copyFilterSpec(spec.Filter)
	}
	return cp
}

func copyFilterSpec(f *types.FilterSpec) *types.FilterSpec {
	cp := *f
	cp.Values = append([]any(nil), f.Values...)
	cp.Prefixes = append([]string(nil), f.Prefixes...)
	if f.Casefold != nil {
		b := *f.Casefold
		cp.Casefold = &b
	}
	cp.AnyOf = copyFilterSpecs(f.AnyOf)
	cp.AllOf = copyFilterSpecs(f.AllOf)
	return &cp
}

func copyFilterSpecs(fs []types.FilterSpec) []types.FilterSpec {
	if fs == nil {
		return nil
	}
	out := make([]types.FilterSpec, len(fs))
	for i := range fs {
		out[i] = *copyFilterSpec(&fs[i])
	}
	return out
}
