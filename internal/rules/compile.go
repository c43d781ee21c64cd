// internal/rules/compile.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/fieldbridge/internal/types"
)

/*
 * Filter compilation and validation.
 *
 * Compiles types.FilterSpec into an immutable Predicate with every
 * structural invariant checked and every comparison value normalized up
 * front. Evaluation after compilation is string-allocation free.
 *
 * Compilation workflow:
 *   1. Validate shape (leaf vs compound, never both)
 *   2. Validate operator constraints (numeric = exactly one value,
 *      prefix operators take prefixes, membership lists within limits)
 *   3. Normalize comparison values (casefold strings, parse the numeric
 *      bound, build the membership set)
 *   4. Recurse into any_of/all_of children with depth tracking
 *
 * Why compile-time validation: Enforcing invariants during compilation
 * moves error detection to rule creation time rather than evaluation time.
 * A compiled Predicate cannot fail at evaluation.
 */

// MissingPolicy specifies the result of evaluating a leaf against a record
// that lacks the filtered field.
type MissingPolicy int

const (
	// MissingExclude treats an absent field as a non-match (default).
	MissingExclude MissingPolicy = iota
	// MissingInclude treats an absent field as a match.
	MissingInclude
)

func parseMissingPolicy(s string) (MissingPolicy, error) {
	switch s {
	case "", "exclude":
		return MissingExclude, nil
	case "include":
		return MissingInclude, nil
	default:
		return MissingExclude, fmt.Errorf("on_missing must be \"include\" or \"exclude\", got %q", s)
	}
}

type predicateKind int

const (
	leafPredicate predicateKind = iota
	anyOfPredicate
	allOfPredicate
)

// Predicate is a compiled, immutable filter expression. Construct via
// CompileFilter; the zero value is not usable.
type Predicate struct {
	kind predicateKind

	// Leaf state. stringSet holds the normalized string members for O(1)
	// membership checks; values holds all normalized members for mixed-type
	// equality; numeric holds the single bound for ordering operators.
	field     string
	op        Operator
	casefold  bool
	onMissing MissingPolicy
	values    []any
	stringSet map[string]struct{}
	numeric   float64
	prefixes  []string

	// Compound state.
	children []*Predicate
}

// CompileFilter validates and normalizes a filter spec. All invariant
// violations surface here as *types.ValidationError; a nil spec compiles to
// a nil predicate (no filtering).
func CompileFilter(spec *types.FilterSpec) (*Predicate, error) {
	if spec == nil {
		return nil, nil
	}
	return compileFilter(spec, 1)
}

func compileFilter(spec *types.FilterSpec, depth int) (*Predicate, error) {
	if depth > types.MaxFilterDepth {
		return nil, &types.ValidationError{Field: spec.Field, Err: types.ErrFilterTooDeep}
	}

	hasLeaf := spec.Field != "" || spec.Op != "" || len(spec.Values) > 0 || len(spec.Prefixes) > 0
	hasAny := len(spec.AnyOf) > 0
	hasAll := len(spec.AllOf) > 0

	switch {
	case hasAny && hasAll:
		return nil, &types.ValidationError{Err: fmt.Errorf("filter cannot combine any_of and all_of")}
	case (hasAny || hasAll) && hasLeaf:
		return nil, &types.ValidationError{Field: spec.Field, Err: fmt.Errorf("filter cannot combine a leaf comparison with any_of/all_of")}
	case hasAny:
		return compileCompound(anyOfPredicate, spec.AnyOf, depth)
	case hasAll:
		return compileCompound(allOfPredicate, spec.AllOf, depth)
	case hasLeaf:
		return compileLeaf(spec)
	default:
		return nil, &types.ValidationError{Err: types.ErrEmptyPredicateList}
	}
}

func compileCompound(kind predicateKind, specs []types.FilterSpec, depth int) (*Predicate, error) {
	if len(specs) == 0 {
		return nil, &types.ValidationError{Err: types.ErrEmptyPredicateList}
	}
	children := make([]*Predicate, 0, len(specs))
	for i := range specs {
		child, err := compileFilter(&specs[i], depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Predicate{kind: kind, children: children}, nil
}

// compileLeaf validates a single comparison and normalizes its values.
// Casefolded strings and parsed numeric bounds are computed exactly once
// here, never per evaluation.
func compileLeaf(spec *types.FilterSpec) (*Predicate, error) {
	if spec.Field == "" {
		return nil, &types.ValidationError{Err: fmt.Errorf("leaf filter requires a field")}
	}

	op, err := ParseOperator(spec.Op)
	if err != nil {
		return nil, &types.ValidationError{Field: spec.Field, Err: fmt.Errorf("%w: %q", err, spec.Op)}
	}

	onMissing, err := parseMissingPolicy(spec.OnMissing)
	if err != nil {
		return nil, &types.ValidationError{Field: spec.Field, Err: err}
	}

	casefold := spec.Casefold == nil || *spec.Casefold

	p := &Predicate{
		kind:      leafPredicate,
		field:     spec.Field,
		op:        op,
		casefold:  casefold,
		onMissing: onMissing,
	}

	switch {
	case op.IsPrefix():
		if len(spec.Values) > 0 {
			return nil, &types.ValidationError{Field: spec.Field, Err: types.ErrPrefixValues}
		}
		if len(spec.Prefixes) == 0 {
			return nil, &types.ValidationError{Field: spec.Field, Err: fmt.Errorf("operator %s requires at least one prefix", op)}
		}
		if len(spec.Prefixes) > types.MaxFilterValues {
			return nil, &types.ValidationError{Field: spec.Field, Err: types.ErrTooManyFilterValues}
		}
		p.prefixes = make([]string, len(spec.Prefixes))
		for i, pre := range spec.Prefixes {
			p.prefixes[i] = foldString(pre, casefold)
		}

	case op.IsNumeric():
		if len(spec.Prefixes) > 0 {
			return nil, &types.ValidationError{Field: spec.Field, Err: fmt.Errorf("prefixes are only valid for prefix operators")}
		}
		if len(spec.Values) != 1 {
			return nil, &types.ValidationError{Field: spec.Field, Err: types.ErrNumericValueCount}
		}
		n, ok := toFloat64(spec.Values[0])
		if !ok {
			return nil, &types.ValidationError{Field: spec.Field, Err: fmt.Errorf("operator %s: value %v is not numeric", op, spec.Values[0])}
		}
		p.numeric = n

	default: // membership: eq, neq, in
		if len(spec.Prefixes) > 0 {
			return nil, &types.ValidationError{Field: spec.Field, Err: fmt.Errorf("prefixes are only valid for prefix operators")}
		}
		if len(spec.Values) == 0 {
			return nil, &types.ValidationError{Field: spec.Field, Err: fmt.Errorf("operator %s requires at least one value", op)}
		}
		if len(spec.Values) > types.MaxFilterValues {
			return nil, &types.ValidationError{Field: spec.Field, Err: types.ErrTooManyFilterValues}
		}
		p.values = make([]any, len(spec.Values))
		p.stringSet = make(map[string]struct{})
		for i, v := range spec.Values {
			if s, ok := v.(string); ok {
				folded := foldString(s, casefold)
				p.values[i] = folded
				p.stringSet[folded] = struct{}{}
				continue
			}
			p.values[i] = v
		}
	}

	return p, nil
}

// foldString lowercases s when casefolding is enabled.
func foldString(s string, casefold bool) string {
	if casefold {
		return strings.ToLower(s)
	}
	return s
}
