package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for FieldBridge operations.
var (
	// ErrUnknownOperator indicates an operator string outside the supported set.
	ErrUnknownOperator = errors.New("unknown filter operator")

	// ErrNumericValueCount indicates a numeric operator with zero or multiple values.
	ErrNumericValueCount = errors.New("numeric operator requires exactly one value")

	// ErrPrefixValues indicates a prefix operator declared with values instead of prefixes.
	ErrPrefixValues = errors.New("prefix operator requires prefixes, not values")

	// ErrEmptyPredicateList indicates an any_of/all_of with no children.
	ErrEmptyPredicateList = errors.New("compound predicate requires at least one child")

	// ErrFilterTooDeep indicates predicate nesting beyond MaxFilterDepth.
	ErrFilterTooDeep = errors.New("filter nesting exceeds maximum depth")

	// ErrTooManyFilterValues indicates a membership list beyond MaxFilterValues.
	ErrTooManyFilterValues = errors.New("filter has too many values")

	// ErrDuplicateTargetField indicates a field_map with a repeated target field.
	ErrDuplicateTargetField = errors.New("duplicate target field in field_map")

	// ErrDuplicateRuleName indicates two rules with the same name in one set.
	ErrDuplicateRuleName = errors.New("duplicate rule name")

	// ErrUnresolvedDependency indicates a depends_on reference to no known rule.
	ErrUnresolvedDependency = errors.New("unresolved dependency")

	// ErrDependencyCycle indicates a cycle in the depends_on graph.
	ErrDependencyCycle = errors.New("cycle detected")

	// ErrUnknownTypeTag indicates a source/target type absent from the registry.
	ErrUnknownTypeTag = errors.New("unknown type tag")

	// ErrRuleSetTooLarge indicates a rule set beyond MaxRuleSetSize.
	ErrRuleSetTooLarge = errors.New("rule set exceeds maximum size")
)

// ValidationError reports a structural problem in a rule or filter found at
// construction time. Rule names the offending rule ("" for standalone
// filters), Field the offending field or attribute.
type ValidationError struct {
	Rule  string
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Rule != "" && e.Field != "":
		return fmt.Sprintf("rule %q: field %q: %v", e.Rule, e.Field, e.Err)
	case e.Rule != "":
		return fmt.Sprintf("rule %q: %v", e.Rule, e.Err)
	case e.Field != "":
		return fmt.Sprintf("field %q: %v", e.Field, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DependencyError reports an unresolved reference or cycle in the
// depends_on graph, found before any rule executes.
type DependencyError struct {
	Rule string
	Err  error
}

func (e *DependencyError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("rule %q: %v", e.Rule, e.Err)
	}
	return e.Err.Error()
}

func (e *DependencyError) Unwrap() error { return e.Err }

// ConstructionError reports a target-record constructor rejecting the field
// values built for one source record. Rule-local: it marks a skip (or, under
// fail-fast, a rule failure), never a fatal translation error.
type ConstructionError struct {
	TypeTag string
	Err     error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("constructing %q: %v", e.TypeTag, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// BatchError aggregates per-record failures from batch rule construction.
// No partial batch is accepted: one malformed record fails the whole batch,
// and every invalid record is listed by index.
type BatchError struct {
	Errs map[int]error // record index -> error
}

func (e *BatchError) Error() string {
	idxs := make([]int, 0, len(e.Errs))
	for i := range e.Errs {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	var b strings.Builder
	fmt.Fprintf(&b, "%d invalid rule record(s):", len(e.Errs))
	for _, i := range idxs {
		fmt.Fprintf(&b, " [%d] %v;", i, e.Errs[i])
	}
	return strings.TrimSuffix(b.String(), ";")
}
