// internal/rules/operators.go
package rules

import (
	"strconv"
	"strings"

	"github.com/solatis/fieldbridge/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements 9 comparison operators over normalized values. Membership
 * operators (eq/neq/in) test against a value set; numeric operators compare
 * against a single float64; prefix operators test string prefixes.
 *
 * Numeric comparison: Handles float64/int/int64 and numeric-string mixing
 * for JSON compatibility.
 * String comparison: Casefolded once at compile time, never per evaluation.
 *
 * Why function-based: 9 operators via switch statement is cleaner than 9
 * interface implementations with minimal behavior variation.
 */

// Operator enumerates the supported leaf comparison operators.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEq
	OpNeq
	OpIn
	OpGeq
	OpLeq
	OpGt
	OpLt
	OpStartsWith
	OpNotStartsWith
)

var operatorNames = map[Operator]string{
	OpEq:            "eq",
	OpNeq:           "neq",
	OpIn:            "in",
	OpGeq:           "geq",
	OpLeq:           "leq",
	OpGt:            "gt",
	OpLt:            "lt",
	OpStartsWith:    "startswith",
	OpNotStartsWith: "not_startswith",
}

// ParseOperator maps a rule-file operator string to its Operator value.
// Returns ErrUnknownOperator for anything outside the supported set.
func ParseOperator(s string) (Operator, error) {
	for op, name := range operatorNames {
		if name == s {
			return op, nil
		}
	}
	return OpUnspecified, types.ErrUnknownOperator
}

// String returns the rule-file spelling of the operator.
func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "unspecified"
}

// IsNumeric reports whether the operator compares numerically and therefore
// requires exactly one value.
func (op Operator) IsNumeric() bool {
	switch op {
	case OpGeq, OpLeq, OpGt, OpLt:
		return true
	}
	return false
}

// IsMembership reports whether the operator tests set membership.
func (op Operator) IsMembership() bool {
	switch op {
	case OpEq, OpNeq, OpIn:
		return true
	}
	return false
}

// IsPrefix reports whether the operator takes prefixes instead of values.
func (op Operator) IsPrefix() bool {
	return op == OpStartsWith || op == OpNotStartsWith
}

// compareEqual performs equality comparison with numeric type mixing.
// Two values that both parse as numbers compare numerically; everything
// else compares with Go equality.
func compareEqual(a, b any) bool {
	if na, oka := toFloat64(a); oka {
		if nb, okb := toFloat64(b); okb {
			return na == nb
		}
	}
	return a == b
}

// compareNumeric performs three-way numeric comparison (-1/0/1).
// The second return is false for values that don't coerce to numbers.
func compareNumeric(a any, b float64) (int, bool) {
	na, ok := toFloat64(a)
	if !ok {
		return 0, false
	}
	switch {
	case na < b:
		return -1, true
	case na > b:
		return 1, true
	default:
		return 0, true
	}
}

// toFloat64 converts value to float64 if it is numeric or a numeric string.
// Handles float64, int, int64 from JSON unmarshaling; numeric strings are
// accepted so quoted numbers in source data still compare.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		n = strings.TrimSpace(n)
		if n == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
