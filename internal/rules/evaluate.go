// internal/rules/evaluate.go
package rules

import (
	"strings"

	"github.com/solatis/fieldbridge/internal/record"
)

/*
 * Predicate evaluation.
 *
 * Evaluates a compiled Predicate against a single record. Pure function of
 * (predicate, record): no side effects, deterministic, safe for concurrent
 * use because predicates are immutable after compilation.
 *
 * Evaluation flow per leaf:
 *   1. Fetch the named field; absent field resolves via on_missing policy
 *   2. Normalize the record value (casefold strings when enabled)
 *   3. Compare per operator against the pre-normalized comparison values
 *
 * Short-circuit semantics: any_of stops on the first true child, all_of on
 * the first false child, both in declared child order. This matters for
 * performance when children have different cost; it must never matter for
 * correctness since predicates are pure.
 */

// Evaluate reports whether the record satisfies the predicate.
// A nil predicate matches everything.
func (p *Predicate) Evaluate(rec record.Record) bool {
	if p == nil {
		return true
	}

	switch p.kind {
	case anyOfPredicate:
		for _, child := range p.children {
			if child.Evaluate(rec) {
				return true
			}
		}
		return false

	case allOfPredicate:
		for _, child := range p.children {
			if !child.Evaluate(rec) {
				return false
			}
		}
		return true

	default:
		return p.evaluateLeaf(rec)
	}
}

func (p *Predicate) evaluateLeaf(rec record.Record) bool {
	value, ok := rec.Field(p.field)
	if !ok {
		return p.onMissing == MissingInclude
	}

	switch p.op {
	case OpEq, OpIn:
		return p.matchMembership(value)
	case OpNeq:
		return !p.matchMembership(value)
	case OpGeq:
		cmp, ok := compareNumeric(value, p.numeric)
		return ok && cmp >= 0
	case OpLeq:
		cmp, ok := compareNumeric(value, p.numeric)
		return ok && cmp <= 0
	case OpGt:
		cmp, ok := compareNumeric(value, p.numeric)
		return ok && cmp > 0
	case OpLt:
		cmp, ok := compareNumeric(value, p.numeric)
		return ok && cmp < 0
	case OpStartsWith:
		return p.matchPrefix(value)
	case OpNotStartsWith:
		return !p.matchPrefix(value)
	default:
		return false
	}
}

// matchMembership tests whether the record value equals any comparison
// value. String values hit the pre-folded set; everything else falls back
// to equality with numeric mixing so 3, 3.0 and "3" compare equal.
func (p *Predicate) matchMembership(value any) bool {
	if s, ok := value.(string); ok {
		if _, hit := p.stringSet[foldString(s, p.casefold)]; hit {
			return true
		}
	}
	for _, v := range p.values {
		if compareEqual(value, v) {
			return true
		}
	}
	return false
}

// matchPrefix tests whether the record value starts with any configured
// prefix. Non-string values never match a prefix.
func (p *Predicate) matchPrefix(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	s = foldString(s, p.casefold)
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
