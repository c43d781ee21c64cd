// internal/rules/depgraph.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/fieldbridge/internal/types"
)

/*
 * Dependency resolution.
 *
 * Topologically orders a rule set by depends_on before any execution
 * begins. Detects duplicate names, references to unknown rules, and cycles
 * up front so a translation run never fails halfway through on a graph
 * problem.
 *
 * Ordering contract: every rule appears after all rules it depends on.
 * Rules with no ordering constraint between them keep their original
 * declaration order (stable Kahn's algorithm: the ready set is drained in
 * declaration-index order). Declaration-order tie-breaking is a deliberate
 * simplicity choice over a priority system.
 *
 * Resolution happens once per translation run, not per record.
 */

// ResolveOrder returns the rules in dependency order. Duplicate names are
// *types.ValidationError; unknown references and cycles are
// *types.DependencyError, with cycles named in the error.
func ResolveOrder(rules []Rule) ([]Rule, error) {
	if len(rules) > types.MaxRuleSetSize {
		return nil, &types.ValidationError{Err: types.ErrRuleSetTooLarge}
	}

	indexByName := make(map[string]int, len(rules))
	for i, r := range rules {
		if _, dup := indexByName[r.Name()]; dup {
			return nil, &types.ValidationError{Rule: r.Name(), Err: types.ErrDuplicateRuleName}
		}
		indexByName[r.Name()] = i
	}

	// Edge from each dependency to the depending rule.
	dependents := make([][]int, len(rules))
	indegree := make([]int, len(rules))
	for i, r := range rules {
		for _, dep := range r.DependsOn() {
			from, ok := indexByName[dep]
			if !ok {
				return nil, &types.DependencyError{
					Rule: r.Name(),
					Err:  fmt.Errorf("%w: %q", types.ErrUnresolvedDependency, dep),
				}
			}
			dependents[from] = append(dependents[from], i)
			indegree[i]++
		}
	}

	ordered := make([]Rule, 0, len(rules))
	done := make([]bool, len(rules))

	// Stable Kahn: scan for the lowest declaration index among ready rules.
	// O(n^2) but rule sets are small (MaxRuleSetSize) and this runs once.
	for len(ordered) < len(rules) {
		next := -1
		for i := range rules {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, &types.DependencyError{
				Err: fmt.Errorf("%w: %s", types.ErrDependencyCycle, describeCycle(rules, indegree, done, indexByName)),
			}
		}

		done[next] = true
		ordered = append(ordered, rules[next])
		for _, dep := range dependents[next] {
			indegree[dep]--
		}
	}

	return ordered, nil
}

// describeCycle walks depends_on edges among the unfinished rules until a
// name repeats, producing "a -> b -> a" for the error message.
func describeCycle(rules []Rule, indegree []int, done []bool, indexByName map[string]int) string {
	start := -1
	for i := range rules {
		if !done[i] {
			start = i
			break
		}
	}
	if start == -1 {
		return "unknown cycle"
	}

	visited := make(map[int]int) // index -> position in path
	var path []string
	cur := start
	for {
		if pos, seen := visited[cur]; seen {
			return strings.Join(append(path[pos:], rules[cur].Name()), " -> ")
		}
		visited[cur] = len(path)
		path = append(path, rules[cur].Name())

		// Follow any unfinished dependency; one always exists inside a cycle.
		next := -1
		for _, dep := range rules[cur].DependsOn() {
			j := indexByName[dep]
			if !done[j] {
				next = j
				break
			}
		}
		if next == -1 {
			return strings.Join(path, " -> ")
		}
		cur = next
	}
}
