// internal/rules/depgraph_test.go
package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/solatis/fieldbridge/internal/types"
)

func mustRule(t *testing.T, name string, deps ...string) Rule {
	t.Helper()
	rule, err := NewRule(types.RuleSpec{
		Name:       name,
		SourceType: types.StringList{"A"},
		TargetType: types.StringList{"B"},
		DependsOn:  deps,
	})
	if err != nil {
		t.Fatalf("NewRule(%s) error = %v", name, err)
	}
	return rule
}

func orderNames(rules []Rule) []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name()
	}
	return names
}

func TestResolveOrder_Chain(t *testing.T) {
	a := mustRule(t, "A")
	b := mustRule(t, "B", "A")
	c := mustRule(t, "C", "B")

	// Declared out of order; resolution must produce exactly [A B C].
	ordered, err := ResolveOrder([]Rule{c, a, b})
	if err != nil {
		t.Fatalf("ResolveOrder() error = %v, want nil", err)
	}

	got := orderNames(ordered)
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestResolveOrder_DeclarationOrderTieBreak(t *testing.T) {
	// No edges between these rules: declaration order must survive.
	ordered, err := ResolveOrder([]Rule{
		mustRule(t, "zulu"),
		mustRule(t, "alpha"),
		mustRule(t, "mike"),
	})
	if err != nil {
		t.Fatalf("ResolveOrder() error = %v, want nil", err)
	}

	got := orderNames(ordered)
	want := []string{"zulu", "alpha", "mike"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v (declaration order, not alphabetical)", got, want)
		}
	}
}

func TestResolveOrder_DependentAfterIndependents(t *testing.T) {
	ordered, err := ResolveOrder([]Rule{
		mustRule(t, "loads", "buses"),
		mustRule(t, "buses"),
		mustRule(t, "areas"),
	})
	if err != nil {
		t.Fatalf("ResolveOrder() error = %v, want nil", err)
	}

	// loads and areas share no constraint; loads was declared first, so it
	// runs first once buses unblocks it.
	got := orderNames(ordered)
	want := []string{"buses", "loads", "areas"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestResolveOrder_Cycle(t *testing.T) {
	a := mustRule(t, "A", "B")
	b := mustRule(t, "B", "A")

	_, err := ResolveOrder([]Rule{a, b})
	if err == nil {
		t.Fatal("ResolveOrder() error = nil, want DependencyError")
	}
	var derr *types.DependencyError
	if !errors.As(err, &derr) {
		t.Fatalf("error type = %T, want *types.DependencyError", err)
	}
	if !errors.Is(err, types.ErrDependencyCycle) {
		t.Errorf("error = %v, want ErrDependencyCycle", err)
	}
	// The cycle is named in the error.
	if msg := err.Error(); !strings.Contains(msg, "A") || !strings.Contains(msg, "B") {
		t.Errorf("error %q does not name the cycle members", msg)
	}
}

func TestResolveOrder_SelfLoopViaLongerCycle(t *testing.T) {
	a := mustRule(t, "A", "C")
	b := mustRule(t, "B", "A")
	c := mustRule(t, "C", "B")

	_, err := ResolveOrder([]Rule{a, b, c})
	if !errors.Is(err, types.ErrDependencyCycle) {
		t.Fatalf("error = %v, want ErrDependencyCycle", err)
	}
}

func TestResolveOrder_UnresolvedDependency(t *testing.T) {
	a := mustRule(t, "A", "ghost")

	_, err := ResolveOrder([]Rule{a})
	if !errors.Is(err, types.ErrUnresolvedDependency) {
		t.Fatalf("error = %v, want ErrUnresolvedDependency", err)
	}
	var derr *types.DependencyError
	if !errors.As(err, &derr) {
		t.Fatalf("error type = %T, want *types.DependencyError", err)
	}
	if derr.Rule != "A" {
		t.Errorf("DependencyError.Rule = %q, want %q", derr.Rule, "A")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error %q does not name the missing dependency", err.Error())
	}
}

func TestResolveOrder_DuplicateName(t *testing.T) {
	_, err := ResolveOrder([]Rule{mustRule(t, "A"), mustRule(t, "A")})
	if !errors.Is(err, types.ErrDuplicateRuleName) {
		t.Fatalf("error = %v, want ErrDuplicateRuleName", err)
	}
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *types.ValidationError", err)
	}
}

func TestResolveOrder_Diamond(t *testing.T) {
	// base -> left, base -> right, top -> both; base first, top last.
	ordered, err := ResolveOrder([]Rule{
		mustRule(t, "top", "left", "right"),
		mustRule(t, "left", "base"),
		mustRule(t, "right", "base"),
		mustRule(t, "base"),
	})
	if err != nil {
		t.Fatalf("ResolveOrder() error = %v, want nil", err)
	}

	pos := make(map[string]int)
	for i, r := range ordered {
		pos[r.Name()] = i
	}
	if pos["base"] > pos["left"] || pos["base"] > pos["right"] {
		t.Errorf("base not before its dependents: %v", orderNames(ordered))
	}
	if pos["top"] < pos["left"] || pos["top"] < pos["right"] {
		t.Errorf("top not after its dependencies: %v", orderNames(ordered))
	}
	// left declared before right, no edge between them.
	if pos["left"] > pos["right"] {
		t.Errorf("tie-break violated declaration order: %v", orderNames(ordered))
	}
}
