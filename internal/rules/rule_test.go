// internal/rules/rule_test.go
package rules

import (
	"errors"
	"reflect"
	"testing"

	"github.com/solatis/fieldbridge/internal/types"
)

func TestNewRule_Valid(t *testing.T) {
	rule, err := NewRule(types.RuleSpec{
		Name:       "gens",
		SourceType: types.StringList{"Generator"},
		TargetType: types.StringList{"ThermalStandard"},
		Version:    2,
		FieldMap: types.FieldMap{
			{Target: "name", Source: "name"},
			{Target: "capacity", Source: "max_active_power"},
		},
		Defaults:  map[string]any{"zone": "unspecified"},
		DependsOn: []string{"buses"},
	})
	if err != nil {
		t.Fatalf("NewRule() error = %v, want nil", err)
	}

	if rule.Name() != "gens" {
		t.Errorf("Name() = %q, want %q", rule.Name(), "gens")
	}
	if rule.Version() != 2 {
		t.Errorf("Version() = %d, want 2", rule.Version())
	}
	if got := rule.SourceTypes(); !reflect.DeepEqual(got, []string{"Generator"}) {
		t.Errorf("SourceTypes() = %v, want [Generator]", got)
	}
	if rule.HasMultipleTargets() {
		t.Error("HasMultipleTargets() = true, want false")
	}
	if rule.HasMultipleSources() {
		t.Error("HasMultipleSources() = true, want false")
	}
	if !rule.MatchesSourceType("Generator") {
		t.Error("MatchesSourceType(Generator) = false, want true")
	}
	if rule.MatchesSourceType("Bus") {
		t.Error("MatchesSourceType(Bus) = true, want false")
	}
}

func TestNewRule_SingleTypeAlwaysReturnsList(t *testing.T) {
	rule, err := NewRule(types.RuleSpec{
		Name:       "r",
		SourceType: types.StringList{"A"},
		TargetType: types.StringList{"B", "C"},
	})
	if err != nil {
		t.Fatalf("NewRule() error = %v, want nil", err)
	}
	if got := rule.SourceTypes(); len(got) != 1 {
		t.Errorf("len(SourceTypes()) = %d, want 1", len(got))
	}
	if got := rule.TargetTypes(); len(got) != 2 {
		t.Errorf("len(TargetTypes()) = %d, want 2", len(got))
	}
	if !rule.HasMultipleTargets() {
		t.Error("HasMultipleTargets() = false, want true")
	}
}

func TestNewRule_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		spec types.RuleSpec
	}{
		{"missing name", types.RuleSpec{SourceType: types.StringList{"A"}, TargetType: types.StringList{"B"}}},
		{"no source type", types.RuleSpec{Name: "r", TargetType: types.StringList{"B"}}},
		{"no target type", types.RuleSpec{Name: "r", SourceType: types.StringList{"A"}}},
		{"empty source tag", types.RuleSpec{Name: "r", SourceType: types.StringList{""}, TargetType: types.StringList{"B"}}},
		{"self dependency", types.RuleSpec{Name: "r", SourceType: types.StringList{"A"}, TargetType: types.StringList{"B"}, DependsOn: []string{"r"}}},
		{"empty mapping value", types.RuleSpec{Name: "r", SourceType: types.StringList{"A"}, TargetType: types.StringList{"B"},
			FieldMap: types.FieldMap{{Target: "x", Source: ""}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRule(tt.spec)
			if err == nil {
				t.Fatal("NewRule() error = nil, want ValidationError")
			}
			var verr *types.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want *types.ValidationError", err)
			}
		})
	}
}

func TestNewRule_DuplicateTargetField(t *testing.T) {
	_, err := NewRule(types.RuleSpec{
		Name:       "r",
		SourceType: types.StringList{"A"},
		TargetType: types.StringList{"B"},
		FieldMap: types.FieldMap{
			{Target: "name", Source: "name"},
			{Target: "name", Source: "id"},
		},
	})
	if !errors.Is(err, types.ErrDuplicateTargetField) {
		t.Fatalf("error = %v, want ErrDuplicateTargetField", err)
	}
}

func TestNewRule_InvalidFilterNamesRule(t *testing.T) {
	_, err := NewRule(types.RuleSpec{
		Name:       "gens",
		SourceType: types.StringList{"A"},
		TargetType: types.StringList{"B"},
		Filter:     &types.FilterSpec{Field: "count", Op: "geq", Values: []any{1, 2}},
	})
	if err == nil {
		t.Fatal("NewRule() error = nil, want ValidationError")
	}
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *types.ValidationError", err)
	}
	if verr.Rule != "gens" {
		t.Errorf("ValidationError.Rule = %q, want %q", verr.Rule, "gens")
	}
}

func TestRule_AccessorsReturnCopies(t *testing.T) {
	rule, err := NewRule(types.RuleSpec{
		Name:       "r",
		SourceType: types.StringList{"A"},
		TargetType: types.StringList{"B"},
		FieldMap:   types.FieldMap{{Target: "name", Source: "name"}},
		Defaults:   map[string]any{"zone": "z1"},
		DependsOn:  []string{"other"},
	})
	if err != nil {
		t.Fatalf("NewRule() error = %v", err)
	}

	// Mutating what accessors hand out must not affect the rule.
	rule.SourceTypes()[0] = "mutated"
	rule.TargetTypes()[0] = "mutated"
	rule.DependsOn()[0] = "mutated"
	rule.Defaults()["zone"] = "mutated"
	fm := rule.FieldMap()
	fm[0].Source = "mutated"

	if got := rule.SourceTypes()[0]; got != "A" {
		t.Errorf("SourceTypes()[0] = %q after mutation, want %q", got, "A")
	}
	if got := rule.TargetTypes()[0]; got != "B" {
		t.Errorf("TargetTypes()[0] = %q after mutation, want %q", got, "B")
	}
	if got := rule.DependsOn()[0]; got != "other" {
		t.Errorf("DependsOn()[0] = %q after mutation, want %q", got, "other")
	}
	if got := rule.Defaults()["zone"]; got != "z1" {
		t.Errorf("Defaults()[zone] = %v after mutation, want z1", got)
	}
	if got := rule.FieldMap()[0].Source; got != "name" {
		t.Errorf("FieldMap()[0].Source = %q after mutation, want %q", got, "name")
	}
}

func TestFromRecords_RoundTrip(t *testing.T) {
	records := []map[string]any{
		{
			"name":        "gens",
			"source_type": "Generator",
			"target_type": []any{"ThermalStandard", "RenewableDispatch"},
			"version":     float64(3),
			"field_map":   map[string]any{"name": "name", "rating": "max_active_power"},
			"defaults":    map[string]any{"zone": "unspecified"},
			"filter": map[string]any{
				"field":  "fuel",
				"op":     "eq",
				"values": []any{"coal"},
			},
			"depends_on": []any{"buses"},
		},
	}

	fromRecords, err := FromRecords(records)
	if err != nil {
		t.Fatalf("FromRecords() error = %v, want nil", err)
	}
	if len(fromRecords) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(fromRecords))
	}

	direct, err := NewRule(types.RuleSpec{
		Name:       "gens",
		SourceType: types.StringList{"Generator"},
		TargetType: types.StringList{"ThermalStandard", "RenewableDispatch"},
		Version:    3,
		FieldMap: types.FieldMap{
			// Map-sourced field maps land in sorted target order.
			{Target: "name", Source: "name"},
			{Target: "rating", Source: "max_active_power"},
		},
		Defaults:  map[string]any{"zone": "unspecified"},
		Filter:    &types.FilterSpec{Field: "fuel", Op: "eq", Values: []any{"coal"}},
		DependsOn: []string{"buses"},
	})
	if err != nil {
		t.Fatalf("NewRule() error = %v, want nil", err)
	}

	got, want := fromRecords[0], direct
	if got.Name() != want.Name() {
		t.Errorf("Name = %q, want %q", got.Name(), want.Name())
	}
	if got.Version() != want.Version() {
		t.Errorf("Version = %d, want %d", got.Version(), want.Version())
	}
	if !reflect.DeepEqual(got.SourceTypes(), want.SourceTypes()) {
		t.Errorf("SourceTypes = %v, want %v", got.SourceTypes(), want.SourceTypes())
	}
	if !reflect.DeepEqual(got.TargetTypes(), want.TargetTypes()) {
		t.Errorf("TargetTypes = %v, want %v", got.TargetTypes(), want.TargetTypes())
	}
	if !reflect.DeepEqual(got.FieldMap(), want.FieldMap()) {
		t.Errorf("FieldMap = %v, want %v", got.FieldMap(), want.FieldMap())
	}
	if !reflect.DeepEqual(got.Defaults(), want.Defaults()) {
		t.Errorf("Defaults = %v, want %v", got.Defaults(), want.Defaults())
	}
	if !reflect.DeepEqual(got.DependsOn(), want.DependsOn()) {
		t.Errorf("DependsOn = %v, want %v", got.DependsOn(), want.DependsOn())
	}
}

func TestFromRecords_AggregatesAllInvalidRecords(t *testing.T) {
	records := []map[string]any{
		{"name": "ok", "source_type": "A", "target_type": "B"},
		{"source_type": "A", "target_type": "B"},                // missing name
		{"name": "bad-filter", "source_type": "A", "target_type": "B", // numeric op, 2 values
			"filter": map[string]any{"field": "n", "op": "gt", "values": []any{1, 2}}},
	}

	_, err := FromRecords(records)
	if err == nil {
		t.Fatal("FromRecords() error = nil, want BatchError")
	}
	var berr *types.BatchError
	if !errors.As(err, &berr) {
		t.Fatalf("error type = %T, want *types.BatchError", err)
	}
	if len(berr.Errs) != 2 {
		t.Fatalf("len(BatchError.Errs) = %d, want 2", len(berr.Errs))
	}
	if _, ok := berr.Errs[1]; !ok {
		t.Error("BatchError missing entry for record index 1")
	}
	if _, ok := berr.Errs[2]; !ok {
		t.Error("BatchError missing entry for record index 2")
	}
}

func TestFromJSON_PreservesFieldMapOrder(t *testing.T) {
	data := []byte(`[
		{
			"name": "buses",
			"source_type": "Bus",
			"target_type": "ACBus",
			"field_map": {"zulu": "z", "alpha": "a", "mike": "m"}
		}
	]`)

	rulesOut, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON() error = %v, want nil", err)
	}
	fm := rulesOut[0].FieldMap()
	want := []string{"zulu", "alpha", "mike"}
	for i, target := range want {
		if fm[i].Target != target {
			t.Errorf("FieldMap()[%d].Target = %q, want %q (declaration order)", i, fm[i].Target, target)
		}
	}
}

func TestRule_SpecRoundTrip(t *testing.T) {
	spec := types.RuleSpec{
		Name:       "gens",
		SourceType: types.StringList{"Generator"},
		TargetType: types.StringList{"ThermalStandard"},
		FieldMap:   types.FieldMap{{Target: "name", Source: "name"}},
		Filter:     &types.FilterSpec{Field: "fuel", Op: "eq", Values: []any{"coal"}},
	}
	rule, err := NewRule(spec)
	if err != nil {
		t.Fatalf("NewRule() error = %v", err)
	}

	again, err := NewRule(rule.Spec())
	if err != nil {
		t.Fatalf("NewRule(rule.Spec()) error = %v", err)
	}
	if !reflect.DeepEqual(again.Spec(), rule.Spec()) {
		t.Errorf("Spec round-trip mismatch:\ngot  %+v\nwant %+v", again.Spec(), rule.Spec())
	}

	// Mutating the returned spec must not affect the rule.
	mutated := rule.Spec()
	mutated.FieldMap[0].Source = "mutated"
	if rule.FieldMap()[0].Source != "name" {
		t.Error("mutating Spec() copy leaked into the rule")
	}
}
