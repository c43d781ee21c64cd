package types

/*
 * Declarative rule shapes.
 *
 * Provides RuleSpec, FilterSpec, FieldMap, and StringList used by
 * internal/rules for compilation. These types are wire-format friendly:
 * they round-trip through JSON and carry no validation state. All
 * invariant checking happens at compile time in internal/rules.
 *
 * Key types:
 *   - RuleSpec: one transformation rule as declared (JSON rule files)
 *   - FilterSpec: recursive predicate (leaf comparison or any_of/all_of)
 *   - FieldMap: ordered target-field -> source-field/getter mapping
 *   - StringList: accepts a JSON string or array of strings
 *
 * Dependencies: encoding/json only.
 */

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// StringList unmarshals from either a single JSON string or an array of
// strings. Rule files commonly write `"source_type": "Bus"` for the one-type
// case and a list for fan-out.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

// FieldMapping is one entry of a FieldMap: the target field name and the
// source it is resolved from (a source field name or a registered getter key).
type FieldMapping struct {
	Target string
	Source string
}

// FieldMap is an ordered mapping from target field name to source field name
// or getter key. Order is the declaration order of the JSON object; it is
// preserved so diagnostics and serialization are deterministic.
type FieldMap []FieldMapping

// UnmarshalJSON decodes a JSON object while preserving key order.
// json.Unmarshal into a map would lose it, so the token stream is walked
// directly.
func (fm *FieldMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("field_map must be a JSON object")
	}

	var entries FieldMap
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		var val string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("field_map entry %q must map to a string: %w", key, err)
		}
		entries = append(entries, FieldMapping{Target: key, Source: val})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*fm = entries
	return nil
}

// MarshalJSON encodes the map as a JSON object in entry order.
func (fm FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range fm {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Target)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Source)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FilterSpec represents a predicate over record fields, either as a leaf
// comparison (Field/Op set) or a boolean composition (AnyOf/AllOf set).
// Exactly one shape must be populated; compilation rejects mixed shapes.
type FilterSpec struct {
	Field     string   `json:"field,omitempty"`
	Op        string   `json:"op,omitempty"`
	Values    []any    `json:"values,omitempty"`
	Prefixes  []string `json:"prefixes,omitempty"`
	Casefold  *bool    `json:"casefold,omitempty"`   // nil = default true
	OnMissing string   `json:"on_missing,omitempty"` // "include" or "exclude" (default)

	AnyOf []FilterSpec `json:"any_of,omitempty"`
	AllOf []FilterSpec `json:"all_of,omitempty"`
}

// IsLeaf reports whether this filter declares a leaf comparison.
func (f *FilterSpec) IsLeaf() bool {
	return len(f.AnyOf) == 0 && len(f.AllOf) == 0
}

// RuleSpec represents one transformation rule as declared. Field names match
// the JSON rule-file surface.
type RuleSpec struct {
	Name       string         `json:"name"`
	SourceType StringList     `json:"source_type"`
	TargetType StringList     `json:"target_type"`
	Version    int            `json:"version,omitempty"`
	FieldMap   FieldMap       `json:"field_map,omitempty"`
	Defaults   map[string]any `json:"defaults,omitempty"`
	Filter     *FilterSpec    `json:"filter,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty"`
}

// SpecFromMap converts a plain parsed-JSON mapping into a RuleSpec.
// Re-marshaling through encoding/json sorts map keys, so field_map entries
// from an unordered map land in deterministic (sorted) order; byte input via
// json.Unmarshal keeps declaration order instead.
func SpecFromMap(m map[string]any) (RuleSpec, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return RuleSpec{}, err
	}
	var spec RuleSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return RuleSpec{}, err
	}
	return spec, nil
}

// SortedDefaults returns the default-value target fields in sorted order.
// Map iteration order is random; callers that report or apply defaults need
// a stable order.
func (r *RuleSpec) SortedDefaults() []string {
	keys := make([]string, 0, len(r.Defaults))
	for k := range r.Defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
