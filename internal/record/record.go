// Package record defines the record contract the translation engine consumes
// and a minimal map-backed implementation for CLI loading and tests.
//
// The engine requires only two things from a record: a type tag and named
// field access with a presence check. Collaborators supplying richer records
// (CSV rows, HDF5 datasets, component structs) implement Record themselves.
package record

import (
	"encoding/json"
	"fmt"
)

// Record is the minimal read contract required by the engine.
// Implementations must be safe for concurrent reads; the engine never writes
// through this interface.
type Record interface {
	// TypeTag returns the record's declared type (e.g. "Generator").
	TypeTag() string

	// Field returns the named field's value and whether it is present.
	// A present field holding nil returns (nil, true).
	Field(name string) (any, bool)
}

// MapRecord is a map-backed Record. The type tag is carried out of band so
// field names never collide with it.
type MapRecord struct {
	Tag    string
	Fields map[string]any
}

// TypeTag implements Record.
func (m MapRecord) TypeTag() string { return m.Tag }

// Field implements Record.
func (m MapRecord) Field(name string) (any, bool) {
	v, ok := m.Fields[name]
	return v, ok
}

// New builds a MapRecord from a tag and field values. The map is copied so
// later caller mutations don't leak into the record.
func New(tag string, fields map[string]any) MapRecord {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return MapRecord{Tag: tag, Fields: cp}
}

// UnmarshalJSONRecords decodes a JSON array of objects into records.
// Each object must carry a "type" member naming its type tag; the remaining
// members become fields.
func UnmarshalJSONRecords(data []byte) ([]Record, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}

	out := make([]Record, 0, len(raw))
	for i, obj := range raw {
		tag, ok := obj["type"].(string)
		if !ok || tag == "" {
			return nil, fmt.Errorf("record [%d]: missing or non-string \"type\" member", i)
		}
		fields := make(map[string]any, len(obj)-1)
		for k, v := range obj {
			if k == "type" {
				continue
			}
			fields[k] = v
		}
		out = append(out, MapRecord{Tag: tag, Fields: fields})
	}
	return out, nil
}
