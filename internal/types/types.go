// Package types provides domain models shared across FieldBridge components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only
// encoding/json so embedders can consume rule definitions without pulling in
// engine dependencies. ID utilities in ids.go import uuid but are isolated
// for selective inclusion.
//
// Separation from the engine: these are the raw, declarative shapes as they
// appear on the wire (JSON rule files, catalog rows). The validated,
// immutable forms live in internal/rules and are produced by compilation.
package types

// TypeTag identifies a record type within a schema (e.g. "Generator",
// "ThermalStandard"). Tags are opaque to the engine; the caller-supplied
// registry gives them meaning.
type TypeTag = string

// Resource limits enforced at rule compilation to keep evaluation costs
// bounded regardless of what a rule file declares.
const (
	// MaxFilterDepth prevents stack exhaustion from deeply nested
	// any_of/all_of composition. 16 levels is far beyond any practical
	// rule expression.
	MaxFilterDepth = 16

	// MaxFilterValues limits membership lists (eq/neq/in) to keep a single
	// leaf evaluation from degrading to large linear scans.
	MaxFilterValues = 64

	// MaxFieldMapEntries bounds per-rule mapping work. 256 fields covers
	// the widest component schemas seen in practice.
	MaxFieldMapEntries = 256

	// MaxRuleSetSize bounds a single translation run. Catalogs reject
	// larger sets at import time.
	MaxRuleSetSize = 1000
)
