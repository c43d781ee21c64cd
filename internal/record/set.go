package record

/*
 * Shared record collection.
 *
 * Set is the append-only collection the executor reads from and writes to.
 * Rules executing later in the resolved order see records produced by
 * earlier rules through the same Set; no other state is carried between
 * rules.
 *
 * Snapshot discipline: a rule iterates a snapshot taken before it starts,
 * so a rule never observes its own output mid-stream. Appends happen only
 * between rules, which keeps snapshots cheap (slice header copy).
 */

// Set is an ordered, append-only collection of records.
// The zero value is ready to use.
type Set struct {
	records []Record
}

// NewSet builds a Set seeded with the given records.
func NewSet(records ...[]Record) *Set {
	s := &Set{}
	for _, batch := range records {
		s.records = append(s.records, batch...)
	}
	return s
}

// Append adds records to the end of the collection.
func (s *Set) Append(records ...Record) {
	s.records = append(s.records, records...)
}

// Snapshot returns a stable view of the current contents. Later appends are
// not visible through a previously taken snapshot.
func (s *Set) Snapshot() []Record {
	return s.records[:len(s.records):len(s.records)]
}

// Len returns the number of records currently in the collection.
func (s *Set) Len() int { return len(s.records) }

// OfType returns all records carrying the given type tag, in insertion
// order. Convenience for getters that resolve references to records
// produced by earlier rules.
func (s *Set) OfType(tag string) []Record {
	var out []Record
	for _, r := range s.records {
		if r.TypeTag() == tag {
			out = append(out, r)
		}
	}
	return out
}

// FindByField returns the first record of the given type whose named field
// equals value, or nil if none matches.
func (s *Set) FindByField(tag, field string, value any) Record {
	for _, r := range s.records {
		if r.TypeTag() != tag {
			continue
		}
		if v, ok := r.Field(field); ok && v == value {
			return r
		}
	}
	return nil
}
