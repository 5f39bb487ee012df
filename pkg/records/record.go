// Package records defines the row representation shared by parsers,
// transformers and sinks.
package records

// Record is a single row keyed by column name. A nil value means the cell is
// missing; parsers produce strings, Coerce and Melt produce int and float64.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
