// Package records defines the in-memory row representation shared by the
// parser, transformers, query engine and report writer.
package records

// Record is a single row keyed by lower-cased column name. An empty string and
// a missing key both mean "no data"; use Value and Empty rather than indexing
// directly when that distinction must not matter.
type Record map[string]string

// Value returns the value stored under col, or "" when col is absent.
func (r Record) Value(col string) string { return r[col] }

// Empty reports whether col is missing or holds the empty string.
func (r Record) Empty(col string) bool { return r[col] == "" }

// Project returns a new Record holding only the listed columns. Columns absent
// from r stay absent in the result.
func (r Record) Project(cols []string) Record {
	out := make(Record, len(cols))
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}
