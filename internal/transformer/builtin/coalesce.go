// Package builtin contains the record transformers used by the report
// pipeline.
//
// Coalesce and CoalescePaired collapse a role that is spread over several
// physical columns into its primary column. Later columns are never modified,
// and downstream stages read only the primary column.
package builtin

import "h1b/pkg/records"

// FirstNonEmpty returns the first non-empty value of cols in rec, scanning left
// to right, or "" when every column is empty or missing.
func FirstNonEmpty(rec records.Record, cols []string) string {
	for _, c := range cols {
		if v := rec.Value(c); v != "" {
			return v
		}
	}
	return ""
}

// FirstNonEmptyIndex is FirstNonEmpty returning the position instead of the
// value; -1 when nothing is set.
func FirstNonEmptyIndex(rec records.Record, cols []string) int {
	for i, c := range cols {
		if !rec.Empty(c) {
			return i
		}
	}
	return -1
}

// Coalesce writes FirstNonEmpty(rec, Columns) into Columns[0] for every record.
// It is a no-op for fewer than two columns.
type Coalesce struct {
	Columns []string
}

func (c Coalesce) Apply(in []records.Record) []records.Record {
	if len(c.Columns) < 2 {
		return in
	}
	primary := c.Columns[0]
	for _, r := range in {
		if !r.Empty(primary) {
			continue
		}
		if v := FirstNonEmpty(r, c.Columns[1:]); v != "" {
			r[primary] = v
		}
	}
	return in
}

// CoalescePaired reconciles two positionally linked column lists. When the
// primary key column is empty, the key and its companion are both copied from
// the first index whose key is set, so a code is never paired with a title from
// a different column group. Keys and Companions must have equal length; a
// mismatched pair is left untouched.
type CoalescePaired struct {
	Keys       []string
	Companions []string
}

func (c CoalescePaired) Apply(in []records.Record) []records.Record {
	if len(c.Keys) < 2 || len(c.Keys) != len(c.Companions) {
		return in
	}
	for _, r := range in {
		if !r.Empty(c.Keys[0]) {
			continue
		}
		i := FirstNonEmptyIndex(r, c.Keys)
		if i <= 0 {
			continue
		}
		r[c.Keys[0]] = r.Value(c.Keys[i])
		r[c.Companions[0]] = r.Value(c.Companions[i])
	}
	return in
}
