// Package query runs filter → project → sort → limit over in-memory records.
package query

import (
	"errors"
	"fmt"
	"sort"

	"h1b/pkg/records"
)

var (
	// ErrSortOrderMismatch is returned when SortOrder is given with a different
	// length than SortKeys.
	ErrSortOrderMismatch = errors.New("length of sort order and sort keys differ")

	// ErrUnknownDirection is returned for a SortOrder entry that is neither
	// Ascending nor Descending.
	ErrUnknownDirection = errors.New("unknown sort direction")
)

// Direction is a per-key sort direction.
type Direction string

const (
	Ascending  Direction = "Ascending"
	Descending Direction = "Descending"
)

// Spec describes one query. Every part is optional; the zero Spec returns the
// input unchanged.
type Spec struct {
	// Filter keeps the records for which it returns true.
	Filter func(records.Record) bool

	// Project, when non-nil, reduces each record to these columns.
	Project []string

	// SortKeys orders the result lexicographically by these columns.
	SortKeys []string

	// SortOrder holds one Direction per SortKey. When empty every key sorts
	// ascending.
	SortOrder []Direction

	// Limit truncates the sorted result when > 0.
	Limit int
}

// Validate reports a malformed Spec without running it.
func (s Spec) Validate() error {
	if len(s.SortOrder) == 0 {
		return nil
	}
	if len(s.SortOrder) != len(s.SortKeys) {
		return fmt.Errorf("%w: %d keys, %d directions", ErrSortOrderMismatch, len(s.SortKeys), len(s.SortOrder))
	}
	for i, d := range s.SortOrder {
		if d != Ascending && d != Descending {
			return fmt.Errorf("%w %q for key %q", ErrUnknownDirection, d, s.SortKeys[i])
		}
	}
	return nil
}

// Run applies spec to in and returns a new slice; in itself is not reordered.
// Records are shared with in unless Project is set. Sorting is stable: records
// that tie on every key keep their input order. Run returns no partial result
// when spec is invalid.
func Run(in []records.Record, spec Spec) ([]records.Record, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	out := make([]records.Record, 0, len(in))
	for _, r := range in {
		if spec.Filter != nil && !spec.Filter(r) {
			continue
		}
		if spec.Project != nil {
			r = r.Project(spec.Project)
		}
		out = append(out, r)
	}

	if len(spec.SortKeys) > 0 {
		cmp := comparator(spec.SortKeys, spec.SortOrder)
		sort.SliceStable(out, func(i, j int) bool { return cmp(out[i], out[j]) < 0 })
	}

	if spec.Limit > 0 && len(out) > spec.Limit {
		out = out[:spec.Limit]
	}
	return out, nil
}

// comparator folds the per-key comparisons: the first non-zero result wins,
// negated for Descending keys.
func comparator(keys []string, order []Direction) func(a, b records.Record) int {
	return func(a, b records.Record) int {
		for i, k := range keys {
			c := Compare(a.Value(k), b.Value(k))
			if c == 0 {
				continue
			}
			if len(order) > 0 && order[i] == Descending {
				return -c
			}
			return c
		}
		return 0
	}
}
