// Package report builds the ranked "top N" tables of certified applications.
//
// Each table is produced the same way: reconcile the columns a role is spread
// over, keep certified records with a non-empty group value, sort by that
// value, count runs of equal values in one pass, then rank the runs by count
// (descending) and label (ascending) and keep the first N.
package report

import (
	"fmt"
	"strconv"

	"h1b/internal/query"
	"h1b/internal/schema"
	"h1b/internal/transformer"
	"h1b/internal/transformer/builtin"
	"h1b/pkg/records"
)

// Output column names.
const (
	ColOccupations = "TOP_OCCUPATIONS"
	ColStates      = "TOP_STATES"
	ColCount       = "NUMBER_CERTIFIED_APPLICATIONS"
	ColPercentage  = "PERCENTAGE"
)

const (
	// DefaultTop is the number of rows kept in each report.
	DefaultTop = 10

	// DefaultCertifiedStatus is the status value counted as certified. The
	// comparison is exact and case-sensitive.
	DefaultCertifiedStatus = "CERTIFIED"
)

// Options tunes report generation.
type Options struct {
	// CertifiedStatus overrides DefaultCertifiedStatus when non-empty.
	CertifiedStatus string
}

func (o Options) status() string {
	if o.CertifiedStatus != "" {
		return o.CertifiedStatus
	}
	return DefaultCertifiedStatus
}

// Table is a finished report: the output column order and its rows.
type Table struct {
	Columns []string
	Rows    []records.Record

	// Total is the number of records that passed the filter. Every row's
	// percentage is relative to it, including rows beyond the limit.
	Total int
}

// Grouping describes one report over a resolved Layout.
type Grouping struct {
	// Label is the header of the label column, e.g. ColStates.
	Label string

	// Layout maps roles to the dataset's columns. Only primary columns are
	// read once Reconcile has run.
	Layout schema.Layout

	// Field is the role grouped on.
	Field schema.Role

	// Require lists further roles that must be non-empty for a record to
	// count.
	Require []schema.Role

	// Reconcile runs before filtering to collapse multi-column roles.
	Reconcile transformer.Chain
}

// TopGroups ranks the certified records of recs by g.Field and returns the
// first n rows; n <= 0 keeps every row. Records are mutated by g.Reconcile.
// It fails with ErrZeroDenominator when no record passes the filter.
func TopGroups(n int, recs []records.Record, g Grouping, opts Options) (Table, error) {
	recs = g.Reconcile.Apply(recs)

	l := g.Layout
	field := l.Primary(g.Field)
	status := opts.status()
	filtered, err := query.Run(recs, query.Spec{
		Filter: func(r records.Record) bool {
			if l.Value(r, schema.CertificationStatus) != status || l.Value(r, g.Field) == "" {
				return false
			}
			for _, role := range g.Require {
				if l.Value(r, role) == "" {
					return false
				}
			}
			return true
		},
		Project:  []string{l.Primary(schema.CaseNumber), field},
		SortKeys: []string{field},
	})
	if err != nil {
		return Table{}, fmt.Errorf("filter %s: %w", field, err)
	}

	total := len(filtered)
	if total == 0 {
		return Table{}, fmt.Errorf("%s: no %s records: %w", g.Label, status, ErrZeroDenominator)
	}

	var rows []records.Record
	for start := 0; start < total; {
		label := filtered[start].Value(field)
		end := start + 1
		for end < total && filtered[end].Value(field) == label {
			end++
		}
		count := end - start
		pct, err := Percentage(count, total)
		if err != nil {
			return Table{}, fmt.Errorf("%s %q: %w", g.Label, label, err)
		}
		rows = append(rows, records.Record{
			g.Label:       label,
			ColCount:      strconv.Itoa(count),
			ColPercentage: pct,
		})
		start = end
	}

	ranked, err := query.Run(rows, query.Spec{
		SortKeys:  []string{ColCount, g.Label},
		SortOrder: []query.Direction{query.Descending, query.Ascending},
		Limit:     n,
	})
	if err != nil {
		return Table{}, fmt.Errorf("rank %s: %w", g.Label, err)
	}

	return Table{
		Columns: []string{g.Label, ColCount, ColPercentage},
		Rows:    ranked,
		Total:   total,
	}, nil
}

// TopOccupations ranks certified applications by occupation title. Only
// records with both a title and an occupation code count.
func TopOccupations(n int, recs []records.Record, l schema.Layout, opts Options) (Table, error) {
	return TopGroups(n, recs, Grouping{
		Label:   ColOccupations,
		Layout:  l,
		Field:   schema.OccupationName,
		Require: []schema.Role{schema.OccupationCode},
		Reconcile: transformer.Chain{
			builtin.Coalesce{Columns: l.Columns(schema.CaseNumber)},
			builtin.Coalesce{Columns: l.Columns(schema.CertificationStatus)},
			builtin.CoalescePaired{
				Keys:       l.Columns(schema.OccupationCode),
				Companions: l.Columns(schema.OccupationName),
			},
		},
	}, opts)
}

// TopStates ranks certified applications by work state.
func TopStates(n int, recs []records.Record, l schema.Layout, opts Options) (Table, error) {
	return TopGroups(n, recs, Grouping{
		Label:  ColStates,
		Layout: l,
		Field:  schema.WorkState,
		Reconcile: transformer.Chain{
			builtin.Coalesce{Columns: l.Columns(schema.WorkState)},
			builtin.Coalesce{Columns: l.Columns(schema.CaseNumber)},
			builtin.Coalesce{Columns: l.Columns(schema.CertificationStatus)},
		},
	}, opts)
}
