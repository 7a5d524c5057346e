// Package transformer defines the record-slice transformation contract and an
// ordered chain of transformations.
package transformer

import "h1b/pkg/records"

// Transformer rewrites a slice of records. Implementations may mutate records
// in place and may return a shorter slice.
type Transformer interface {
	Apply([]records.Record) []records.Record
}

// Chain is an ordered list of transformers.
type Chain []Transformer

func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		if t == nil {
			continue
		}
		out = t.Apply(out)
	}
	return out
}
