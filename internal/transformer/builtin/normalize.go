package builtin

import (
	"strings"

	"h1b/pkg/records"
)

const nbsp = "\u00a0"

// Normalize replaces NO-BREAK SPACE with an ASCII space and trims surrounding
// white space in every value. Records are mutated in place.
type Normalize struct{}

func (Normalize) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for k, v := range r {
			s := strings.TrimSpace(strings.ReplaceAll(v, nbsp, " "))
			if s != v {
				r[k] = s
			}
		}
	}
	return in
}
