package builtin

import (
	"strings"

	"github.com/zeebo/xxh3"

	"h1b/pkg/records"
)

// Dedup policies.
const (
	KeepFirst = "keep-first"
	KeepLast  = "keep-last"
)

// DeDup collapses records sharing the same value in Keys. Disclosure files
// re-list amended or withdrawn-then-refiled cases under the same case number;
// DeDup keeps one record per number according to Policy:
//
//   - "keep-first": the earliest occurrence wins
//   - "keep-last":  the latest occurrence wins (default)
//
// Records whose key columns are all empty are not keyed and pass through.
// Output keeps the input order of the surviving records.
type DeDup struct {
	Keys   []string
	Policy string
}

func (d DeDup) Apply(in []records.Record) []records.Record {
	if len(in) == 0 || len(d.Keys) == 0 {
		return in
	}
	policy := strings.ToLower(strings.TrimSpace(d.Policy))

	// Key hash → index of the winning record.
	winners := make(map[xxh3.Uint128]int, len(in))
	for i, r := range in {
		key, ok := d.keyOf(r)
		if !ok {
			continue
		}
		if _, seen := winners[key]; seen && policy == KeepFirst {
			continue
		}
		winners[key] = i
	}

	out := make([]records.Record, 0, len(winners))
	for i, r := range in {
		key, ok := d.keyOf(r)
		if ok && winners[key] != i {
			continue
		}
		out = append(out, r)
	}
	return out
}

// keyOf hashes the key columns joined by a unit separator.
func (d DeDup) keyOf(r records.Record) (xxh3.Uint128, bool) {
	var b strings.Builder
	set := false
	for i, k := range d.Keys {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		v := r.Value(k)
		if v != "" {
			set = true
		}
		b.WriteString(v)
	}
	if !set {
		return xxh3.Uint128{}, false
	}
	return xxh3.HashString128(b.String()), true
}
