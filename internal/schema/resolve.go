package schema

import (
	"errors"
	"fmt"

	"h1b/pkg/records"
)

var (
	// ErrRoleNotFound means no header matched a role's aliases or pattern.
	ErrRoleNotFound = errors.New("required column not found")

	// ErrArityMismatch means the occupation name and code roles resolved to a
	// different number of columns, so they cannot be reconciled pairwise.
	ErrArityMismatch = errors.New("occupation name/code column count mismatch")
)

// Resolve returns the headers that represent rule.Role, in header order. Exact
// alias matches win; the fallback pattern is only consulted when none match.
// The result is empty when neither pass finds a column.
func Resolve(headers []string, rule Rule) []string {
	known := make(map[string]struct{}, len(rule.Aliases))
	for _, a := range rule.Aliases {
		known[a] = struct{}{}
	}

	var out []string
	for _, h := range headers {
		if _, ok := known[h]; ok {
			out = append(out, h)
		}
	}
	if len(out) > 0 || rule.Fallback == nil {
		return out
	}

	for _, h := range headers {
		if rule.Fallback.MatchString(h) {
			out = append(out, h)
		}
	}
	return out
}

// Layout is the validated role → columns mapping for one dataset. Every role
// has at least one column; the first is the primary (canonical) column.
type Layout struct {
	cols map[Role][]string
}

// ResolveLayout resolves every role in rules against headers. It fails with
// ErrRoleNotFound naming each unresolved role, or ErrArityMismatch when the
// occupation name and code lists differ in length.
func ResolveLayout(headers []string, rules []Rule) (Layout, error) {
	l := Layout{cols: make(map[Role][]string, len(rules))}

	var missing []error
	for _, rule := range rules {
		cols := Resolve(headers, rule)
		if len(cols) == 0 {
			missing = append(missing, fmt.Errorf("%w: %s", ErrRoleNotFound, rule.Role))
			continue
		}
		l.cols[rule.Role] = cols
	}
	for _, r := range Roles {
		if _, ok := l.cols[r]; !ok && !hasRule(rules, r) {
			missing = append(missing, fmt.Errorf("%w: %s (no rule)", ErrRoleNotFound, r))
		}
	}
	if len(missing) > 0 {
		return Layout{}, errors.Join(missing...)
	}

	names, codes := l.cols[OccupationName], l.cols[OccupationCode]
	if len(names) != len(codes) {
		return Layout{}, fmt.Errorf("%w: %d name columns %v, %d code columns %v",
			ErrArityMismatch, len(names), names, len(codes), codes)
	}
	return l, nil
}

func hasRule(rules []Rule, r Role) bool {
	for _, rule := range rules {
		if rule.Role == r {
			return true
		}
	}
	return false
}

// Columns returns the ordered physical columns for role.
func (l Layout) Columns(role Role) []string { return l.cols[role] }

// Primary returns the canonical column for role, or "" for an unresolved role.
func (l Layout) Primary(role Role) string {
	if cols := l.cols[role]; len(cols) > 0 {
		return cols[0]
	}
	return ""
}

// Value reads role's canonical value from rec.
func (l Layout) Value(rec records.Record, role Role) string {
	return rec.Value(l.Primary(role))
}
