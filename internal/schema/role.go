// Package schema discovers which physical columns of a loaded dataset carry
// each semantic field the reports need. Historical H-1B exports rename their
// columns from year to year, so resolution is driven by a declarative table of
// known aliases with a regular-expression fallback per role.
package schema

import (
	"fmt"
	"strings"
)

// Role is a semantic category a physical column may fulfil.
type Role int

const (
	OccupationName Role = iota
	OccupationCode
	CertificationStatus
	CaseNumber
	WorkState
)

// Roles lists every role in resolution priority order.
var Roles = []Role{OccupationName, OccupationCode, CertificationStatus, CaseNumber, WorkState}

var roleNames = map[Role]string{
	OccupationName:      "occupation_name",
	OccupationCode:      "occupation_code",
	CertificationStatus: "certification_status",
	CaseNumber:          "case_number",
	WorkState:           "work_state",
}

// String returns the role's configuration key, e.g. "work_state".
func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole maps a configuration key back to its Role.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for r, name := range roleNames {
		if name == key {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}
