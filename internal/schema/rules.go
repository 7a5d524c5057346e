package schema

import "regexp"

// Rule binds a role to the header names it is known by and to the pattern
// tried when none of those names is present.
type Rule struct {
	Role     Role
	Aliases  []string
	Fallback *regexp.Regexp
}

// DefaultRules is the alias table for the DOL disclosure files from FY2008
// onward. Patterns are anchored at both ends.
var DefaultRules = []Rule{
	{
		Role: OccupationName,
		Aliases: []string{
			"pw_soc_title", "pw_soc_name", "suggested_soc_title", "suggested_soc_name",
			"pwd_soc_title", "pwd_soc_name", "soc_title", "lca_case_soc_name",
			"lca_case_soc_title", "soc_name",
		},
		Fallback: regexp.MustCompile(`^.*(soc).*_(title|name)$`),
	},
	{
		Role: OccupationCode,
		Aliases: []string{
			"pw_soc_code", "suggested_soc_code", "pwd_soc_code", "soc_code",
			"pw soc code", "lca_case_soc_code",
		},
		Fallback: regexp.MustCompile(`^.*(soc).*_(code)$`),
	},
	{
		Role:     CertificationStatus,
		Aliases:  []string{"case_status", "case status", "approval_status", "status"},
		Fallback: regexp.MustCompile(`^.*(case|approval).*status$`),
	},
	{
		Role:     CaseNumber,
		Aliases:  []string{"case_number", "case number", "case_no", "lca_case_number"},
		Fallback: regexp.MustCompile(`^.*case.*_(number|no)$`),
	},
	{
		Role: WorkState,
		Aliases: []string{
			"job_info_work_state", "primary_worksite_state", "worksite_state",
			"job info work state", "alien_work_state", "worksite_location_state",
			"state_2", "state_1", "lca_case_workloc1_state", "lca_case_workloc2_state",
		},
		Fallback: regexp.MustCompile(`^.*(work|worksite).*_state$`),
	},
}

// WithAliases returns a copy of rules where each role's alias list is extended
// by extra[role]. The input slice is not modified.
func WithAliases(rules []Rule, extra map[Role][]string) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		aliases := append([]string(nil), r.Aliases...)
		aliases = append(aliases, extra[r.Role]...)
		out[i] = Rule{Role: r.Role, Aliases: aliases, Fallback: r.Fallback}
	}
	return out
}
