package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"h1b/internal/schema"
	"h1b/internal/transformer/builtin"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "report.top",
// "aliases.work_state"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidateConfig performs static validation of c without mutating it.
// Callers decide whether warnings are fatal; main only stops on errors.
func ValidateConfig(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs and metrics",
		})
	}
	issues = append(issues, validateParser(c.Parser)...)
	issues = append(issues, validateReport(c.Report)...)
	issues = append(issues, validateAliases(c.Aliases)...)
	issues = append(issues, validateDedupe(c.Dedupe)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	return issues
}

// Errors returns the error-severity issues joined into one error, or nil.
func Errors(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	if p.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unsupported parser kind %q; only csv is available", p.Kind),
		})
	}

	if v, ok := p.Options["comma"]; ok {
		s, isString := v.(string)
		switch {
		case !isString || utf8.RuneCountInString(s) != 1:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.comma",
				Message:  fmt.Sprintf("comma must be a single character, got %v", v),
			})
		case s == `"` || s == "\r" || s == "\n" || s == string(utf8.RuneError):
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.comma",
				Message:  fmt.Sprintf("comma %q cannot be used as a field delimiter", s),
			})
		}
	}
	if v, ok := p.Options["trim_space"]; ok {
		if _, isBool := v.(bool); !isBool {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.trim_space",
				Message:  fmt.Sprintf("trim_space must be a boolean, got %v", v),
			})
		}
	}
	if v, ok := p.Options["header_map"]; ok {
		if _, isMap := object(v); !isMap {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.header_map",
				Message:  "header_map must be an object of header -> column name",
			})
		}
	}
	return issues
}

func validateReport(r Report) []Issue {
	var issues []Issue
	if r.Top < 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "report.top",
			Message:  fmt.Sprintf("top must be at least 1, got %d", r.Top),
		})
	}
	if r.CertifiedStatus == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "report.certified_status",
			Message:  "certified_status must not be empty",
		})
	} else if r.CertifiedStatus != strings.TrimSpace(r.CertifiedStatus) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "report.certified_status",
			Message:  "certified_status has surrounding white space; status matching is exact",
		})
	}
	return issues
}

func validateAliases(aliases map[string][]string) []Issue {
	var issues []Issue
	for key, names := range aliases {
		path := "aliases." + key
		if _, err := schema.ParseRole(key); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  err.Error(),
			})
			continue
		}
		for _, n := range names {
			if strings.TrimSpace(n) == "" {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path,
					Message:  "empty alias is ignored",
				})
			}
		}
	}
	return issues
}

func validateDedupe(d Dedupe) []Issue {
	switch d.Policy {
	case "", builtin.KeepFirst, builtin.KeepLast:
		return nil
	}
	return []Issue{{
		Severity: SeverityError,
		Path:     "dedupe.policy",
		Message:  fmt.Sprintf("unknown policy %q; use %s or %s", d.Policy, builtin.KeepFirst, builtin.KeepLast),
	}}
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires a URL",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.StatsdAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.statsd_addr",
				Message:  "datadog backend requires a DogStatsD address",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics are disabled", m.Backend),
		})
	}
	return issues
}

// RoleAliases converts the configured aliases into schema roles. Aliases are
// lower-cased to match normalized headers and blank ones are dropped.
func (c Config) RoleAliases() (map[schema.Role][]string, error) {
	if len(c.Aliases) == 0 {
		return nil, nil
	}
	out := make(map[schema.Role][]string, len(c.Aliases))
	for key, names := range c.Aliases {
		role, err := schema.ParseRole(key)
		if err != nil {
			return nil, fmt.Errorf("aliases: %w", err)
		}
		for _, n := range names {
			if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
				out[role] = append(out[role], n)
			}
		}
	}
	return out, nil
}
