// Package config defines the run configuration of the report command and how
// it is assembled from defaults, an optional JSON or YAML file, environment
// variables and command-line flags (in increasing precedence).
//
// Example file (YAML):
//
//	job: fy2019
//	parser:
//	  kind: csv
//	  options: { comma: ";", trim_space: false }
//	report:
//	  top: 10
//	  certified_status: CERTIFIED
//	aliases:
//	  work_state: [emp_work_st]
//	dedupe:
//	  policy: keep-last
//	metrics:
//	  backend: pushgateway
//	  pushgateway_url: http://localhost:9091
package config

import (
	"encoding/json"

	"h1b/internal/parser/csv"
	"h1b/internal/report"
)

// Config is the complete configuration of one run.
type Config struct {
	// Job names the run in logs and metrics.
	Job string `json:"job" yaml:"job"`

	Parser  Parser              `json:"parser" yaml:"parser"`
	Report  Report              `json:"report" yaml:"report"`
	Aliases map[string][]string `json:"aliases" yaml:"aliases"`
	Dedupe  Dedupe              `json:"dedupe" yaml:"dedupe"`
	Metrics Metrics             `json:"metrics" yaml:"metrics"`

	// Command-line only.
	Path     string   `json:"-" yaml:"-"`
	Validate bool     `json:"-" yaml:"-"`
	Verbose  bool     `json:"-" yaml:"-"`
	Args     []string `json:"-" yaml:"-"`
}

// Parser selects and tunes the input parser. Recognised options for "csv":
// comma (string), trim_space (bool), header_map (object).
type Parser struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// Report tunes the aggregation.
type Report struct {
	Top             int    `json:"top" yaml:"top"`
	CertifiedStatus string `json:"certified_status" yaml:"certified_status"`
}

// Dedupe enables case-number de-duplication when Policy is set.
type Dedupe struct {
	Policy string `json:"policy" yaml:"policy"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	StatsdAddr     string `json:"statsd_addr" yaml:"statsd_addr"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Job: "h1b",
		Parser: Parser{
			Kind:    "csv",
			Options: Options{"comma": string(csv.DefaultComma)},
		},
		Report: Report{
			Top:             report.DefaultTop,
			CertifiedStatus: report.DefaultCertifiedStatus,
		},
		Metrics: Metrics{Backend: "none"},
	}
}

// CSVOptions translates the parser options bag into csv.Options.
func (c Config) CSVOptions() csv.Options {
	o := c.Parser.Options
	return csv.Options{
		Comma:     o.Rune("comma", csv.DefaultComma),
		TrimSpace: o.Bool("trim_space", false),
		HeaderMap: headerMap(o.StringMap("header_map")),
	}
}

// headerMap folds the keys the way the parser folds header names, so a key
// written as it appears in the file ("Case Status") still matches.
func headerMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[csv.NormalizeHeaders([]string{k}, nil)[0]] = v
	}
	return out
}

// Options fetches typed values from a free-form JSON/YAML object, returning
// the provided default when a key is absent or of an unexpected type.
type Options map[string]any

// Rune returns the first rune of a string value for key, or def when the key is
// missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if s, ok := o[key].(string); ok && len(s) > 0 {
		return []rune(s)[0]
	}
	return def
}

// StringMap returns the string-valued entries of an object value. Non-string
// values are skipped; the result is nil when key is absent or not an object.
func (o Options) StringMap(key string) map[string]string {
	m, ok := object(o[key])
	if !ok {
		return nil
	}
	res := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			res[k] = s
		}
	}
	return res
}

// object unwraps a nested mapping. JSON decodes nested objects as
// map[string]any while yaml.v3 decodes them into the parent's named type.
func object(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Options:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

// UnmarshalJSON makes a missing or null object decode to an empty, non-nil
// Options.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
