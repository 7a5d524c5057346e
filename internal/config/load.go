package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage: h1bcounting [flags] <input> <top_occupations_out> <top_states_out>")

// Environment variables read by LoadFromArgs.
const (
	EnvConfig          = "H1B_CONFIG"
	EnvJob             = "H1B_JOB"
	EnvTop             = "H1B_TOP"
	EnvCertifiedStatus = "H1B_CERTIFIED_STATUS"
	EnvComma           = "H1B_COMMA"
	EnvDedupe          = "H1B_DEDUPE"
	EnvMetricsBackend  = "METRICS_BACKEND"
	EnvPushgatewayURL  = "PUSHGATEWAY_URL"
	EnvStatsdAddr      = "DD_AGENT_ADDR"
)

// Load builds the configuration from os.Args and the process environment.
func Load() (*Config, error) {
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

// LoadFromArgs defines the command's flags on fs and parses args.
//
// Precedence, lowest first: Default(), the file named by -config (or
// H1B_CONFIG), environment variables read through getenv, flags present in
// args. Exactly three positional arguments are required; anything else fails
// with ErrUsage before any file is read.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	var (
		path     = fs.String("config", "", "optional JSON or YAML config file (env "+EnvConfig+")")
		job      = fs.String("job", "", "job name used in logs and metrics (env "+EnvJob+")")
		top      = fs.Int("top", 0, "number of rows per report (env "+EnvTop+")")
		status   = fs.String("status", "", "case status counted as certified, exact match (env "+EnvCertifiedStatus+")")
		comma    = fs.String("comma", "", "input field delimiter (env "+EnvComma+")")
		trim     = fs.Bool("trim-space", false, "trim white space around every input value")
		dedupe   = fs.String("dedupe", "", "drop duplicate case numbers: keep-first or keep-last (env "+EnvDedupe+")")
		backend  = fs.String("metrics-backend", "", "metrics backend: none, pushgateway, datadog (env "+EnvMetricsBackend+")")
		gateway  = fs.String("pushgateway-url", "", "Pushgateway base URL (env "+EnvPushgatewayURL+")")
		statsd   = fs.String("statsd-addr", "", "DogStatsD address (env "+EnvStatsdAddr+")")
		validate = fs.Bool("validate", false, "validate the configuration and exit")
		verbose  = fs.Bool("v", false, "enable verbose logs")
	)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	cfg := Default()
	cfg.Validate = *validate
	cfg.Verbose = *verbose
	cfg.Args = fs.Args()

	cfg.Path = firstNonEmpty(*path, getenv(EnvConfig))
	if cfg.Path != "" {
		if err := LoadFile(cfg.Path, &cfg); err != nil {
			return nil, err
		}
	}

	// Environment overrides the file.
	if v := getenv(EnvJob); v != "" {
		cfg.Job = v
	}
	if v := getenv(EnvTop); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s=%q: %w", EnvTop, v, err)
		}
		cfg.Report.Top = n
	}
	if v := getenv(EnvCertifiedStatus); v != "" {
		cfg.Report.CertifiedStatus = v
	}
	if v := getenv(EnvComma); v != "" {
		cfg.setParserOption("comma", v)
	}
	if v := getenv(EnvDedupe); v != "" {
		cfg.Dedupe.Policy = v
	}
	if v := getenv(EnvMetricsBackend); v != "" {
		cfg.Metrics.Backend = v
	}
	if v := getenv(EnvPushgatewayURL); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := getenv(EnvStatsdAddr); v != "" {
		cfg.Metrics.StatsdAddr = v
	}

	// Explicit flags override everything.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "job":
			cfg.Job = *job
		case "top":
			cfg.Report.Top = *top
		case "status":
			cfg.Report.CertifiedStatus = *status
		case "comma":
			cfg.setParserOption("comma", *comma)
		case "trim-space":
			cfg.setParserOption("trim_space", *trim)
		case "dedupe":
			cfg.Dedupe.Policy = *dedupe
		case "metrics-backend":
			cfg.Metrics.Backend = *backend
		case "pushgateway-url":
			cfg.Metrics.PushgatewayURL = *gateway
		case "statsd-addr":
			cfg.Metrics.StatsdAddr = *statsd
		}
	})

	if !cfg.Validate && len(cfg.Args) != 3 {
		return nil, fmt.Errorf("%w (got %d arguments)", ErrUsage, len(cfg.Args))
	}
	return &cfg, nil
}

// LoadFile decodes a JSON (.json) or YAML (anything else) file on top of cfg.
// Unknown keys are rejected so typos surface instead of silently defaulting.
func LoadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("decode config %s: %w", path, err)
		}
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c *Config) setParserOption(key string, v any) {
	if c.Parser.Options == nil {
		c.Parser.Options = Options{}
	}
	c.Parser.Options[key] = v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
