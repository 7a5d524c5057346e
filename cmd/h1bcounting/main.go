// Command h1bcounting reports the top occupations and top work states of
// certified H-1B applications found in a semicolon-delimited disclosure file.
//
// Usage:
//
//	h1bcounting [flags] <input> <top_occupations_out> <top_states_out>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"h1b/internal/config"
	"h1b/internal/metrics"
	"h1b/internal/metrics/datadog"
	"h1b/internal/metrics/prompush"
)

func main() {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrUsage) {
		fmt.Fprintln(os.Stderr, err)
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err != nil {
		fatalf("config: %v", err)
	}

	runID := uuid.NewString()
	log.SetPrefix("[" + runID + "] ")

	issues := config.ValidateConfig(*cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if err := config.Errors(issues); err != nil {
		log.Printf("configuration is invalid")
		os.Exit(1)
	}
	if cfg.Validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	setupMetrics(cfg, runID)

	start := time.Now()
	err = run(context.Background(), cfg)

	// Push even on failure so failed steps are visible.
	if ferr := metrics.Flush(); ferr != nil {
		log.Printf("metrics: flush error: %v", ferr)
	}
	if err != nil {
		fatalf("%v", err)
	}
	if cfg.Verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// setupMetrics installs the configured backend. Failures fall back to the nop
// backend; metrics never fail a run.
func setupMetrics(cfg *config.Config, runID string) {
	m := cfg.Metrics
	switch m.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(cfg.Job, m.PushgatewayURL, map[string]string{"run_id": runID})
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", m.PushgatewayURL, m.Backend, cfg.Job)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       m.StatsdAddr,
			GlobalTags: []string{"run_id:" + runID},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", m.StatsdAddr, m.Backend, cfg.Job)
		metrics.SetBackend(b)

	case "", "none":
		if cfg.Verbose {
			log.Printf("metrics: disabled (backend=%q)", m.Backend)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", m.Backend)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
