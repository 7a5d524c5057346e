package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"h1b/internal/config"
	"h1b/internal/datasource"
	"h1b/internal/datasource/file"
	"h1b/internal/datasource/httpds"
	"h1b/internal/metrics"
	pcsv "h1b/internal/parser/csv"
	"h1b/internal/report"
	"h1b/internal/schema"
	"h1b/internal/transformer/builtin"
	"h1b/pkg/records"
)

var (
	// loadFn reads the header line and all records of the input file.
	loadFn = loadCSV

	// writeFn stages one report table for path without committing it. Tests
	// replace it to inject write failures.
	writeFn = stageTable
)

// openSource picks the reader for path: http(s) URLs are fetched, anything
// else is a local file.
func openSource(path string) datasource.Source {
	if httpds.IsURL(path) {
		return httpds.NewRemote(path, httpds.Config{MaxRetries: 2})
	}
	return file.NewLocal(path)
}

func loadCSV(ctx context.Context, path string, opts pcsv.Options) ([]string, []records.Record, error) {
	src, err := openSource(path).Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	headers, recs, err := pcsv.NewParser(opts).Parse(src)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return headers, recs, nil
}

// stageTable writes t to a pending output for path and finishes it, so
// committing is only a rename. The caller commits it with Close or discards it
// with Abort.
func stageTable(ctx context.Context, path string, t report.Table) (datasource.Output, error) {
	out, err := file.NewLocal(path).Create(ctx)
	if err != nil {
		return nil, err
	}
	if err := (pcsv.Writer{Comma: pcsv.DefaultComma}).Write(out, t.Columns, t.Rows); err != nil {
		_ = out.Abort()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	if err := out.Finish(); err != nil {
		_ = out.Abort()
		return nil, err
	}
	return out, nil
}

type output struct {
	name  string
	path  string
	table report.Table
}

// writeReports stages every output concurrently and commits them only once
// all of them were written and closed, so committing is a rename per output.
// Any staging error discards the rest. A failing rename after an earlier one
// succeeded leaves the earlier report in place.
func writeReports(ctx context.Context, job string, outs []output) error {
	staged := make([]datasource.Output, len(outs))
	g, gctx := errgroup.WithContext(ctx)
	for i, o := range outs {
		g.Go(func() error {
			out, err := writeFn(gctx, o.path, o.table)
			if err != nil {
				return err
			}
			staged[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, out := range staged {
			if out != nil {
				_ = out.Abort()
			}
		}
		return err
	}

	for i, out := range staged {
		if err := out.Close(); err != nil {
			for _, rest := range staged[i+1:] {
				_ = rest.Abort()
			}
			return err
		}
		metrics.RecordReport(job, outs[i].name, len(outs[i].table.Rows))
	}
	return nil
}

// run executes one report run: load, resolve, rank occupations and states,
// then write both tables. Nothing is written unless both reports succeed.
func run(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Args) != 3 {
		return fmt.Errorf("%w (got %d arguments)", config.ErrUsage, len(cfg.Args))
	}
	inPath, occPath, statesPath := cfg.Args[0], cfg.Args[1], cfg.Args[2]
	job := cfg.Job

	vlogf := func(format string, a ...any) {
		if cfg.Verbose {
			log.Printf(format, a...)
		}
	}

	var (
		headers []string
		recs    []records.Record
	)
	err := metrics.Step(job, "load", func() error {
		var err error
		headers, recs, err = loadFn(ctx, inPath, cfg.CSVOptions())
		return err
	})
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	metrics.RecordRows(job, "loaded", len(recs))
	vlogf("load: %d records, %d columns from %s", len(recs), len(headers), inPath)

	if cfg.CSVOptions().TrimSpace {
		recs = builtin.Normalize{}.Apply(recs)
	}

	var layout schema.Layout
	err = metrics.Step(job, "resolve", func() error {
		aliases, err := cfg.RoleAliases()
		if err != nil {
			return err
		}
		layout, err = schema.ResolveLayout(headers, schema.WithAliases(schema.DefaultRules, aliases))
		return err
	})
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	for _, role := range schema.Roles {
		vlogf("resolve: %s -> %v", role, layout.Columns(role))
	}

	if cfg.Dedupe.Policy != "" {
		before := len(recs)
		recs = builtin.DeDup{Keys: layout.Columns(schema.CaseNumber), Policy: cfg.Dedupe.Policy}.Apply(recs)
		metrics.RecordRows(job, "deduped", before-len(recs))
		vlogf("dedupe: dropped %d duplicate case numbers (%s)", before-len(recs), cfg.Dedupe.Policy)
	}

	opts := report.Options{CertifiedStatus: cfg.Report.CertifiedStatus}
	var occupations, states report.Table
	err = metrics.Step(job, "occupations", func() error {
		var err error
		occupations, err = report.TopOccupations(cfg.Report.Top, recs, layout, opts)
		return err
	})
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	err = metrics.Step(job, "states", func() error {
		var err error
		states, err = report.TopStates(cfg.Report.Top, recs, layout, opts)
		return err
	})
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	metrics.RecordRows(job, "certified", states.Total)
	vlogf("report: %d certified by occupation, %d by state", occupations.Total, states.Total)

	start := time.Now()
	err = metrics.Step(job, "write", func() error {
		return writeReports(ctx, job, []output{
			{name: "occupations", path: occPath, table: occupations},
			{name: "states", path: statesPath, table: states},
		})
	})
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	vlogf("output: wrote %s and %s in %s", occPath, statesPath, time.Since(start).Truncate(time.Millisecond))
	return nil
}
