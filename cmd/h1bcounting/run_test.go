package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"h1b/internal/config"
	"h1b/internal/datasource"
	"h1b/internal/metrics"
	pcsv "h1b/internal/parser/csv"
	"h1b/internal/report"
	"h1b/internal/schema"
)

const inputHeader = "CASE_NUMBER;CASE_STATUS;SOC_CODE;SOC_NAME;WORKSITE_STATE\n"

// tenApplications holds 7 certified applications: 5 developers and 2
// analysts, spread over CA (3), TX (2), NY (1) and WA (1).
const tenApplications = inputHeader +
	"I-01;CERTIFIED;15-1132;Software Developer;CA\n" +
	"I-02;DENIED;15-1132;Software Developer;CA\n" +
	"I-03;CERTIFIED;15-2041;Data Analyst;TX\n" +
	"I-04;CERTIFIED;15-1132;Software Developer;WA\n" +
	"I-05;WITHDRAWN;15-2041;Data Analyst;NY\n" +
	"I-06;CERTIFIED;15-1132;Software Developer;CA\n" +
	"I-07;CERTIFIED;15-2041;Data Analyst;TX\n" +
	"I-08;CERTIFIED-WITHDRAWN;15-1132;Software Developer;CA\n" +
	"I-09;CERTIFIED;15-1132;Software Developer;NY\n" +
	"I-10;CERTIFIED;15-1132;Software Developer;CA\n"

const (
	wantOccupations = "TOP_OCCUPATIONS;NUMBER_CERTIFIED_APPLICATIONS;PERCENTAGE\n" +
		"Software Developer;5;71.4%\n" +
		"Data Analyst;2;28.6%\n"
	wantStates = "TOP_STATES;NUMBER_CERTIFIED_APPLICATIONS;PERCENTAGE\n" +
		"CA;3;42.9%\n" +
		"TX;2;28.6%\n" +
		"NY;1;14.3%\n" +
		"WA;1;14.3%\n"
)

// setup writes input into a temp dir and returns a default config whose
// positional arguments point at it.
func setup(t *testing.T, input string) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "h1b_input.csv")
	if err := os.WriteFile(in, []byte(input), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	cfg := config.Default()
	cfg.Args = []string{in, filepath.Join(dir, "top_10_occupations.txt"), filepath.Join(dir, "top_10_states.txt")}
	return &cfg, dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

// assertOnlyInput fails when anything besides the input file is left in dir,
// including temp files from an aborted write.
func assertOnlyInput(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "h1b_input.csv" {
			t.Errorf("unexpected file %q left behind", e.Name())
		}
	}
}

func TestRun_EndToEnd(t *testing.T) {
	cfg, _ := setup(t, tenApplications)

	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := readFile(t, cfg.Args[1]); got != wantOccupations {
		t.Errorf("occupations =\n%s\nwant\n%s", got, wantOccupations)
	}
	if got := readFile(t, cfg.Args[2]); got != wantStates {
		t.Errorf("states =\n%s\nwant\n%s", got, wantStates)
	}
}

func TestRun_Top(t *testing.T) {
	cfg, _ := setup(t, tenApplications)
	cfg.Report.Top = 1

	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got, want := readFile(t, cfg.Args[1]), "TOP_OCCUPATIONS;NUMBER_CERTIFIED_APPLICATIONS;PERCENTAGE\nSoftware Developer;5;71.4%\n"; got != want {
		t.Errorf("occupations = %q, want %q", got, want)
	}
	if got, want := readFile(t, cfg.Args[2]), "TOP_STATES;NUMBER_CERTIFIED_APPLICATIONS;PERCENTAGE\nCA;3;42.9%\n"; got != want {
		t.Errorf("states = %q, want %q", got, want)
	}
}

func TestRun_Failures(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
	}{
		{
			name:  "header only",
			input: inputHeader,
			want:  pcsv.ErrNoData,
		},
		{
			name:  "empty file",
			input: "",
			want:  pcsv.ErrNoData,
		},
		{
			name:  "missing state column",
			input: "CASE_NUMBER;CASE_STATUS;SOC_CODE;SOC_NAME\nI-01;CERTIFIED;15-1132;Software Developer\n",
			want:  schema.ErrRoleNotFound,
		},
		{
			name:  "nothing certified",
			input: inputHeader + "I-01;DENIED;15-1132;Software Developer;CA\nI-02;certified;15-1132;Software Developer;CA\n",
			want:  report.ErrZeroDenominator,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, dir := setup(t, tc.input)
			err := run(context.Background(), cfg)
			if !errors.Is(err, tc.want) {
				t.Fatalf("run err = %v, want %v", err, tc.want)
			}
			assertOnlyInput(t, dir)
		})
	}
}

func TestRun_WrongArgCount(t *testing.T) {
	cfg := config.Default()
	cfg.Args = []string{"in.csv", "out.txt"}
	if err := run(context.Background(), &cfg); !errors.Is(err, config.ErrUsage) {
		t.Fatalf("run err = %v, want ErrUsage", err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	cfg, dir := setup(t, tenApplications)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := run(ctx, cfg); !errors.Is(err, context.Canceled) {
		t.Fatalf("run err = %v, want context.Canceled", err)
	}
	assertOnlyInput(t, dir)
}

// fakeOutput is an in-memory datasource.Output recording how it was settled.
type fakeOutput struct {
	bytes.Buffer
	committed, aborted bool
}

func (f *fakeOutput) Finish() error { return nil }
func (f *fakeOutput) Close() error  { f.committed = true; return nil }
func (f *fakeOutput) Abort() error  { f.aborted = true; return nil }

/*
TestRun_NoWriteAfterReportFailure swaps writeFn to prove that a failing
report stops the run before either output is touched, even when the other
report would have succeeded.
*/
func TestRun_NoWriteAfterReportFailure(t *testing.T) {
	var calls int32
	orig := writeFn
	writeFn = func(context.Context, string, report.Table) (datasource.Output, error) {
		atomic.AddInt32(&calls, 1)
		return &fakeOutput{}, nil
	}
	t.Cleanup(func() { writeFn = orig })

	// Certified rows exist but none has an occupation code, so only the
	// occupations report fails.
	cfg, _ := setup(t, inputHeader+"I-01;CERTIFIED;;Software Developer;CA\n")
	if err := run(context.Background(), cfg); !errors.Is(err, report.ErrZeroDenominator) {
		t.Fatalf("run err = %v, want ErrZeroDenominator", err)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("writeFn called %d times, want 0", got)
	}
}

/*
TestRun_WriteErrorAbortsStaged verifies that when one output fails to stage,
the other staged output is aborted instead of committed.
*/
func TestRun_WriteErrorAbortsStaged(t *testing.T) {
	boom := errors.New("disk full")
	occ := &fakeOutput{}
	orig := writeFn
	writeFn = func(_ context.Context, path string, _ report.Table) (datasource.Output, error) {
		if strings.HasSuffix(path, "top_10_states.txt") {
			return nil, boom
		}
		return occ, nil
	}
	t.Cleanup(func() { writeFn = orig })

	cfg, dir := setup(t, tenApplications)
	if err := run(context.Background(), cfg); !errors.Is(err, boom) {
		t.Fatalf("run err = %v, want %v", err, boom)
	}
	if occ.committed || !occ.aborted {
		t.Fatalf("occupations output committed=%v aborted=%v, want aborted only", occ.committed, occ.aborted)
	}
	assertOnlyInput(t, dir)
}

func TestWriteReports_CommitsAll(t *testing.T) {
	staged := map[string]*fakeOutput{}
	var mu sync.Mutex
	orig := writeFn
	writeFn = func(_ context.Context, path string, tbl report.Table) (datasource.Output, error) {
		out := &fakeOutput{}
		if err := (pcsv.Writer{}).Write(out, tbl.Columns, tbl.Rows); err != nil {
			return nil, err
		}
		mu.Lock()
		staged[path] = out
		mu.Unlock()
		return out, nil
	}
	t.Cleanup(func() { writeFn = orig })

	tbl := report.Table{Columns: []string{report.ColStates, report.ColCount, report.ColPercentage}}
	err := writeReports(context.Background(), "test", []output{
		{name: "occupations", path: "a", table: tbl},
		{name: "states", path: "b", table: tbl},
	})
	if err != nil {
		t.Fatalf("writeReports: %v", err)
	}
	for path, out := range staged {
		if !out.committed || out.aborted {
			t.Errorf("%s: committed=%v aborted=%v", path, out.committed, out.aborted)
		}
		if got := out.String(); got != "TOP_STATES;NUMBER_CERTIFIED_APPLICATIONS;PERCENTAGE\n" {
			t.Errorf("%s: content %q", path, got)
		}
	}
	if len(staged) != 2 {
		t.Fatalf("staged %d outputs, want 2", len(staged))
	}
}

func TestRun_Aliases(t *testing.T) {
	input := "CASE_NUMBER;CASE_STATUS;SOC_CODE;SOC_NAME;EMP_WORK_ST\n" +
		"I-01;CERTIFIED;15-1132;Software Developer;CA\n"

	cfg, _ := setup(t, input)
	if err := run(context.Background(), cfg); !errors.Is(err, schema.ErrRoleNotFound) {
		t.Fatalf("without alias: err = %v, want ErrRoleNotFound", err)
	}

	cfg.Aliases = map[string][]string{"work_state": {"EMP_WORK_ST"}}
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("with alias: %v", err)
	}
	if got, want := readFile(t, cfg.Args[2]), "TOP_STATES;NUMBER_CERTIFIED_APPLICATIONS;PERCENTAGE\nCA;1;100.0%\n"; got != want {
		t.Errorf("states = %q, want %q", got, want)
	}
}

func TestRun_Dedupe(t *testing.T) {
	// I-01 is refiled and denied; keep-last drops the certified copy.
	input := tenApplications + "I-01;DENIED;15-1132;Software Developer;CA\n"

	cfg, _ := setup(t, input)
	cfg.Dedupe.Policy = "keep-last"
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "TOP_STATES;NUMBER_CERTIFIED_APPLICATIONS;PERCENTAGE\n" +
		"CA;2;33.3%\n" +
		"TX;2;33.3%\n" +
		"NY;1;16.7%\n" +
		"WA;1;16.7%\n"
	if got := readFile(t, cfg.Args[2]); got != want {
		t.Errorf("states =\n%s\nwant\n%s", got, want)
	}
}

func TestRun_TrimSpace(t *testing.T) {
	input := inputHeader +
		"I-01; CERTIFIED ;15-1132;Software Developer;CA\n" +
		"I-02;CERTIFIED;15-1132;Software Developer\u00a0;CA\n"

	cfg, _ := setup(t, input)
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("untrimmed run: %v", err)
	}
	untrimmed := "TOP_OCCUPATIONS;NUMBER_CERTIFIED_APPLICATIONS;PERCENTAGE\nSoftware Developer\u00a0;1;100.0%\n"
	if got := readFile(t, cfg.Args[1]); got != untrimmed {
		t.Errorf("untrimmed occupations = %q, want %q", got, untrimmed)
	}

	cfg.Parser.Options["trim_space"] = true
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "TOP_OCCUPATIONS;NUMBER_CERTIFIED_APPLICATIONS;PERCENTAGE\nSoftware Developer;2;100.0%\n"
	if got := readFile(t, cfg.Args[1]); got != want {
		t.Errorf("occupations = %q, want %q", got, want)
	}
}

type fakeBackend struct {
	mu       sync.Mutex
	counters map[string]float64
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := name
	for _, k := range []string{"step", "status", "kind", "report"} {
		if v, ok := labels[k]; ok {
			key += "," + k + "=" + v
		}
	}
	f.counters[key] += delta
}
func (f *fakeBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (f *fakeBackend) Flush() error                                     { return nil }

func TestRun_RecordsMetrics(t *testing.T) {
	fb := &fakeBackend{counters: map[string]float64{}}
	metrics.SetBackend(fb)
	t.Cleanup(func() { metrics.SetBackend(&fakeBackend{counters: map[string]float64{}}) })

	cfg, _ := setup(t, tenApplications)
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := map[string]float64{
		"h1b_records_total,kind=loaded":            10,
		"h1b_records_total,kind=certified":         7,
		"h1b_report_rows,report=occupations":       2,
		"h1b_report_rows,report=states":            4,
		"h1b_step_total,step=load,status=success":  1,
		"h1b_step_total,step=write,status=success": 1,
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for k, v := range want {
		if got := fb.counters[k]; got != v {
			t.Errorf("counter %s = %v, want %v", k, got, v)
		}
	}
	for k := range fb.counters {
		if strings.Contains(k, "status=failure") {
			t.Errorf("unexpected failure counter %s", k)
		}
	}
}

// TestStageTable_PublishesOnClose checks that a staged report is fully written
// but stays invisible until it is committed.
func TestStageTable_PublishesOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "top_10_states.txt")
	tbl := report.Table{Columns: []string{report.ColStates, report.ColCount, report.ColPercentage}}

	out, err := stageTable(context.Background(), path, tbl)
	if err != nil {
		t.Fatalf("stageTable: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("report visible before commit: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := readFile(t, path); got != "TOP_STATES;NUMBER_CERTIFIED_APPLICATIONS;PERCENTAGE\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestStageTable_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.txt")
	tbl := report.Table{Columns: []string{report.ColStates, report.ColCount, report.ColPercentage}}
	if _, err := stageTable(context.Background(), path, tbl); err == nil {
		t.Fatal("expected error for missing directory")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stat %s: %v, want not exist", path, err)
	}
}

func TestRun_RemoteInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, tenApplications)
	}))
	defer srv.Close()

	cfg, _ := setup(t, "")
	cfg.Args[0] = srv.URL + "/H1B_FY2019.csv"
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := readFile(t, cfg.Args[1]); got != wantOccupations {
		t.Errorf("occupations =\n%s\nwant\n%s", got, wantOccupations)
	}
}
