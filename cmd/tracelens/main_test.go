package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tracelens/internal/classify"
	"tracelens/internal/format"
)

func TestRangeDays(t *testing.T) {
	days, err := rangeDays("2025-09-01", "2025-09-03")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2025-09-01", "2025-09-02", "2025-09-03"}
	if diff := cmp.Diff(want, days); diff != "" {
		t.Errorf("days mismatch (-want +got):\n%s", diff)
	}

	if _, err := rangeDays("2025-09-03", "2025-09-01"); err == nil {
		t.Error("inverted range: want error")
	}
	if _, err := rangeDays("not-a-date", "2025-09-01"); err == nil {
		t.Error("bad from date: want error")
	}
}

func TestLoadRunsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	doc := `[
	  {"run_id":"T1","trace_id":"T1","project":"shop","date":"2025-09-01",
	   "created_at":"2025-09-01T09:00:00Z",
	   "payload":{"inputs":{"url":"https://example.com"},"status":"success"}},
	  {"run_id":"c1","trace_id":"T1","project":"shop","date":"2025-09-01",
	   "created_at":"2025-09-01T09:00:01Z",
	   "payload":{"name":"scrape_page","status":"error"}}
	]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	runs, err := loadRunsFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if !runs[0].IsRoot() {
		t.Error("first run should be the root")
	}
	if got := runs[1].Name(); got != "scrape_page" {
		t.Errorf("child name = %q, want scrape_page", got)
	}

	if _, err := loadRunsFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file: want error")
	}
}

func TestRunReport_CombinedRejectsProjectList(t *testing.T) {
	oldReport, oldRoot := reportFlags, rootFlags
	t.Cleanup(func() { reportFlags, rootFlags = oldReport, oldRoot })

	rootFlags.dbPath = filepath.Join(t.TempDir(), "runs.db")
	reportFlags.signal = "combined"
	reportFlags.project = "shop,news"
	reportFlags.from = "2025-09-01"
	reportFlags.to = "2025-09-01"

	err := runReport(reportCmd, nil)
	if err == nil {
		t.Fatal("combined report with a project list: want error, got nil")
	}
	if !strings.Contains(err.Error(), "single project") {
		t.Errorf("error = %q, want mention of single project", err)
	}
	// The comma string must never reach the store as a literal project
	// filter, which would silently match nothing.
	if _, statErr := os.Stat(rootFlags.dbPath); statErr == nil {
		t.Error("store was opened before the project list was rejected")
	}
}

func TestRenderErrorTable(t *testing.T) {
	c := classify.Default()
	counts := map[string]int{
		"timeout_errors": 3,
		"blocked_errors": 1,
		"unknown_errors": 2,
	}
	out := renderErrorTable(c, counts, 6, format.ASCII)

	// go-pretty upper-cases footer cells, so the totals row reads TOTAL.
	for _, want := range []string{"timeout_errors", "blocked_errors", "unknown_errors", "TOTAL"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	// Empty categories stay out of the table.
	if strings.Contains(out, "rate_limit_errors") {
		t.Errorf("table should omit zero-count categories:\n%s", out)
	}
	// Descending count order.
	if strings.Index(out, "timeout_errors") > strings.Index(out, "unknown_errors") {
		t.Errorf("categories not sorted by count:\n%s", out)
	}
}
