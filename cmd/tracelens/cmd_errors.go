package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"tracelens/adapters/store"
	"tracelens/internal/classify"
	"tracelens/internal/format"
	"tracelens/internal/trace"
)

var errorsFlags struct {
	project  string
	from     string
	to       string
	markdown bool
}

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Break failing runs down by error category",
	Long: `Scans the stored runs of a date range, classifies every non-success
run's error message against the category rules, and prints a count per
category. Messages matching no rule land in unknown_errors; review those
when the bucket grows.`,
	RunE: runErrors,
}

func init() {
	f := errorsCmd.Flags()
	f.StringVar(&errorsFlags.project, "project", "", "Project name (empty: all projects)")
	f.StringVar(&errorsFlags.from, "from", "", "Start date YYYY-MM-DD, inclusive (default: 7 days ago)")
	f.StringVar(&errorsFlags.to, "to", "", "End date YYYY-MM-DD, inclusive (default: today)")
	f.BoolVar(&errorsFlags.markdown, "markdown", false, "Render the table as markdown")
}

func runErrors(cmd *cobra.Command, _ []string) error {
	if errorsFlags.from == "" || errorsFlags.to == "" {
		errorsFlags.from, errorsFlags.to = defaultDateRange(7)
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.FindRuns(cmd.Context(), store.Query{
		Project: errorsFlags.project,
		From:    errorsFlags.from,
		To:      errorsFlags.to,
	})
	if err != nil {
		return fmt.Errorf("find runs: %w", err)
	}

	classifier := classify.Default()
	counts := make(map[string]int)
	failing := 0
	for i := range runs {
		r := &runs[i]
		if r.Status() == trace.StatusSuccess {
			continue
		}
		failing++
		key := classifier.CategorizeRun(r.Project, r.TraceID, r.ErrorMessage())
		counts[key]++
	}

	mode := format.ASCII
	if errorsFlags.markdown {
		mode = format.Markdown
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderErrorTable(classifier, counts, failing, mode))
	return nil
}

// renderErrorTable prints categories in descending count order; rule
// order only matters for classification, not presentation.
func renderErrorTable(c *classify.Classifier, counts map[string]int, total int, mode format.Mode) string {
	keys := c.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return counts[keys[i]] > counts[keys[j]]
	})

	t := format.NewTable(mode)
	t.Header("category", "failing_runs")
	t.AlignRight(2)
	for _, key := range keys {
		if counts[key] == 0 {
			continue
		}
		t.Row(key, counts[key])
	}
	t.Footer("total", total)
	return t.String()
}
