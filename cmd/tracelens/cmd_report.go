package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tracelens/adapters/store"
	"tracelens/internal/analyze"
	"tracelens/internal/format"
	"tracelens/internal/report"
)

var reportFlags struct {
	signal      string
	project     string
	from        string
	to          string
	scraperStep string
	csvPath     string
	markdown    bool
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Per-day scraper-error and availability reports",
	Long: `Computes a per-day health report over an inclusive date range.

Signals:
  scraper-error  a trace fails when any of its runs is the scraper step
                 with a non-success status
  availability   a trace fails when the root run reports is_available=false
  combined       both signals from a single pass, sharing the denominator

Days with no traces appear with zero counts so the range is always complete.`,
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.signal, "signal", "scraper-error", "Signal: scraper-error, availability, or combined")
	f.StringVar(&reportFlags.project, "project", "", "Project name, or comma-separated list for a per-project breakdown (empty: all projects)")
	f.StringVar(&reportFlags.from, "from", "", "Start date YYYY-MM-DD, inclusive (default: 7 days ago)")
	f.StringVar(&reportFlags.to, "to", "", "End date YYYY-MM-DD, inclusive (default: today)")
	f.StringVar(&reportFlags.scraperStep, "scraper-step", "", "Scraper step name (default: scrape_page)")
	f.StringVar(&reportFlags.csvPath, "csv", "", "Also write the report as CSV to this path")
	f.BoolVar(&reportFlags.markdown, "markdown", false, "Render the table as markdown")
}

func runReport(cmd *cobra.Command, _ []string) error {
	if reportFlags.from == "" || reportFlags.to == "" {
		reportFlags.from, reportFlags.to = defaultDateRange(7)
	}
	q := store.Query{
		Project:     reportFlags.project,
		From:        reportFlags.from,
		To:          reportFlags.to,
		ScraperStep: reportFlags.scraperStep,
	}

	projects := splitProjects(reportFlags.project)
	if len(projects) == 1 {
		q.Project = projects[0]
	}
	if reportFlags.signal == "combined" && len(projects) > 1 {
		return fmt.Errorf("--signal combined takes a single project, got %d; run it per project or use scraper-error/availability for a per-project breakdown", len(projects))
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	mode := format.ASCII
	if reportFlags.markdown {
		mode = format.Markdown
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	switch reportFlags.signal {
	case "scraper-error", "availability":
		signal := store.SignalScraperError
		if reportFlags.signal == "availability" {
			signal = store.SignalAvailability
		}
		if len(projects) > 1 {
			rows, err := analyze.MultiProjectReport(ctx, s, signal, projects, q)
			if err != nil {
				return fmt.Errorf("%s report: %w", reportFlags.signal, err)
			}
			fmt.Fprintln(out, report.RenderMultiTable(rows, mode))
			if reportFlags.csvPath != "" {
				return writeCSVFile(reportFlags.csvPath, func(f *os.File) error {
					return report.WriteMultiCSV(f, rows)
				})
			}
			return nil
		}
		var rows []analyze.Row
		if signal == store.SignalScraperError {
			rows, err = analyze.ScraperErrorReport(ctx, s, q)
		} else {
			rows, err = analyze.AvailabilityReport(ctx, s, q)
		}
		if err != nil {
			return fmt.Errorf("%s report: %w", reportFlags.signal, err)
		}
		fmt.Fprintln(out, report.RenderTable(rows, mode))
		if reportFlags.csvPath != "" {
			return writeCSVFile(reportFlags.csvPath, func(f *os.File) error {
				return report.WriteCSV(f, rows)
			})
		}
	case "combined":
		rows, err := analyze.CombinedReport(ctx, s, q)
		if err != nil {
			return fmt.Errorf("combined report: %w", err)
		}
		fmt.Fprintln(out, report.RenderCombinedTable(rows, mode))
		if reportFlags.csvPath != "" {
			return writeCSVFile(reportFlags.csvPath, func(f *os.File) error {
				return report.WriteCombinedCSV(f, rows)
			})
		}
	default:
		return fmt.Errorf("unknown signal %q: want scraper-error, availability, or combined", reportFlags.signal)
	}
	return nil
}

func writeCSVFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}
