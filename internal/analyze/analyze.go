// Package analyze assembles per-date health reports from the store's
// pushed-down aggregates. Every function here is a pure reducer over
// query results: no shared state, safe to fan out across projects.
package analyze

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"tracelens/adapters/store"
)

// Row is one date's result for a single signal.
type Row struct {
	Date         string  `json:"date"`
	Project      string  `json:"project,omitempty"` // empty when the report spans all projects
	TotalTraces  int     `json:"total_traces"`
	FailingCount int     `json:"failing_count"`
	RatePercent  float64 `json:"rate_percent"`
}

// CombinedRow carries both signals for one date with a shared
// total-trace denominator.
type CombinedRow struct {
	Date                     string  `json:"date"`
	TotalTraces              int     `json:"total_traces"`
	ScraperErrorCount        int     `json:"scraper_error_count"`
	ScraperErrorPercent      float64 `json:"scraper_error_percent"`
	AvailabilityFalseCount   int     `json:"availability_false_count"`
	AvailabilityFalsePercent float64 `json:"availability_false_percent"`
}

// Rate returns round(100*failing/total, 1). A zero denominator yields
// 0.0, never a division error or NaN.
func Rate(failing, total int) float64 {
	if total <= 0 {
		return 0.0
	}
	return math.Round(1000*float64(failing)/float64(total)) / 10
}

// ScraperErrorReport computes the scraper-error signal per calendar day
// over [from, to]. Days with no traces are emitted with zero counts.
func ScraperErrorReport(ctx context.Context, s store.Store, q store.Query) ([]Row, error) {
	counts, err := s.AggregateMetric(ctx, store.SignalScraperError, q)
	if err != nil {
		return nil, err
	}
	return assembleRows(q, counts, func(d store.DayCount) (int, int) {
		return d.Failing, d.Total
	})
}

// AvailabilityReport computes the availability-failure signal per
// calendar day. The rate's denominator is the number of traces whose
// root carries the is_available field; traces without it count toward
// TotalTraces but not the percentage.
func AvailabilityReport(ctx context.Context, s store.Store, q store.Query) ([]Row, error) {
	counts, err := s.AggregateMetric(ctx, store.SignalAvailability, q)
	if err != nil {
		return nil, err
	}
	return assembleRows(q, counts, func(d store.DayCount) (int, int) {
		return d.Failing, d.Measured
	})
}

func assembleRows(q store.Query, counts []store.DayCount, rate func(store.DayCount) (failing, denom int)) ([]Row, error) {
	byDate := make(map[string]store.DayCount, len(counts))
	for _, d := range counts {
		byDate[d.Date] = d
	}
	dates, err := dateRange(q.From, q.To)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(dates))
	for _, date := range dates {
		d := byDate[date] // zero DayCount for empty days
		failing, denom := rate(d)
		rows = append(rows, Row{
			Date:         date,
			Project:      q.Project,
			TotalTraces:  d.Total,
			FailingCount: failing,
			RatePercent:  Rate(failing, denom),
		})
	}
	return rows, nil
}

// CombinedReport computes both signals per day from one aggregate pass,
// guaranteeing a consistent TotalTraces denominator across the two
// metrics (no drift between separately-run reports).
func CombinedReport(ctx context.Context, s store.Store, q store.Query) ([]CombinedRow, error) {
	counts, err := s.AggregateCombined(ctx, q)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]store.CombinedDayCount, len(counts))
	for _, d := range counts {
		byDate[d.Date] = d
	}
	dates, err := dateRange(q.From, q.To)
	if err != nil {
		return nil, err
	}
	rows := make([]CombinedRow, 0, len(dates))
	for _, date := range dates {
		d := byDate[date]
		rows = append(rows, CombinedRow{
			Date:                     date,
			TotalTraces:              d.Total,
			ScraperErrorCount:        d.ScraperFailing,
			ScraperErrorPercent:      Rate(d.ScraperFailing, d.Total),
			AvailabilityFalseCount:   d.AvailabilityFalse,
			AvailabilityFalsePercent: Rate(d.AvailabilityFalse, d.AvailabilityMeasured),
		})
	}
	return rows, nil
}

// MultiProjectReport runs one single-signal report per project
// concurrently and returns all rows sorted by project then date.
func MultiProjectReport(ctx context.Context, s store.Store, signal store.Signal, projects []string, q store.Query) ([]Row, error) {
	reportFn := ScraperErrorReport
	if signal == store.SignalAvailability {
		reportFn = AvailabilityReport
	} else if signal != store.SignalScraperError {
		return nil, fmt.Errorf("analyze: unknown signal %q", signal)
	}

	results := make([][]Row, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	for i, project := range projects {
		pq := q
		pq.Project = project
		g.Go(func() error {
			rows, err := reportFn(gctx, s, pq)
			if err != nil {
				return fmt.Errorf("analyze: project %q: %w", pq.Project, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Row
	for _, rows := range results {
		out = append(out, rows...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Project != out[j].Project {
			return out[i].Project < out[j].Project
		}
		return out[i].Date < out[j].Date
	})
	return out, nil
}

// dateRange expands an inclusive [from, to] span into every calendar day.
func dateRange(from, to string) ([]string, error) {
	start, err := store.ParseDate(from)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	end, err := store.ParseDate(to)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	if start.After(end) {
		return nil, fmt.Errorf("analyze: date range %s..%s is inverted", from, to)
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(store.DateLayout))
	}
	return days, nil
}
