// Package store persists raw run documents and answers the pushed-down
// aggregate queries the analyzers run. Grouping, root-run filtering and
// the cross-trace existence check happen inside the store rather than by
// pulling all runs into memory.
package store

import (
	"context"
	"fmt"
	"time"

	"tracelens/internal/trace"
)

// DefaultDBPath is the default relative path for the SQLite DB
// (per-workspace). Open() creates the parent directory.
const DefaultDBPath = ".tracelens/runs.db"

// Signal names one of the two base health metrics.
type Signal string

const (
	// SignalScraperError counts a trace as failing when any run in its
	// hierarchy is a scraper step with a non-success status.
	SignalScraperError Signal = "scraper_error"
	// SignalAvailability counts a trace as failing when the root run's
	// output field is_available is explicitly false.
	SignalAvailability Signal = "availability"
)

// Query scopes a read. From/To are inclusive UTC calendar days
// (YYYY-MM-DD); Project empty means all projects. ScraperStep overrides
// the step name the scraper signal looks for.
type Query struct {
	Project     string
	From, To    string
	ScraperStep string
}

func (q Query) step() string {
	if q.ScraperStep != "" {
		return q.ScraperStep
	}
	return trace.DefaultScraperStep
}

func (q Query) validate() error {
	if _, err := ParseDate(q.From); err != nil {
		return fmt.Errorf("store: query from: %w", err)
	}
	if _, err := ParseDate(q.To); err != nil {
		return fmt.Errorf("store: query to: %w", err)
	}
	if q.From > q.To {
		return fmt.Errorf("store: query range %s..%s is inverted", q.From, q.To)
	}
	return nil
}

// DayCount is one date's aggregate for a single signal. Measured is only
// meaningful for the availability signal: the number of traces whose
// root actually carries the is_available field (the rate's denominator).
type DayCount struct {
	Date     string
	Total    int
	Failing  int
	Measured int
}

// CombinedDayCount carries both signals for one date computed in a
// single pass, so the Total denominator cannot drift between them.
type CombinedDayCount struct {
	Date                 string
	Total                int
	ScraperFailing       int
	AvailabilityFalse    int
	AvailabilityMeasured int
}

// Stats summarizes store contents for the status command.
type Stats struct {
	Runs        int
	Traces      int
	ByProject   map[string]int
	First, Last string // run_date span, empty when the store is empty
}

// Store is the persistence facade. Implementations: SqlStore (SQLite)
// and MemStore (tests). Store-level errors propagate unmodified.
type Store interface {
	// UpsertRuns writes runs keyed by run_id; re-ingesting the same run
	// is idempotent. Returns how many rows were new vs. replaced.
	UpsertRuns(ctx context.Context, runs []trace.Run) (inserted, updated int, err error)
	// FindRuns returns full run documents in the query scope.
	FindRuns(ctx context.Context, q Query) ([]trace.Run, error)
	// AggregateMetric computes one signal per calendar date over root
	// runs only. Dates with no traces are absent from the result; report
	// assembly fills them.
	AggregateMetric(ctx context.Context, signal Signal, q Query) ([]DayCount, error)
	// AggregateCombined computes both signals per date in one pass.
	AggregateCombined(ctx context.Context, q Query) ([]CombinedDayCount, error)
	// Stats reports store contents.
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// DateLayout is the canonical run_date encoding.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}
