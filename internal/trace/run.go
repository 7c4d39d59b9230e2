// Package trace reconstructs hierarchical traces from the flat run
// documents the tracing platform emits. A trace is the set of runs
// sharing a trace_id; the run whose own id equals the trace_id is the
// root and is the authoritative source for trace-level fields.
package trace

import (
	"time"

	"tracelens/internal/payload"
)

// StatusSuccess is the platform's terminal status for a healthy run.
const StatusSuccess = "success"

// DefaultScraperStep is the run name that marks the scraping step of a
// trace; a non-success status on such a run anywhere in the hierarchy
// counts the whole trace as a scraper failure.
const DefaultScraperStep = "scrape_page"

// Run is one execution unit recorded by the tracing platform.
// Payload holds the verbatim document body (name, status, error,
// inputs, outputs, reference, feedback) as stored at ingestion time.
type Run struct {
	RunID     string
	TraceID   string
	Project   string
	Date      string // UTC calendar day, YYYY-MM-DD; the run's creation day
	CreatedAt time.Time
	Payload   payload.Value
}

// IsRoot reports whether this run is the root of its trace.
func (r *Run) IsRoot() bool {
	return r.RunID != "" && r.RunID == r.TraceID
}

// Name returns the run's step name, or "" when absent.
func (r *Run) Name() string {
	v, ok := r.Payload.Field("name")
	if !ok {
		return ""
	}
	s, _ := v.Str()
	return s
}

// Status returns the run's status, or "" when absent.
func (r *Run) Status() string {
	v, ok := r.Payload.Field("status")
	if !ok {
		return ""
	}
	s, _ := v.Str()
	return s
}

// ErrorMessage returns the run's error text, or "" when absent.
func (r *Run) ErrorMessage() string {
	v, ok := r.Payload.Field("error")
	if !ok {
		return ""
	}
	s, _ := v.Str()
	return s
}
