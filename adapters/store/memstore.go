package store

import (
	"context"
	"sort"
	"sync"

	"tracelens/internal/trace"
)

// MemStore is an in-memory Store for tests. It implements the same
// aggregation rules as SqlStore in plain Go so either backend can sit
// behind the analyzers.
type MemStore struct {
	mu   sync.Mutex
	runs map[string]trace.Run // keyed by run_id
}

// NewMemStore returns a new in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{runs: make(map[string]trace.Run)}
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }

// UpsertRuns implements Store.
func (s *MemStore) UpsertRuns(_ context.Context, runs []trace.Run) (inserted, updated int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range runs {
		if _, ok := s.runs[r.RunID]; ok {
			updated++
		} else {
			inserted++
		}
		s.runs[r.RunID] = r
	}
	return inserted, updated, nil
}

// FindRuns implements Store.
func (s *MemStore) FindRuns(_ context.Context, q Query) ([]trace.Run, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []trace.Run
	for _, r := range s.runs {
		if s.inScope(r, q) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.TraceID != b.TraceID {
			return a.TraceID < b.TraceID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.RunID < b.RunID
	})
	return out, nil
}

func (s *MemStore) inScope(r trace.Run, q Query) bool {
	if r.Date < q.From || r.Date > q.To {
		return false
	}
	return q.Project == "" || r.Project == q.Project
}

// AggregateMetric implements Store.
func (s *MemStore) AggregateMetric(ctx context.Context, signal Signal, q Query) ([]DayCount, error) {
	combined, err := s.AggregateCombined(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]DayCount, 0, len(combined))
	for _, c := range combined {
		switch signal {
		case SignalScraperError:
			out = append(out, DayCount{Date: c.Date, Total: c.Total, Failing: c.ScraperFailing, Measured: c.Total})
		case SignalAvailability:
			out = append(out, DayCount{Date: c.Date, Total: c.Total, Failing: c.AvailabilityFalse, Measured: c.AvailabilityMeasured})
		default:
			return nil, errUnknownSignal(signal)
		}
	}
	return out, nil
}

// AggregateCombined implements Store.
func (s *MemStore) AggregateCombined(_ context.Context, q Query) ([]CombinedDayCount, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Index every run's trace for the hierarchy-wide existence check.
	scraperFailed := make(map[string]bool)
	for _, r := range s.runs {
		if r.Name() == q.step() && r.Status() != trace.StatusSuccess {
			scraperFailed[r.TraceID] = true
		}
	}

	byDate := make(map[string]*CombinedDayCount)
	for _, r := range s.runs {
		if !r.IsRoot() || !s.inScope(r, q) {
			continue
		}
		d, ok := byDate[r.Date]
		if !ok {
			d = &CombinedDayCount{Date: r.Date}
			byDate[r.Date] = d
		}
		d.Total++
		if scraperFailed[r.TraceID] {
			d.ScraperFailing++
		}
		if v, ok := r.Payload.At("outputs", "is_available"); ok {
			if b, isBool := v.Boolean(); isBool {
				d.AvailabilityMeasured++
				if !b {
					d.AvailabilityFalse++
				}
			}
		}
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	out := make([]CombinedDayCount, 0, len(dates))
	for _, date := range dates {
		out = append(out, *byDate[date])
	}
	return out, nil
}

// Stats implements Store.
func (s *MemStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{ByProject: make(map[string]int)}
	traces := make(map[string]bool)
	for _, r := range s.runs {
		st.Runs++
		traces[r.TraceID] = true
		st.ByProject[r.Project]++
		if st.First == "" || r.Date < st.First {
			st.First = r.Date
		}
		if r.Date > st.Last {
			st.Last = r.Date
		}
	}
	st.Traces = len(traces)
	return st, nil
}

type errUnknownSignal Signal

func (e errUnknownSignal) Error() string {
	return "store: unknown signal " + string(e)
}
