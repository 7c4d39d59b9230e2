package trace

import (
	"sort"

	"tracelens/internal/logging"
)

// Group is one reconstructed trace: the authoritative root run (nil when
// the data carries no run with run_id == trace_id) and its children.
type Group struct {
	TraceID  string
	Root     *Run
	Children []*Run
}

// GroupStats counts hierarchy anomalies seen while grouping, for
// observability. Anomalies are recovered, never fatal.
type GroupStats struct {
	Traces    int
	MultiRoot int
	NoRoot    int
}

// GroupRuns partitions runs by trace_id and identifies each partition's
// root. With multiple root candidates the earliest-created one wins
// (ties broken by run_id so grouping stays deterministic) and the rest
// are demoted to children; with none, Root is nil and every run is a
// child. Both cases are logged as data-quality anomalies.
func GroupRuns(runs []Run) (map[string]*Group, GroupStats) {
	logger := logging.New("aggregator")

	groups := make(map[string]*Group)
	order := make([]string, 0)
	for i := range runs {
		r := &runs[i]
		g, ok := groups[r.TraceID]
		if !ok {
			g = &Group{TraceID: r.TraceID}
			groups[r.TraceID] = g
			order = append(order, r.TraceID)
		}
		if r.IsRoot() {
			switch {
			case g.Root == nil:
				g.Root = r
			case rootBefore(r, g.Root):
				g.Children = append(g.Children, g.Root)
				g.Root = r
			default:
				g.Children = append(g.Children, r)
			}
		} else {
			g.Children = append(g.Children, r)
		}
	}

	var stats GroupStats
	stats.Traces = len(groups)
	for _, tid := range order {
		g := groups[tid]
		rootCandidates := 0
		if g.Root != nil {
			rootCandidates = 1
		}
		for _, c := range g.Children {
			if c.IsRoot() {
				rootCandidates++
			}
		}
		switch {
		case rootCandidates > 1:
			stats.MultiRoot++
			logger.Warn("trace has multiple root candidates; keeping earliest",
				"trace_id", tid, "candidates", rootCandidates, "root_run", g.Root.RunID)
		case rootCandidates == 0:
			stats.NoRoot++
			logger.Warn("trace has no root run", "trace_id", tid, "runs", len(g.Children))
		}
		sortChildren(g.Children)
	}

	if stats.MultiRoot > 0 || stats.NoRoot > 0 {
		logger.Warn("trace hierarchy anomalies in batch",
			"traces", stats.Traces, "multi_root", stats.MultiRoot, "no_root", stats.NoRoot)
	}
	return groups, stats
}

// rootBefore reports whether a should replace b as the root pick.
func rootBefore(a, b *Run) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.RunID < b.RunID
}

// sortChildren orders children by creation time then run_id. Children
// have no semantic order; this only keeps merge results reproducible.
func sortChildren(children []*Run) {
	sort.SliceStable(children, func(i, j int) bool {
		return rootBefore(children[i], children[j])
	})
}
