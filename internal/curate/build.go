package curate

import (
	"time"

	"tracelens/internal/logging"
	"tracelens/internal/trace"
)

// BuildExamples reconstructs traces from raw runs and extracts one
// candidate example per trace for the given task. Traces that extract
// without a usable input URL or boolean verdict are skipped and counted;
// they are data-quality gaps, not candidates, and failing the whole
// batch over them would make curation impossible on real data.
func BuildExamples(runs []trace.Run, extractor *trace.Extractor, task trace.TaskType) (examples []Example, skipped int) {
	logger := logging.New("curator")

	groups, stats := trace.GroupRuns(runs)
	for _, g := range groups {
		fields := extractor.Extract(g.Root, g.Children, task)
		e := Example{
			Inputs:    fields.Inputs,
			Outputs:   fields.Outputs,
			Reference: fields.Reference,
			Meta:      Metadata{TraceID: g.TraceID, CreatedAt: groupCreatedAt(g)},
		}
		if e.URL() == "" {
			skipped++
			continue
		}
		if _, ok := e.Available(); !ok {
			skipped++
			continue
		}
		examples = append(examples, e)
	}

	if skipped > 0 {
		logger.Warn("skipped traces without curable fields",
			"skipped", skipped, "traces", stats.Traces, "task", string(task))
	}
	return examples, skipped
}

func groupCreatedAt(g *trace.Group) time.Time {
	if g.Root != nil {
		return g.Root.CreatedAt
	}
	var created time.Time
	for _, c := range g.Children {
		if created.IsZero() || c.CreatedAt.Before(created) {
			created = c.CreatedAt
		}
	}
	return created
}
