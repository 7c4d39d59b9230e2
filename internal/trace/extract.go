package trace

import (
	"log/slog"
	"strings"

	"tracelens/internal/logging"
)

// Fields is the flat triple extracted from one trace for one task type.
type Fields struct {
	Inputs    map[string]any
	Outputs   map[string]any
	Reference map[string]any
}

// Extractor produces extracted field maps from a trace, honoring the
// per-task protection policy so authoritative root values are never
// clobbered by child data. Extraction is a pure function of the trace
// and task table; the same inputs always yield the same Fields.
type Extractor struct {
	cfg TaskConfig
	log *slog.Logger
}

// NewExtractor returns an Extractor over the given task table.
func NewExtractor(cfg TaskConfig) *Extractor {
	return &Extractor{cfg: cfg, log: logging.New("extractor")}
}

// Extract merges the root run's fields with its children's and shapes
// the result per the task policy.
//
// The root's raw fields seed the result; each child then merges in with
// protection: a protected key already present is kept (root wins
// unconditionally; with no root, the first child writer wins), an
// absent key is gap-filled, and when both sides hold a nested map the
// maps merge recursively WITHOUT protection. Protection applies only to
// the top-level keys of each field map; nested sub-keys are not
// protected. Downstream datasets were built against this shallow
// behavior, so it is kept as-is rather than deepened.
func (e *Extractor) Extract(root *Run, children []*Run, task TaskType) Fields {
	spec, known := e.cfg.Task(task)
	if !known {
		e.log.Warn("unknown task type; extracting without policy", "task", string(task))
	}

	var primary Fields
	if root != nil {
		primary = rawFields(root)
	} else {
		primary = Fields{
			Inputs:    map[string]any{},
			Outputs:   map[string]any{},
			Reference: map[string]any{},
		}
	}

	protIn := keySet(spec.Protected.Inputs)
	protOut := keySet(spec.Protected.Outputs)
	protRef := keySet(spec.Protected.Reference)

	for _, child := range children {
		cf := rawFields(child)
		mergeWithProtection(primary.Inputs, cf.Inputs, protIn)
		mergeWithProtection(primary.Outputs, cf.Outputs, protOut)
		mergeWithProtection(primary.Reference, cf.Reference, protRef)
	}

	primary.Inputs = shapeAllowed(primary.Inputs, spec.Allow.Inputs)
	primary.Outputs = shapeAllowed(primary.Outputs, spec.Allow.Outputs)
	coerceBooleans(primary.Outputs, spec.Booleans)

	return primary
}

// rawFields reads the inputs/outputs/reference subtrees of a run's
// payload as flat maps. Wrong-shaped or missing subtrees read as empty
// maps. The maps are deep-copied so merging never mutates the payload.
func rawFields(r *Run) Fields {
	sub := func(key string) map[string]any {
		v, ok := r.Payload.Field(key)
		if !ok {
			return map[string]any{}
		}
		m := v.FlatMap()
		if m == nil {
			return map[string]any{}
		}
		return copyMap(m)
	}
	return Fields{
		Inputs:    sub("inputs"),
		Outputs:   sub("outputs"),
		Reference: sub("reference"),
	}
}

// mergeWithProtection merges src into dst. Top-level protected keys that
// dst already holds are skipped; absent keys are added; keys that are
// nested maps on both sides merge recursively with no protection below
// the top level; any other collision is last-writer-wins.
func mergeWithProtection(dst, src map[string]any, protected map[string]bool) {
	for key, sv := range src {
		dv, present := dst[key]
		if !present {
			dst[key] = sv
			continue
		}
		if protected[key] {
			continue
		}
		dm, dok := dv.(map[string]any)
		sm, sok := sv.(map[string]any)
		if dok && sok {
			mergeWithProtection(dm, sm, nil)
			continue
		}
		dst[key] = sv
	}
}

// shapeAllowed retains only allow-listed keys. An empty allow list means
// no filtering for that map.
func shapeAllowed(m map[string]any, allow []string) map[string]any {
	if len(allow) == 0 {
		return m
	}
	out := make(map[string]any, len(allow))
	for _, key := range allow {
		if v, ok := m[key]; ok {
			out[key] = v
		}
	}
	return out
}

// coerceBooleans rewrites evaluation-result keys to strict booleans.
// Accepted encodings: bool, 0/1 numbers, "true"/"false" strings.
// Anything else is dropped rather than emitted mistyped.
func coerceBooleans(m map[string]any, keys []string) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		b, ok := asBool(v)
		if !ok {
			delete(m, key)
			continue
		}
		m[key] = b
	}
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		if t == 0 {
			return false, true
		}
		if t == 1 {
			return true, true
		}
	case int:
		if t == 0 {
			return false, true
		}
		if t == 1 {
			return true, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func keySet(keys []string) map[string]bool {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = copyMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
