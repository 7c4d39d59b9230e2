// Package dataset emits curated examples as JSONL for downstream model
// grading. The wire contract is strict: one object per line, top-level
// keys exactly "inputs" and "outputs", booleans as JSON booleans.
// Provenance metadata and reference fields never leave the process.
package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"tracelens/internal/curate"
)

type line struct {
	Inputs  map[string]any `json:"inputs"`
	Outputs map[string]any `json:"outputs"`
}

// WriteJSONL writes one JSON object per example to w.
func WriteJSONL(w io.Writer, examples []curate.Example) error {
	enc := json.NewEncoder(w)
	for i, e := range examples {
		if err := enc.Encode(line{Inputs: e.Inputs, Outputs: e.Outputs}); err != nil {
			return fmt.Errorf("dataset: encode example %d (trace %s): %w", i, e.Meta.TraceID, err)
		}
	}
	return nil
}
