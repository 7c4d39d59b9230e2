// Package curate reduces the full candidate example set for an
// evaluation task to a bounded, de-duplicated, diverse subset. It keeps
// every distinct negative example, fills the remaining slots with
// positives spread across as many domains as possible, and gates the
// result behind a fatal validation pass.
package curate

import (
	"fmt"
	"time"
)

// Metadata carries example provenance. Used only during curation, never
// emitted in dataset output.
type Metadata struct {
	TraceID   string
	CreatedAt time.Time
}

// Example is one candidate input/output pair extracted from a trace.
type Example struct {
	Inputs    map[string]any
	Outputs   map[string]any
	Reference map[string]any
	Meta      Metadata
}

// URL returns the example's input URL, or "" when absent or mistyped.
func (e Example) URL() string {
	s, _ := e.Inputs["url"].(string)
	return s
}

// Available returns the availability verdict. ok is false when the
// output is missing or not a strict boolean.
func (e Example) Available() (value, ok bool) {
	b, ok := e.Outputs["is_available"].(bool)
	return b, ok
}

// Notes returns the output notes text, or "" when absent.
func (e Example) Notes() string {
	s, _ := e.Outputs["notes"].(string)
	return s
}

func (e Example) describe() string {
	return fmt.Sprintf("trace=%s url=%s", e.Meta.TraceID, e.URL())
}
