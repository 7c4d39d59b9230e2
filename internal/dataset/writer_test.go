package dataset

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"tracelens/internal/curate"
)

func TestWriteJSONL_Contract(t *testing.T) {
	examples := []curate.Example{
		{
			Inputs:    map[string]any{"url": "https://a.example.com/p/1"},
			Outputs:   map[string]any{"is_available": true, "notes": "in stock"},
			Reference: map[string]any{"leak": "must not appear"},
			Meta:      curate.Metadata{TraceID: "T1", CreatedAt: time.Now()},
		},
		{
			Inputs:  map[string]any{"url": "https://b.example.com/p/2"},
			Outputs: map[string]any{"is_available": false, "notes": "sold out"},
			Meta:    curate.Metadata{TraceID: "T2"},
		},
	}

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, examples); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	for i, l := range lines {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(l), &obj); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if len(obj) != 2 {
			t.Errorf("line %d: top-level keys = %d, want exactly inputs+outputs", i, len(obj))
		}
		for _, key := range []string{"inputs", "outputs"} {
			if _, ok := obj[key]; !ok {
				t.Errorf("line %d: missing %q", i, key)
			}
		}
		if strings.Contains(l, "leak") || strings.Contains(l, "T1") {
			t.Errorf("line %d leaks metadata/reference: %s", i, l)
		}
	}

	// Booleans are strict JSON booleans, never 0/1 or strings.
	if !strings.Contains(lines[0], `"is_available":true`) {
		t.Errorf("line 0: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"is_available":false`) {
		t.Errorf("line 1: %s", lines[1])
	}
}

func TestWriteJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty set should write nothing, got %q", buf.String())
	}
}
