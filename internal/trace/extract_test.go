package trace

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var extractBase = time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

func availRun(runID, traceID string, offset time.Duration, outputs map[string]any, inputs map[string]any) Run {
	body := map[string]any{}
	if inputs != nil {
		body["inputs"] = inputs
	}
	if outputs != nil {
		body["outputs"] = outputs
	}
	return mkRun(runID, traceID, extractBase.Add(offset), body)
}

func TestExtract_ProtectionInvariant(t *testing.T) {
	// Root says available; no quantity of disagreeing or empty children
	// may flip it.
	root := availRun("T1", "T1", 0,
		map[string]any{"is_available": true, "notes": "in stock, ships today"},
		map[string]any{"url": "https://shop.example.com/p/1"})
	children := []*Run{
		ptr(availRun("c1", "T1", time.Second, map[string]any{"is_available": false}, nil)),
		ptr(availRun("c2", "T1", 2*time.Second, map[string]any{"is_available": nil}, nil)),
		ptr(availRun("c3", "T1", 3*time.Second, nil, nil)),
	}

	e := NewExtractor(DefaultTaskConfig())
	f := e.Extract(&root, children, TaskAvailability)

	if got, ok := f.Outputs["is_available"].(bool); !ok || got != true {
		t.Errorf("is_available = %v (%T), want true", f.Outputs["is_available"], f.Outputs["is_available"])
	}
	if f.Outputs["notes"] != "in stock, ships today" {
		t.Errorf("notes = %v", f.Outputs["notes"])
	}
	if f.Inputs["url"] != "https://shop.example.com/p/1" {
		t.Errorf("url = %v", f.Inputs["url"])
	}
}

func TestExtract_GapFilling(t *testing.T) {
	root := availRun("T1", "T1", 0, map[string]any{"notes": "checked manually"}, nil)
	child := availRun("c1", "T1", time.Second,
		map[string]any{"is_available": false},
		map[string]any{"url": "https://shop.example.com/p/2"})

	e := NewExtractor(DefaultTaskConfig())
	f := e.Extract(&root, []*Run{ptr(child)}, TaskAvailability)

	if got, ok := f.Outputs["is_available"].(bool); !ok || got != false {
		t.Errorf("is_available = %v, want false (gap-filled from child)", f.Outputs["is_available"])
	}
	if f.Outputs["notes"] != "checked manually" {
		t.Errorf("notes = %v, want root's value", f.Outputs["notes"])
	}
	if f.Inputs["url"] != "https://shop.example.com/p/2" {
		t.Errorf("url = %v, want child's value", f.Inputs["url"])
	}
}

func TestExtract_NoRoot_FirstChildWinsProtected(t *testing.T) {
	c1 := availRun("c1", "T1", time.Second, map[string]any{"is_available": false, "notes": "404"}, nil)
	c2 := availRun("c2", "T1", 2*time.Second, map[string]any{"is_available": true, "notes": "fine"}, nil)

	e := NewExtractor(DefaultTaskConfig())
	f := e.Extract(nil, []*Run{&c1, &c2}, TaskAvailability)

	if got, ok := f.Outputs["is_available"].(bool); !ok || got != false {
		t.Errorf("is_available = %v, want first child's false", f.Outputs["is_available"])
	}
	if f.Outputs["notes"] != "404" {
		t.Errorf("notes = %v, want first child's", f.Outputs["notes"])
	}
}

func TestExtract_UnprotectedLastWriterWins(t *testing.T) {
	// The extraction task protects nothing: children overwrite.
	root := availRun("T1", "T1", 0, map[string]any{"data": "v1", "notes": "root"}, nil)
	child := availRun("c1", "T1", time.Second, map[string]any{"data": "v2"}, nil)

	e := NewExtractor(DefaultTaskConfig())
	f := e.Extract(&root, []*Run{ptr(child)}, TaskExtraction)

	if f.Outputs["data"] != "v2" {
		t.Errorf("data = %v, want child's v2", f.Outputs["data"])
	}
	if f.Outputs["notes"] != "root" {
		t.Errorf("notes = %v", f.Outputs["notes"])
	}
}

func TestExtract_NestedMapsMergeUnprotected(t *testing.T) {
	// Protection is top-level only: sub-keys of a nested map merge
	// last-writer-wins even under a protected parent key.
	cfg, err := LoadTaskConfig([]byte(`
tasks:
  nested:
    protected:
      outputs: [details]
    allow: {}
    booleans: []
`))
	if err != nil {
		t.Fatal(err)
	}

	root := availRun("T1", "T1", 0, map[string]any{
		"details": map[string]any{"color": "red", "size": "M"},
	}, nil)
	child := availRun("c1", "T1", time.Second, map[string]any{
		"extra": "x",
		"other": map[string]any{"a": 1},
	}, nil)

	e := NewExtractor(cfg)
	f := e.Extract(&root, []*Run{ptr(child)}, TaskType("nested"))

	want := map[string]any{
		"details": map[string]any{"color": "red", "size": "M"},
		"extra":   "x",
		"other":   map[string]any{"a": 1},
	}
	if diff := cmp.Diff(want, f.Outputs); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}

	// A child that also carries the protected key as a map is skipped
	// wholesale (the key is present on the root).
	child2 := availRun("c2", "T1", 2*time.Second, map[string]any{
		"details": map[string]any{"color": "blue"},
	}, nil)
	f = e.Extract(&root, []*Run{ptr(child2)}, TaskType("nested"))
	details := f.Outputs["details"].(map[string]any)
	if details["color"] != "red" {
		t.Errorf("protected nested map was overwritten: %v", details)
	}
}

func TestExtract_UnprotectedNestedRecursion(t *testing.T) {
	root := availRun("T1", "T1", 0, map[string]any{
		"data": map[string]any{"title": "Widget", "price": 9.99},
	}, nil)
	child := availRun("c1", "T1", time.Second, map[string]any{
		"data": map[string]any{"price": 12.50, "currency": "EUR"},
	}, nil)

	e := NewExtractor(DefaultTaskConfig())
	f := e.Extract(&root, []*Run{ptr(child)}, TaskExtraction)

	want := map[string]any{
		"title":    "Widget",
		"price":    12.50,
		"currency": "EUR",
	}
	if diff := cmp.Diff(want, f.Outputs["data"]); diff != "" {
		t.Errorf("nested merge mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_MalformedSubtreeTreatedAbsent(t *testing.T) {
	// outputs is a string where a map is expected: read as empty.
	root := mkRun("T1", "T1", extractBase, map[string]any{"outputs": "oops"})
	child := availRun("c1", "T1", time.Second, map[string]any{"is_available": true}, nil)

	e := NewExtractor(DefaultTaskConfig())
	f := e.Extract(&root, []*Run{ptr(child)}, TaskAvailability)

	if got, ok := f.Outputs["is_available"].(bool); !ok || got != true {
		t.Errorf("is_available = %v, want child's true", f.Outputs["is_available"])
	}
}

func TestExtract_AllowListShaping(t *testing.T) {
	root := availRun("T1", "T1", 0,
		map[string]any{"is_available": true, "notes": "ok", "raw_html": "<html>", "debug": 1},
		map[string]any{"url": "https://a.example.com", "session_token": "secret"})

	e := NewExtractor(DefaultTaskConfig())
	f := e.Extract(&root, nil, TaskAvailability)

	if _, ok := f.Outputs["raw_html"]; ok {
		t.Error("raw_html should be stripped by the allow list")
	}
	if _, ok := f.Inputs["session_token"]; ok {
		t.Error("session_token should be stripped by the allow list")
	}
	if len(f.Outputs) != 2 || len(f.Inputs) != 1 {
		t.Errorf("shaped sizes: inputs=%d outputs=%d", len(f.Inputs), len(f.Outputs))
	}
}

func TestExtract_BooleanCoercion(t *testing.T) {
	cases := []struct {
		raw  any
		want any // nil means dropped
	}{
		{true, true},
		{false, false},
		{float64(1), true},
		{float64(0), false},
		{"true", true},
		{"False", false},
		{"maybe", nil},
		{float64(2), nil},
	}
	e := NewExtractor(DefaultTaskConfig())
	for _, tc := range cases {
		root := availRun("T1", "T1", 0, map[string]any{"is_available": tc.raw}, nil)
		f := e.Extract(&root, nil, TaskAvailability)
		got, present := f.Outputs["is_available"]
		if tc.want == nil {
			if present {
				t.Errorf("raw %v: expected drop, got %v", tc.raw, got)
			}
			continue
		}
		if b, ok := got.(bool); !ok || b != tc.want.(bool) {
			t.Errorf("raw %v: got %v (%T), want %v", tc.raw, got, got, tc.want)
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	root := availRun("T1", "T1", 0, map[string]any{"is_available": true, "notes": "n"},
		map[string]any{"url": "https://x.example.com"})
	children := []*Run{
		ptr(availRun("c1", "T1", time.Second, map[string]any{"is_available": false}, nil)),
	}
	e := NewExtractor(DefaultTaskConfig())
	a := e.Extract(&root, children, TaskAvailability)
	b := e.Extract(&root, children, TaskAvailability)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("extraction not deterministic:\n%s", diff)
	}
}

func ptr(r Run) *Run { return &r }
