package classify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"tracelens/internal/logging"
)

func TestCategorize_DefaultRules(t *testing.T) {
	c := Default()

	cases := []struct {
		message string
		want    string
	}{
		{"navigation timeout of 30000ms exceeded", "timeout_errors"},
		{"context deadline exceeded while fetching page", "timeout_errors"},
		{"HTTP error: status code 429 Too Many Requests", "rate_limit_errors"},
		{"blocked: Cloudflare challenge page served", "blocked_errors"},
		{"GET returned status code 404", "not_found_errors"},
		{"dial tcp: connection refused", "connection_errors"},
		{"upstream returned status code 503", "upstream_errors"},
		{"invalid JSON in model response", "parsing_errors"},
		{"request rejected: context length exceeded", "llm_provider_errors"},
		{"", FallbackKey},
		{"some novel failure we have never seen", FallbackKey},
	}
	for _, tc := range cases {
		if got := c.Categorize(tc.message); got != tc.want {
			t.Errorf("Categorize(%q) = %q, want %q", tc.message, got, tc.want)
		}
	}
}

func TestCategorize_FirstMatchWins(t *testing.T) {
	c, err := Load([]byte(`
categories:
  - key: first
    patterns: ['alpha']
  - key: second
    patterns: ['alpha beta']
`))
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Categorize("alpha beta"); got != "first" {
		t.Errorf("got %q, want first (rule order decides)", got)
	}
}

func TestCategorize_Total(t *testing.T) {
	c := Default()
	valid := make(map[string]bool)
	for _, k := range c.Keys() {
		valid[k] = true
	}
	for _, msg := range []string{"", "x", "TIMEOUT", "Status Code 502", strings.Repeat("z", 10_000)} {
		key := c.Categorize(msg)
		if !valid[key] {
			t.Errorf("Categorize(%q) = %q, not a configured key", msg, key)
		}
	}
}

func TestCategorize_CaseInsensitive(t *testing.T) {
	c := Default()
	if got := c.Categorize("Request TIMED OUT after retries"); got != "timeout_errors" {
		t.Errorf("got %q", got)
	}
}

func TestCategorizeRun_LogsUnmatched(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(slog.LevelInfo, "text", &buf)
	c := Default()

	if got := c.CategorizeRun("shop", "T42", "entirely novel breakage"); got != FallbackKey {
		t.Fatalf("got %q", got)
	}
	out := buf.String()
	for _, want := range []string{"trace_id=T42", "project=shop", "novel breakage"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}

	// Matched messages are not logged.
	buf.Reset()
	c.CategorizeRun("shop", "T43", "timeout")
	if strings.Contains(buf.String(), "unclassified") {
		t.Error("matched message should not log")
	}

	// Empty messages are not worth triage noise.
	buf.Reset()
	c.CategorizeRun("shop", "T44", "")
	if strings.Contains(buf.String(), "unclassified") {
		t.Error("empty message should not log")
	}
}

func TestLoad_Invalid(t *testing.T) {
	if _, err := Load([]byte("categories: []")); err == nil {
		t.Error("empty rule set should fail")
	}
	if _, err := Load([]byte("categories:\n  - key: bad\n    patterns: ['[unclosed']")); err == nil {
		t.Error("bad regex should fail at load, not at classify time")
	}
	if _, err := Load([]byte("categories:\n  - key: ''\n    patterns: ['x']")); err == nil {
		t.Error("empty key should fail")
	}
}

func TestKeys_IncludesFallback(t *testing.T) {
	c := Default()
	keys := c.Keys()
	if keys[len(keys)-1] != FallbackKey {
		t.Errorf("last key = %q, want %q", keys[len(keys)-1], FallbackKey)
	}
}
