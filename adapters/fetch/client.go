// Package fetch is the tracing-platform API client: it lists run
// documents for a project and date range so they can be upserted into
// the local store. Retry/backoff belongs to callers wrapping this
// client, not here.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"tracelens/internal/payload"
	"tracelens/internal/trace"
)

// Config holds platform API connection settings.
type Config struct {
	BaseURL string // e.g. https://tracing.example.com
	APIKey  string // Bearer token (e.g. from .trace-api-key)
	Project string
}

// Client is a platform API client for listing run documents.
type Client struct {
	HTTPClient *http.Client
	Config     Config
}

// NewClient returns a client with the given config. A nil HTTPClient
// falls back to http.DefaultClient.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{Config: cfg, HTTPClient: http.DefaultClient}
}

// Wire shape of one run document as the platform returns it.
type runDoc struct {
	ID        string          `json:"id"`
	TraceID   string          `json:"trace_id"`
	Project   string          `json:"project"`
	StartTime time.Time       `json:"start_time"`
	Payload   json.RawMessage `json:"payload"`
}

type runPage struct {
	Runs   []runDoc `json:"runs"`
	Cursor string   `json:"cursor"` // empty on the last page
}

// ListRuns pages through the platform's run-query endpoint for the
// inclusive [from, to] date range (YYYY-MM-DD, UTC days).
func (c *Client) ListRuns(ctx context.Context, from, to string) ([]trace.Run, error) {
	var all []trace.Run
	cursor := ""
	for {
		page, err := c.fetchPage(ctx, from, to, cursor)
		if err != nil {
			return nil, err
		}
		for _, doc := range page.Runs {
			run, err := docToRun(doc)
			if err != nil {
				return nil, err
			}
			all = append(all, run)
		}
		if page.Cursor == "" {
			return all, nil
		}
		cursor = page.Cursor
	}
}

func (c *Client) fetchPage(ctx context.Context, from, to, cursor string) (*runPage, error) {
	q := url.Values{}
	q.Set("project", c.Config.Project)
	q.Set("from", from)
	q.Set("to", to)
	q.Set("page_size", "200")
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u := fmt.Sprintf("%s/api/v1/runs?%s", c.Config.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	if c.Config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch: runs %s: %s", resp.Status, string(body))
	}

	var page runPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("fetch: decode page: %w", err)
	}
	return &page, nil
}

func docToRun(doc runDoc) (trace.Run, error) {
	if doc.ID == "" {
		return trace.Run{}, fmt.Errorf("fetch: run document without id (trace %q)", doc.TraceID)
	}
	body := doc.Payload
	if len(body) == 0 {
		body = []byte("{}")
	}
	pv, err := payload.Parse(body)
	if err != nil {
		return trace.Run{}, fmt.Errorf("fetch: run %q payload: %w", doc.ID, err)
	}
	created := doc.StartTime.UTC()
	return trace.Run{
		RunID:     doc.ID,
		TraceID:   doc.TraceID,
		Project:   doc.Project,
		Date:      created.Format("2006-01-02"),
		CreatedAt: created,
		Payload:   pv,
	}, nil
}

// ReadAPIKey reads the first line of path (e.g. .trace-api-key) trimmed.
func ReadAPIKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Split(string(data), "\n")[0]), nil
}
