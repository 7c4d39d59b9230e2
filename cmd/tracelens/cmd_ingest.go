package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tracelens/adapters/fetch"
	"tracelens/internal/logging"
	"tracelens/internal/payload"
	"tracelens/internal/trace"
)

var ingestFlags struct {
	project    string
	from       string
	to         string
	baseURL    string
	apiKeyFile string
	file       string
	workers    int
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch runs from the tracing platform and upsert them into the local store",
	Long: `Fetches run documents for a project and date range from the tracing
platform API (or reads them from a local JSON file with --file) and upserts
them into the run database. Re-ingesting the same range is idempotent:
existing runs are updated in place, never duplicated.`,
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestFlags.project, "project", "", "Project name (required unless --file)")
	f.StringVar(&ingestFlags.from, "from", "", "Start date YYYY-MM-DD, inclusive (default: 7 days ago)")
	f.StringVar(&ingestFlags.to, "to", "", "End date YYYY-MM-DD, inclusive (default: today)")
	f.StringVar(&ingestFlags.baseURL, "base-url", "https://tracing.example.com", "Tracing platform base URL")
	f.StringVar(&ingestFlags.apiKeyFile, "api-key-file", ".trace-api-key", "Path to the platform API key file")
	f.StringVar(&ingestFlags.file, "file", "", "Ingest run documents from a local JSON array instead of the API")
	f.IntVar(&ingestFlags.workers, "workers", 4, "Concurrent per-day fetches")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	log := logging.New("ingest")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	var runs []trace.Run
	if ingestFlags.file != "" {
		runs, err = loadRunsFile(ingestFlags.file)
	} else {
		runs, err = fetchRuns(cmd.Context())
	}
	if err != nil {
		return err
	}

	inserted, updated, err := s.UpsertRuns(cmd.Context(), runs)
	if err != nil {
		return fmt.Errorf("upsert runs: %w", err)
	}
	log.Info("ingest complete", "runs", len(runs), "inserted", inserted, "updated", updated)
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d runs (%d new, %d updated) into %s\n",
		len(runs), inserted, updated, rootFlags.dbPath)
	return nil
}

// fetchRuns fans the date range out day by day so slow days don't
// serialize the whole ingest.
func fetchRuns(ctx context.Context) ([]trace.Run, error) {
	if ingestFlags.project == "" {
		return nil, fmt.Errorf("--project is required when fetching from the API")
	}
	if ingestFlags.from == "" || ingestFlags.to == "" {
		ingestFlags.from, ingestFlags.to = defaultDateRange(7)
	}
	days, err := rangeDays(ingestFlags.from, ingestFlags.to)
	if err != nil {
		return nil, err
	}
	if err := checkTokenFile(ingestFlags.apiKeyFile); err != nil {
		return nil, err
	}
	key, err := fetch.ReadAPIKey(ingestFlags.apiKeyFile)
	if err != nil {
		return nil, err
	}
	client := fetch.NewClient(fetch.Config{
		BaseURL: ingestFlags.baseURL,
		APIKey:  key,
		Project: ingestFlags.project,
	})

	var (
		mu   sync.Mutex
		runs []trace.Run
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ingestFlags.workers)
	for _, day := range days {
		g.Go(func() error {
			got, err := client.ListRuns(gCtx, day, day)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", day, err)
			}
			mu.Lock()
			runs = append(runs, got...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

// fileRun is the local-file ingest shape: the flattened run document
// fields plus the raw payload.
type fileRun struct {
	RunID     string          `json:"run_id"`
	TraceID   string          `json:"trace_id"`
	Project   string          `json:"project"`
	Date      string          `json:"date"`
	CreatedAt string          `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

func loadRunsFile(path string) ([]trace.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read runs file: %w", err)
	}
	var docs []fileRun
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse runs file %s: %w", path, err)
	}
	runs := make([]trace.Run, 0, len(docs))
	for _, d := range docs {
		created, err := time.Parse(time.RFC3339, d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s created_at: %w", d.RunID, err)
		}
		body, err := payload.Parse(d.Payload)
		if err != nil {
			return nil, fmt.Errorf("run %s payload: %w", d.RunID, err)
		}
		runs = append(runs, trace.Run{
			RunID:     d.RunID,
			TraceID:   d.TraceID,
			Project:   d.Project,
			Date:      d.Date,
			CreatedAt: created,
			Payload:   body,
		})
	}
	return runs, nil
}
