// Package mcp exposes the report analyzers and dataset curation as MCP
// tools over stdio, so editor agents can pull health numbers and curate
// datasets without shelling out to the CLI.
package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"tracelens/adapters/store"
	"tracelens/internal/analyze"
	"tracelens/internal/curate"
	"tracelens/internal/trace"
)

// Server wraps the MCP SDK server around a run store.
type Server struct {
	MCPServer *sdkmcp.Server
	store     store.Store
	taskCfg   trace.TaskConfig
}

// NewServer creates an MCP server exposing report and curation tools
// backed by the given store.
func NewServer(s store.Store) *Server {
	srv := &Server{
		store:   s,
		taskCfg: trace.DefaultTaskConfig(),
	}
	srv.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "tracelens", Version: "dev"},
		nil,
	)
	srv.registerTools()
	return srv
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "scraper_error_report",
		Description: "Per-day scraper-error rate: a trace fails when any run in its hierarchy is a scraper step with non-success status.",
	}, s.handleScraperErrorReport)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "availability_report",
		Description: "Per-day availability-failure rate: a trace fails when the root run's is_available output is explicitly false.",
	}, s.handleAvailabilityReport)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "combined_report",
		Description: "Both signals per day from one aggregation pass, sharing the same total-trace denominator.",
	}, s.handleCombinedReport)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "curate_dataset",
		Description: "Curate a bounded, de-duplicated, domain-diverse availability dataset from the stored runs of a date range.",
	}, s.handleCurateDataset)
}

// --- Tool input/output types ---

type reportInput struct {
	Project string `json:"project,omitempty" jsonschema:"project name; empty means all projects"`
	From    string `json:"from" jsonschema:"start date YYYY-MM-DD, inclusive, UTC"`
	To      string `json:"to" jsonschema:"end date YYYY-MM-DD, inclusive, UTC"`
	Step    string `json:"scraper_step,omitempty" jsonschema:"scraper step name override"`
}

func (in reportInput) query() store.Query {
	return store.Query{Project: in.Project, From: in.From, To: in.To, ScraperStep: in.Step}
}

type reportOutput struct {
	Rows []analyze.Row `json:"rows"`
}

type combinedReportOutput struct {
	Rows []analyze.CombinedRow `json:"rows"`
}

type curateInput struct {
	Project    string `json:"project,omitempty" jsonschema:"project name; empty means all projects"`
	From       string `json:"from" jsonschema:"start date YYYY-MM-DD, inclusive, UTC"`
	To         string `json:"to" jsonschema:"end date YYYY-MM-DD, inclusive, UTC"`
	TargetSize int    `json:"target_size" jsonschema:"maximum number of curated examples"`
}

type curateOutput struct {
	Selected        int    `json:"selected"`
	Negatives       int    `json:"negatives"`
	Positives       int    `json:"positives"`
	DistinctDomains int    `json:"distinct_domains"`
	SkippedTraces   int    `json:"skipped_traces"`
	Shortfall       string `json:"shortfall,omitempty"`
}

// --- Tool handlers ---

func (s *Server) handleScraperErrorReport(ctx context.Context, _ *sdkmcp.CallToolRequest, input reportInput) (*sdkmcp.CallToolResult, reportOutput, error) {
	rows, err := analyze.ScraperErrorReport(ctx, s.store, input.query())
	if err != nil {
		return nil, reportOutput{}, fmt.Errorf("scraper_error_report: %w", err)
	}
	return nil, reportOutput{Rows: rows}, nil
}

func (s *Server) handleAvailabilityReport(ctx context.Context, _ *sdkmcp.CallToolRequest, input reportInput) (*sdkmcp.CallToolResult, reportOutput, error) {
	rows, err := analyze.AvailabilityReport(ctx, s.store, input.query())
	if err != nil {
		return nil, reportOutput{}, fmt.Errorf("availability_report: %w", err)
	}
	return nil, reportOutput{Rows: rows}, nil
}

func (s *Server) handleCombinedReport(ctx context.Context, _ *sdkmcp.CallToolRequest, input reportInput) (*sdkmcp.CallToolResult, combinedReportOutput, error) {
	rows, err := analyze.CombinedReport(ctx, s.store, input.query())
	if err != nil {
		return nil, combinedReportOutput{}, fmt.Errorf("combined_report: %w", err)
	}
	return nil, combinedReportOutput{Rows: rows}, nil
}

func (s *Server) handleCurateDataset(ctx context.Context, _ *sdkmcp.CallToolRequest, input curateInput) (*sdkmcp.CallToolResult, curateOutput, error) {
	runs, err := s.store.FindRuns(ctx, store.Query{Project: input.Project, From: input.From, To: input.To})
	if err != nil {
		return nil, curateOutput{}, fmt.Errorf("curate_dataset: %w", err)
	}
	examples, skipped := curate.BuildExamples(runs, trace.NewExtractor(s.taskCfg), trace.TaskAvailability)
	selected, stats, err := curate.Curate(examples, input.TargetSize)
	if err != nil {
		return nil, curateOutput{}, fmt.Errorf("curate_dataset: %w", err)
	}
	return nil, curateOutput{
		Selected:        len(selected),
		Negatives:       stats.Negatives,
		Positives:       stats.Positives,
		DistinctDomains: stats.DistinctDomains,
		SkippedTraces:   skipped,
		Shortfall:       stats.Shortfall,
	}, nil
}
