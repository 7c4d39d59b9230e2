package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tracelens/adapters/store"
	"tracelens/internal/curate"
	"tracelens/internal/dataset"
	"tracelens/internal/logging"
	"tracelens/internal/trace"
)

var datasetFlags struct {
	project string
	from    string
	to      string
	size    int
	outPath string
}

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Curate an availability evaluation dataset from stored runs",
	Long: `Extracts availability examples from the traces of a date range and
curates them into a bounded dataset: every failing (is_available=false)
example is kept after URL de-duplication, then passing examples fill the
remaining slots with maximal domain diversity. The result is written as
JSONL, one {"inputs": ..., "outputs": ...} object per line.`,
	RunE: runDataset,
}

func init() {
	f := datasetCmd.Flags()
	f.StringVar(&datasetFlags.project, "project", "", "Project name (empty: all projects)")
	f.StringVar(&datasetFlags.from, "from", "", "Start date YYYY-MM-DD, inclusive (default: 30 days ago)")
	f.StringVar(&datasetFlags.to, "to", "", "End date YYYY-MM-DD, inclusive (default: today)")
	f.IntVar(&datasetFlags.size, "size", 100, "Maximum number of curated examples")
	f.StringVarP(&datasetFlags.outPath, "out", "o", "dataset.jsonl", "Output JSONL path")
}

func runDataset(cmd *cobra.Command, _ []string) error {
	log := logging.New("dataset")
	if datasetFlags.from == "" || datasetFlags.to == "" {
		datasetFlags.from, datasetFlags.to = defaultDateRange(30)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.FindRuns(cmd.Context(), store.Query{
		Project: datasetFlags.project,
		From:    datasetFlags.from,
		To:      datasetFlags.to,
	})
	if err != nil {
		return fmt.Errorf("find runs: %w", err)
	}

	extractor := trace.NewExtractor(trace.DefaultTaskConfig())
	examples, skipped := curate.BuildExamples(runs, extractor, trace.TaskAvailability)
	if skipped > 0 {
		log.Info("skipped traces without a usable example", "skipped", skipped)
	}

	selected, stats, err := curate.Curate(examples, datasetFlags.size)
	if err != nil {
		return fmt.Errorf("curate: %w", err)
	}

	f, err := os.Create(datasetFlags.outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := dataset.WriteJSONL(f, selected); err != nil {
		f.Close()
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %d examples to %s (%d negative, %d positive, %d domains)\n",
		len(selected), datasetFlags.outPath, stats.Negatives, stats.Positives, stats.DistinctDomains)
	if stats.Shortfall != "" {
		fmt.Fprintf(out, "Note: %s\n", stats.Shortfall)
	}
	return nil
}
