package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run database statistics",
	RunE:  runStatusCmd,
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("store stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database: %s\n", rootFlags.dbPath)
	fmt.Fprintf(out, "Runs:     %d\n", stats.Runs)
	fmt.Fprintf(out, "Traces:   %d\n", stats.Traces)
	if stats.First != "" {
		fmt.Fprintf(out, "Dates:    %s .. %s\n", stats.First, stats.Last)
	}
	if len(stats.ByProject) > 0 {
		fmt.Fprintf(out, "Projects:\n")
		names := make([]string, 0, len(stats.ByProject))
		for name := range stats.ByProject {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s: %d runs\n", name, stats.ByProject[name])
		}
	}
	return nil
}
