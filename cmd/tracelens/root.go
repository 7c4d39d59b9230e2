package main

import (
	"github.com/spf13/cobra"

	"tracelens/adapters/store"
	"tracelens/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	dbPath    string
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "tracelens",
	Short: "Per-day health reports and dataset curation for LLM scraping traces",
	Long: "Tracelens ingests traced scraper runs, reconstructs trace hierarchies,\n" +
		"and computes scraper-error and availability reports plus curated\n" +
		"evaluation datasets.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logging.Init(logging.ParseLevel(rootFlags.logLevel), rootFlags.logFormat, cmd.ErrOrStderr())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.dbPath, "db", store.DefaultDBPath, "Path to the run database")
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(errorsCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}
