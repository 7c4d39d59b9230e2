// tracelens is the main CLI: ingest traced runs, compute per-day health
// reports, curate evaluation datasets, and serve the analyzers over MCP.
//
// Usage:
//
//	tracelens ingest  --project=<name> --from=<date> --to=<date> [--base-url=<url>]
//	tracelens report  --signal=<scraper-error|availability|combined> --from=<date> --to=<date>
//	tracelens errors  --from=<date> --to=<date> [--project=<name>]
//	tracelens dataset --from=<date> --to=<date> --size=<n> -o <out.jsonl>
//	tracelens status
//	tracelens serve
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
