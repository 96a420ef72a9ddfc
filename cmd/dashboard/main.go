/*
main.go - Application entry point

PURPOSE:
  Runs the dashboard command line. All wiring lives in the cli package.

COMMANDS:
  serve     HTTP API (see api/server.go)
  summary   Headline indicators in text or JSON
  import    Convert spreadsheet + forecasts into SQLite

ENVIRONMENT:
  DASHBOARD_ADDR, DASHBOARD_DATASET, DASHBOARD_FORECASTS,
  DASHBOARD_LOG_LEVEL, DASHBOARD_CORS_ORIGINS override the config file.

EXAMPLES:
  ./dashboard serve --addr :3000
  ./dashboard summary --format json --scenario optimistic
  ./dashboard import -o data/processed/dashboard.db

SEE ALSO:
  - cli/root.go: Global flags
  - config/config.go: Settings and defaults
*/
package main

import (
	"fmt"
	"os"

	"github.com/warp/inclusion-dashboard/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
