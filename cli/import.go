package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/inclusion-dashboard/dataset"
	"github.com/warp/inclusion-dashboard/indicator"
	"github.com/warp/inclusion-dashboard/store/sqlite"
	"go.uber.org/zap"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	Out       string
	Dataset   string
	Forecasts string
}

// ImportResult reports what was written.
type ImportResult struct {
	Database     string         `json:"database"`
	Records      map[string]int `json:"records"`
	Forecasts    int            `json:"forecasts"`
	ForecastNote string         `json:"forecast_note,omitempty"`
}

// NewImportCommand creates the import command, which converts the dataset
// (and the forecast table when present) into a SQLite database that serve
// and summary can read in place of the spreadsheet.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Convert the dataset and forecasts into a SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			if opts.Dataset == "" {
				opts.Dataset = cfg.Data.DatasetPath
			}
			if opts.Forecasts == "" {
				opts.Forecasts = cfg.Data.ForecastPath
			}
			log, err := newLogger(cfg, rootOpts.Verbose)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "invalid log level", Err: err}
			}
			defer log.Sync()

			result, err := runImport(cmd, opts, log)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", result.Database)
			for _, typ := range []indicator.RecordType{indicator.RecordObservation, indicator.RecordEvent, indicator.RecordImpactLink} {
				fmt.Fprintf(out, "  %-12s %d\n", typ, result.Records[string(typ)])
			}
			fmt.Fprintf(out, "  %-12s %d\n", "forecasts", result.Forecasts)
			if result.ForecastNote != "" {
				fmt.Fprintf(out, "  note: %s\n", result.ForecastNote)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "dashboard.db", "SQLite database to write")
	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "dataset file (default data.dataset_path)")
	cmd.Flags().StringVar(&opts.Forecasts, "forecasts", "", "forecast file (default data.forecast_path)")
	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions, log *zap.Logger) (*ImportResult, error) {
	ctx := cmd.Context()
	loader := dataset.NewLoader(log)

	snap, _, err := loader.LoadDataset(ctx, opts.Dataset)
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, Message: "failed to load dataset", Err: err}
	}

	store, err := sqlite.New(opts.Out)
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, Message: "failed to open database", Err: err}
	}
	defer store.Close()

	if err := store.SaveSnapshot(ctx, snap); err != nil {
		return nil, &ExitError{Code: ExitFailure, Message: "failed to write observations", Err: err}
	}

	result := &ImportResult{Database: opts.Out, Records: make(map[string]int)}
	for typ, n := range snap.Counts() {
		result.Records[string(typ)] = n
	}

	set, _, err := loader.LoadForecasts(ctx, opts.Forecasts)
	switch {
	case indicator.IsUnavailable(err):
		result.ForecastNote = "forecasts not imported: " + err.Error()
		log.Warn("forecasts not imported", zap.Error(err))
	case err != nil:
		return nil, &ExitError{Code: ExitFailure, Message: "failed to load forecasts", Err: err}
	default:
		if err := store.SaveForecasts(ctx, set); err != nil {
			return nil, &ExitError{Code: ExitFailure, Message: "failed to write forecasts", Err: err}
		}
		result.Forecasts = set.Len()
	}

	log.Info("import complete",
		zap.String("database", opts.Out),
		zap.Int("records", len(snap.Records())),
		zap.Int("forecasts", result.Forecasts))
	return result, nil
}
