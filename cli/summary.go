package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/inclusion-dashboard/config"
	"github.com/warp/inclusion-dashboard/dataset"
	"github.com/warp/inclusion-dashboard/indicator"
)

// notAvailable is printed for an absent value.
const notAvailable = "N/A"

// Summary is the headline view of the dataset, printed by `dashboard summary`.
type Summary struct {
	Source     string         `json:"source"`
	Counts     map[string]int `json:"counts"`
	MinYear    *int           `json:"min_year"`
	MaxYear    *int           `json:"max_year"`
	Cards      []CardSummary  `json:"cards"`
	Ratio      RatioSummary   `json:"ratio"`
	Projection ProjSummary    `json:"projection"`
}

// CardSummary is one headline metric. Value and Delta are null when absent.
type CardSummary struct {
	Title   string              `json:"title"`
	Keyword string              `json:"keyword"`
	Value   decimal.NullDecimal `json:"value"`
	Year    *int                `json:"year"`
	Delta   decimal.NullDecimal `json:"delta"`
}

// RatioSummary is the P2P/ATM ratio table.
type RatioSummary struct {
	Available bool       `json:"available"`
	Points    []RatioRow `json:"points"`
}

// RatioRow is one joined year; Ratio is null when undefined.
type RatioRow struct {
	Year  int                 `json:"year"`
	P2P   decimal.NullDecimal `json:"p2p"`
	ATM   decimal.NullDecimal `json:"atm"`
	Ratio decimal.NullDecimal `json:"ratio"`
}

// ProjSummary is the inclusion projection for one scenario.
type ProjSummary struct {
	Scenario  string          `json:"scenario"`
	Target    decimal.Decimal `json:"target"`
	Available bool            `json:"available"`
	Warning   string          `json:"warning,omitempty"`
	Reached   bool            `json:"reached"`
	ReachedIn *int            `json:"reached_in"`
}

// SummaryOptions holds flags for the summary command.
type SummaryOptions struct {
	Scenario string
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SummaryOptions{}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print headline indicators, the P2P/ATM ratio and the inclusion projection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, rootOpts.Verbose)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "invalid log level", Err: err}
			}
			defer log.Sync()

			session := dataset.NewSession(dataset.NewLoader(log), cfg.Data.DatasetPath, cfg.Data.ForecastPath)
			summary, err := buildSummary(cmd, session, cfg, opts.Scenario)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return writeSummaryText(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", string(indicator.ScenarioBase), "forecast scenario (base|optimistic|pessimistic)")
	return cmd
}

func buildSummary(cmd *cobra.Command, session *dataset.Session, cfg *config.Config, rawScenario string) (*Summary, error) {
	scenario, err := indicator.ParseScenario(rawScenario)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "invalid --scenario", Err: err}
	}

	ctx := cmd.Context()
	snap, err := session.Snapshot(ctx)
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, Message: "failed to load dataset", Err: err}
	}

	s := &Summary{
		Source: snap.Origin().Path,
		Counts: make(map[string]int),
		Cards:  make([]CardSummary, 0, len(cfg.Dashboard.Cards)),
	}
	for typ, n := range snap.Counts() {
		s.Counts[string(typ)] = n
	}
	if minYear, maxYear, ok := snap.YearBounds(); ok {
		s.MinYear, s.MaxYear = &minYear, &maxYear
	}

	for _, c := range cfg.Dashboard.Cards {
		card := CardSummary{Title: c.Title, Keyword: c.Keyword}
		if latest, ok := snap.LatestValue(c.Keyword); ok {
			card.Value = decimal.NewNullDecimal(latest.Value)
			year := latest.Year
			card.Year = &year
		}
		if delta, ok := snap.GrowthRate(c.Keyword); ok {
			card.Delta = decimal.NewNullDecimal(delta)
		}
		s.Cards = append(s.Cards, card)
	}

	ratio := snap.P2PATMRatio()
	s.Ratio = RatioSummary{Available: ratio.Available, Points: make([]RatioRow, 0, len(ratio.Points))}
	for _, p := range ratio.Points {
		s.Ratio.Points = append(s.Ratio.Points, RatioRow{Year: p.Year, P2P: p.Numerator, ATM: p.Denominator, Ratio: p.Ratio})
	}

	target := decimal.NewFromFloat(cfg.Dashboard.InclusionTarget)
	s.Projection = ProjSummary{Scenario: string(scenario), Target: target}
	set, err := session.Forecasts(ctx)
	switch {
	case indicator.IsUnavailable(err):
		s.Projection.Warning = "forecast file not found: " + cfg.Data.ForecastPath
	case err != nil:
		return nil, &ExitError{Code: ExitFailure, Message: "failed to load forecasts", Err: err}
	default:
		p := set.Project(scenario, cfg.Dashboard.TargetKeyword, target)
		s.Projection.Available = true
		s.Projection.Reached = p.Reached
		if p.Reached {
			year := p.ReachedIn
			s.Projection.ReachedIn = &year
		}
	}
	return s, nil
}

func writeSummaryText(w io.Writer, s *Summary) error {
	fmt.Fprintf(w, "Dataset: %s\n", s.Source)

	types := make([]string, 0, len(s.Counts))
	for typ := range s.Counts {
		types = append(types, typ)
	}
	sort.Strings(types)
	counts := make([]string, 0, len(types))
	for _, typ := range types {
		counts = append(counts, fmt.Sprintf("%s=%d", typ, s.Counts[typ]))
	}
	fmt.Fprintf(w, "Records: %s\n", strings.Join(counts, " "))
	if s.MinYear != nil {
		fmt.Fprintf(w, "Years:   %d-%d\n", *s.MinYear, *s.MaxYear)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDICATOR\tLATEST\tYEAR\tDELTA")
	for _, c := range s.Cards {
		year := notAvailable
		if c.Year != nil {
			year = fmt.Sprint(*c.Year)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Title, fixed(c.Value, 1), year, signed(c.Delta))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "P2P / ATM ratio")
	if !s.Ratio.Available {
		fmt.Fprintln(w, "  P2P or ATM indicators not available.")
	} else if len(s.Ratio.Points) == 0 {
		fmt.Fprintln(w, "  P2P and ATM observations share no year.")
	} else {
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "YEAR\tP2P\tATM\tRATIO")
		for _, p := range s.Ratio.Points {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.Year, fixed(p.P2P, 2), fixed(p.ATM, 2), fixed(p.Ratio, 2))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	fmt.Fprintln(w)

	proj := s.Projection
	fmt.Fprintf(w, "Inclusion projection (%s, target %s%%): ", proj.Scenario, proj.Target.String())
	switch {
	case !proj.Available:
		fmt.Fprintln(w, proj.Warning)
	case proj.Reached:
		fmt.Fprintf(w, "reached in %d\n", *proj.ReachedIn)
	default:
		fmt.Fprintln(w, "not reached within the forecast horizon")
	}
	return nil
}

func fixed(v decimal.NullDecimal, places int32) string {
	if !v.Valid {
		return notAvailable
	}
	return v.Decimal.StringFixed(places)
}

func signed(v decimal.NullDecimal) string {
	if !v.Valid {
		return notAvailable
	}
	s := v.Decimal.StringFixed(1)
	if v.Decimal.IsPositive() {
		return "+" + s
	}
	return s
}
