/*
handlers.go - HTTP API handlers for the inclusion dashboard

PURPOSE:
  Exposes the indicator queries via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the indicator package. Handlers never
  read files themselves: every view goes through the memoized dataset.Session.

ENDPOINTS:
  Overview:
    GET    /api/overview                 Headline cards, P2P/ATM ratio, dataset summary

  Indicators:
    GET    /api/indicators               Sorted indicator names + year bounds
    GET    /api/indicators/latest        ?keyword=  most recent value
    GET    /api/indicators/growth        ?keyword=  delta of the two most recent values

  Series (all accept ?min_year=&max_year=):
    GET    /api/trends                   ?indicator=  one indicator over time,
                                         default window [default_min_year, last year]
    GET    /api/channels                 Mobile / bank / agent indicators, unfiltered
                                         unless a bound is given
    GET    /api/ratio                    P2P/ATM ratio by year, same as channels

  Forecasts (an omitted or blank scenario means base; the response echoes it):
    GET    /api/forecasts                ?scenario=&keyword=&sort=year
    GET    /api/projections              ?scenario=  target indicator vs inclusion target

  Dataset:
    GET    /api/dataset                  Source, load time, counts
    GET    /api/dataset/download         The source file as stored; ?format=csv for
                                         the loaded records as CSV
    POST   /api/dataset/reload           Drop the memoized snapshot and reread

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 200: Missing forecast file, with available=false and a warning
  - 400: Invalid scenario, invalid year window, missing keyword
  - 500: Dataset could not be loaded

SEE ALSO:
  - dto.go: Response data structures
  - charts.go: PNG renditions of the same views
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/inclusion-dashboard/config"
	"github.com/warp/inclusion-dashboard/dataset"
	"github.com/warp/inclusion-dashboard/indicator"
	"go.uber.org/zap"
)

// forecastWarning is shown when the forecast artifact has not been produced.
const forecastWarning = "forecast file not found; run the forecasting job to produce it"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Session *dataset.Session
	Config  *config.Config
	Log     *zap.Logger

	metrics *Metrics
}

// NewHandler creates a handler. Attach metrics to the session with
// Session.WithObserver to count loads as well as queries.
func NewHandler(session *dataset.Session, cfg *config.Config, log *zap.Logger, metrics *Metrics) *Handler {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Handler{Session: session, Config: cfg, Log: log, metrics: metrics}
}

// =============================================================================
// OVERVIEW / INDICATORS
// =============================================================================

// GetOverview returns the headline cards and the P2P/ATM ratio.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r, "overview")
	if !ok {
		return
	}

	cards := make([]CardDTO, 0, len(h.Config.Dashboard.Cards))
	for _, c := range h.Config.Dashboard.Cards {
		card := CardDTO{Title: c.Title, Keyword: c.Keyword}
		if latest, ok := snap.LatestValue(c.Keyword); ok {
			card.Value = decimalFloat(latest.Value)
			card.Year = intPtr(latest.Year)
		}
		if delta, ok := snap.GrowthRate(c.Keyword); ok {
			card.Delta = decimalFloat(delta)
		}
		cards = append(cards, card)
	}

	h.metrics.observeQuery("overview", outcomeOK)
	writeJSON(w, http.StatusOK, OverviewDTO{
		Cards:   cards,
		Ratio:   toRatioDTO(snap.P2PATMRatio()),
		Dataset: toDatasetDTO(snap),
	})
}

// ListIndicators returns every observed indicator name.
func (h *Handler) ListIndicators(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r, "indicators")
	if !ok {
		return
	}
	dto := IndicatorsDTO{
		Indicators:     snap.Indicators(),
		DefaultMinYear: h.Config.Dashboard.DefaultMinYear,
	}
	if minYear, maxYear, ok := snap.YearBounds(); ok {
		dto.MinYear, dto.MaxYear = intPtr(minYear), intPtr(maxYear)
	}
	h.metrics.observeQuery("indicators", outcomeOK)
	writeJSON(w, http.StatusOK, dto)
}

// GetLatest returns the most recent value whose indicator matches keyword.
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	keyword, ok := h.requireKeyword(w, r, "latest")
	if !ok {
		return
	}
	snap, ok := h.snapshot(w, r, "latest")
	if !ok {
		return
	}

	dto := LatestDTO{Keyword: keyword}
	latest, found := snap.LatestValue(keyword)
	if found {
		dto.Available = true
		dto.Indicator = latest.Indicator
		dto.Value = decimalFloat(latest.Value)
		dto.Year = intPtr(latest.Year)
		dto.Date = strPtr(latest.Date.Format(dateLayout))
	}
	h.metrics.observeQuery("latest", presence(found))
	writeJSON(w, http.StatusOK, dto)
}

// GetGrowth returns the delta between the two most recent matching values.
func (h *Handler) GetGrowth(w http.ResponseWriter, r *http.Request) {
	keyword, ok := h.requireKeyword(w, r, "growth")
	if !ok {
		return
	}
	snap, ok := h.snapshot(w, r, "growth")
	if !ok {
		return
	}

	dto := GrowthDTO{Keyword: keyword}
	delta, found := snap.GrowthRate(keyword)
	if found {
		dto.Available = true
		dto.Delta = decimalFloat(delta)
	}
	h.metrics.observeQuery("growth", presence(found))
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SERIES VIEWS
// =============================================================================

// GetTrends returns one indicator's rows inside the year window. Without
// ?indicator= the first indicator in sorted order is used.
func (h *Handler) GetTrends(w http.ResponseWriter, r *http.Request) {
	view, ok := h.trends(w, r)
	if !ok {
		return
	}
	h.metrics.observeQuery("trends", presence(len(view.Points) > 0))
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) trends(w http.ResponseWriter, r *http.Request) (TrendsDTO, bool) {
	snap, ok := h.snapshot(w, r, "trends")
	if !ok {
		return TrendsDTO{}, false
	}
	filtered, minYear, maxYear, ok := h.trendWindow(w, r, snap)
	if !ok {
		return TrendsDTO{}, false
	}

	name := strings.TrimSpace(r.URL.Query().Get("indicator"))
	if name == "" {
		if names := snap.Indicators(); len(names) > 0 {
			name = names[0]
		}
	}
	return TrendsDTO{
		Indicator: name,
		MinYear:   minYear,
		MaxYear:   maxYear,
		Points:    toObservationDTOs(filtered.Series(name)),
	}, true
}

// GetChannels returns mobile, bank and agent indicators grouped by name.
func (h *Handler) GetChannels(w http.ResponseWriter, r *http.Request) {
	view, ok := h.channels(w, r)
	if !ok {
		return
	}
	h.metrics.observeQuery("channels", presence(len(view.Groups) > 0))
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) channels(w http.ResponseWriter, r *http.Request) (ChannelsDTO, bool) {
	snap, ok := h.snapshot(w, r, "channels")
	if !ok {
		return ChannelsDTO{}, false
	}
	filtered, minYear, maxYear, ok := h.optionalWindow(w, r, snap, "channels")
	if !ok {
		return ChannelsDTO{}, false
	}

	groups := filtered.ChannelGroups()
	dto := ChannelsDTO{MinYear: minYear, MaxYear: maxYear, Groups: make([]ChannelGroupDTO, 0, len(groups))}
	for _, g := range groups {
		dto.Groups = append(dto.Groups, ChannelGroupDTO{
			Indicator: g.Indicator,
			Points:    toObservationDTOs(g.Records),
		})
	}
	return dto, true
}

// GetRatio returns the P2P/ATM ratio per shared year.
func (h *Handler) GetRatio(w http.ResponseWriter, r *http.Request) {
	series, ok := h.ratio(w, r)
	if !ok {
		return
	}
	h.metrics.observeQuery("ratio", presence(series.Available))
	writeJSON(w, http.StatusOK, toRatioDTO(series))
}

func (h *Handler) ratio(w http.ResponseWriter, r *http.Request) (indicator.RatioSeries, bool) {
	snap, ok := h.snapshot(w, r, "ratio")
	if !ok {
		return indicator.RatioSeries{}, false
	}
	filtered, _, _, ok := h.optionalWindow(w, r, snap, "ratio")
	if !ok {
		return indicator.RatioSeries{}, false
	}
	return filtered.P2PATMRatio(), true
}

// =============================================================================
// FORECASTS
// =============================================================================

// GetForecasts returns forecast rows for a scenario (default base).
func (h *Handler) GetForecasts(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.forecasts(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) forecasts(w http.ResponseWriter, r *http.Request) (ForecastsDTO, bool) {
	q := r.URL.Query()
	scenario := queryOr(q.Get("scenario"), string(indicator.ScenarioBase))
	keyword := strings.TrimSpace(q.Get("keyword"))

	sortBy := q.Get("sort")
	if sortBy != "" && sortBy != "year" {
		h.metrics.observeQuery("forecasts", outcomeClientError)
		writeError(w, http.StatusBadRequest, "Invalid sort", fmt.Errorf("sort must be \"year\", got %q", sortBy))
		return ForecastsDTO{}, false
	}

	dto := ForecastsDTO{Scenario: scenario, Keyword: keyword, Records: []ForecastDTO{}}
	records, err := h.Session.ForecastSeries(r.Context(), scenario, keyword)
	if err != nil {
		if indicator.IsUnavailable(err) {
			h.metrics.observeQuery("forecasts", outcomeUnavailable)
			dto.Warning = forecastWarning
			return dto, true
		}
		h.failQuery(w, "forecasts", err)
		return ForecastsDTO{}, false
	}

	if sortBy == "year" {
		records = indicator.SortByYear(records)
	}
	dto.Available = true
	dto.Records = toForecastDTOs(records)
	h.metrics.observeQuery("forecasts", presence(len(records) > 0))
	return dto, true
}

// GetProjections returns the target indicator's forecast for a scenario
// together with the inclusion target and the first year it is reached.
func (h *Handler) GetProjections(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.projections(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) projections(w http.ResponseWriter, r *http.Request) (ProjectionDTO, bool) {
	target := h.Config.Dashboard.InclusionTarget
	keyword := h.Config.Dashboard.TargetKeyword
	raw := queryOr(r.URL.Query().Get("scenario"), string(indicator.ScenarioBase))

	scenario, err := indicator.ParseScenario(raw)
	if err != nil {
		h.failQuery(w, "projections", err)
		return ProjectionDTO{}, false
	}

	dto := ProjectionDTO{Scenario: string(scenario), Keyword: keyword, Target: target, Records: []ForecastDTO{}}
	set, err := h.Session.Forecasts(r.Context())
	if err != nil {
		if indicator.IsUnavailable(err) {
			h.metrics.observeQuery("projections", outcomeUnavailable)
			dto.Warning = forecastWarning
			return dto, true
		}
		h.failQuery(w, "projections", err)
		return ProjectionDTO{}, false
	}

	p := set.Project(scenario, keyword, decimal.NewFromFloat(target))
	dto.Available = true
	dto.Reached = p.Reached
	if p.Reached {
		dto.ReachedIn = intPtr(p.ReachedIn)
	}
	dto.Records = toForecastDTOs(indicator.SortByYear(p.Records))
	h.metrics.observeQuery("projections", presence(len(p.Records) > 0))
	return dto, true
}

// =============================================================================
// DATASET
// =============================================================================

// GetDataset summarizes the loaded snapshot.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r, "dataset")
	if !ok {
		return
	}
	h.metrics.observeQuery("dataset", outcomeOK)
	writeJSON(w, http.StatusOK, toDatasetDTO(snap))
}

// DownloadDataset serves the source dataset file byte for byte under its own
// name. ?format=csv instead renders the loaded records as CSV in the loader's
// columns.
func (h *Handler) DownloadDataset(w http.ResponseWriter, r *http.Request) {
	switch format := r.URL.Query().Get("format"); format {
	case "":
		h.downloadSource(w, r)
	case "csv":
		h.downloadCSV(w, r)
	default:
		h.metrics.observeQuery("download", outcomeClientError)
		writeError(w, http.StatusBadRequest, "Invalid format", fmt.Errorf("format must be \"csv\" or omitted, got %q", format))
	}
}

// downloadTypes covers the dataset formats the loader reads.
var downloadTypes = map[string]string{
	".xlsx":   "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".csv":    "text/csv; charset=utf-8",
	".db":     "application/vnd.sqlite3",
	".sqlite": "application/vnd.sqlite3",
}

func (h *Handler) downloadSource(w http.ResponseWriter, r *http.Request) {
	path := h.Session.DatasetPath()
	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
	}
	var info os.FileInfo
	if err == nil {
		info, err = f.Stat()
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.metrics.observeQuery("download", outcomeAbsent)
			writeError(w, http.StatusNotFound, "Dataset file not found", err)
			return
		}
		h.Log.Error("failed to open dataset", zap.String("path", path), zap.Error(err))
		h.metrics.observeQuery("download", outcomeError)
		writeError(w, http.StatusInternalServerError, "Failed to open dataset", err)
		return
	}

	name := filepath.Base(path)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if ct, ok := downloadTypes[strings.ToLower(filepath.Ext(name))]; ok {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
	h.metrics.observeQuery("download", outcomeOK)
}

func (h *Handler) downloadCSV(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r, "download")
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="inclusion_dataset.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write([]string{dataset.ColIndicator, dataset.ColObservationDate, dataset.ColValueNumeric, dataset.ColRecordType})
	for _, rec := range snap.Records() {
		date, value := "", ""
		if rec.HasDate {
			date = dataset.FormatDate(rec.Date)
		}
		if rec.Value.Valid {
			value = rec.Value.Decimal.String()
		}
		cw.Write([]string{rec.Indicator, date, value, string(rec.Type)})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.Log.Warn("dataset download interrupted", zap.Error(err))
		return
	}
	h.metrics.observeQuery("download", outcomeOK)
}

// ReloadDataset drops the memoized snapshot and forecasts and loads again.
func (h *Handler) ReloadDataset(w http.ResponseWriter, r *http.Request) {
	h.Session.Clear()
	snap, ok := h.snapshot(w, r, "reload")
	if !ok {
		return
	}
	h.Log.Info("dataset reloaded",
		zap.String("path", h.Session.DatasetPath()),
		zap.Int("records", len(snap.Records())))
	h.metrics.observeQuery("reload", outcomeOK)
	writeJSON(w, http.StatusOK, ReloadDTO{Reloaded: true, Dataset: toDatasetDTO(snap)})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// snapshot loads (or reuses) the dataset. On failure it has already written
// a 500 response.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request, query string) (*indicator.Snapshot, bool) {
	snap, err := h.Session.Snapshot(r.Context())
	if err != nil {
		h.Log.Error("failed to load dataset",
			zap.String("path", h.Session.DatasetPath()),
			zap.String("query", query),
			zap.Error(err))
		h.metrics.observeQuery(query, outcomeError)
		writeError(w, http.StatusInternalServerError, "Failed to load dataset", err)
		return nil, false
	}
	h.metrics.recordSnapshot(snap)
	return snap, true
}

// trendWindow applies ?min_year=&max_year= to snap. Missing bounds default
// to the configured first year and the last observed year. When the data ends
// before the configured first year, the window starts at the first observed
// year instead.
func (h *Handler) trendWindow(w http.ResponseWriter, r *http.Request, snap *indicator.Snapshot) (*indicator.Snapshot, int, int, bool) {
	minYear := h.Config.Dashboard.DefaultMinYear
	maxYear := minYear
	if first, last, ok := snap.YearBounds(); ok {
		maxYear = last
		if minYear > last {
			minYear = first
		}
	}
	return h.applyWindow(w, r, snap, "trends", minYear, maxYear)
}

// optionalWindow filters snap only when min_year or max_year is given; a
// missing side defaults to the data's bound. The bool result reports success,
// the pointers are nil when nothing was filtered.
func (h *Handler) optionalWindow(w http.ResponseWriter, r *http.Request, snap *indicator.Snapshot, query string) (*indicator.Snapshot, *int, *int, bool) {
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("min_year")) == "" && strings.TrimSpace(q.Get("max_year")) == "" {
		return snap, nil, nil, true
	}
	first, last, ok := snap.YearBounds()
	if !ok {
		first, last = h.Config.Dashboard.DefaultMinYear, h.Config.Dashboard.DefaultMinYear
	}
	filtered, minYear, maxYear, ok := h.applyWindow(w, r, snap, query, first, last)
	if !ok {
		return nil, nil, nil, false
	}
	return filtered, intPtr(minYear), intPtr(maxYear), true
}

func (h *Handler) applyWindow(w http.ResponseWriter, r *http.Request, snap *indicator.Snapshot, query string, minYear, maxYear int) (*indicator.Snapshot, int, int, bool) {
	q := r.URL.Query()
	var err error
	if minYear, err = yearParam(q.Get("min_year"), "min_year", minYear); err == nil {
		if maxYear, err = yearParam(q.Get("max_year"), "max_year", maxYear); err == nil {
			var filtered *indicator.Snapshot
			if filtered, err = snap.WithinYears(minYear, maxYear); err == nil {
				return filtered, minYear, maxYear, true
			}
		}
	}
	h.failQuery(w, query, err)
	return nil, 0, 0, false
}

func yearParam(raw, name string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a year", indicator.ErrInvalidYearRange, name, raw)
	}
	return year, nil
}

func (h *Handler) requireKeyword(w http.ResponseWriter, r *http.Request, query string) (string, bool) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		h.metrics.observeQuery(query, outcomeClientError)
		writeError(w, http.StatusBadRequest, "Missing keyword", errors.New("query parameter keyword is required"))
		return "", false
	}
	return keyword, true
}

// failQuery maps a query error to a status code and writes it.
func (h *Handler) failQuery(w http.ResponseWriter, query string, err error) {
	h.metrics.observeQuery(query, outcomeOf(err))
	switch {
	case errors.Is(err, indicator.ErrInvalidScenario):
		writeError(w, http.StatusBadRequest, "Invalid scenario", err)
	case errors.Is(err, indicator.ErrInvalidYearRange):
		writeError(w, http.StatusBadRequest, "Invalid year range", err)
	default:
		h.Log.Error("query failed", zap.String("query", query), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Query failed", err)
	}
}

func presence(found bool) string {
	if found {
		return outcomeOK
	}
	return outcomeAbsent
}

// queryOr returns fallback for an omitted or blank parameter. Non-blank
// values are passed through untouched for the caller to validate.
func queryOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
