/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  Defines the JSON structures for API communication. Domain values are
  decimal.NullDecimal; here an absent value becomes a JSON null and a present
  one a number, so clients never see a sentinel like 0 or "N/A".

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - to*DTO: conversions from indicator types

AVAILABILITY:
  Views that depend on a source which may not exist (the forecast table, a
  ratio whose inputs are missing) carry Available plus an optional Warning
  instead of failing the request.

SEE ALSO:
  - handlers.go: Uses these types
  - indicator/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/inclusion-dashboard/indicator"
)

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ObservationDTO is one row of the unified dataset.
type ObservationDTO struct {
	Indicator  string   `json:"indicator"`
	Date       *string  `json:"date"`
	Year       *int     `json:"year"`
	Value      *float64 `json:"value"`
	RecordType string   `json:"record_type"`
	Categories []string `json:"categories,omitempty"`
}

// =============================================================================
// OVERVIEW / INDICATORS
// =============================================================================

// LatestDTO answers "most recent value for a keyword".
type LatestDTO struct {
	Keyword   string   `json:"keyword"`
	Available bool     `json:"available"`
	Indicator string   `json:"indicator,omitempty"`
	Value     *float64 `json:"value"`
	Year      *int     `json:"year"`
	Date      *string  `json:"date"`
}

// GrowthDTO is the difference between the two most recent values. It is a
// raw delta in the indicator's unit, not a percentage.
type GrowthDTO struct {
	Keyword   string   `json:"keyword"`
	Available bool     `json:"available"`
	Delta     *float64 `json:"delta"`
}

// CardDTO is one headline metric.
type CardDTO struct {
	Title   string   `json:"title"`
	Keyword string   `json:"keyword"`
	Value   *float64 `json:"value"`
	Year    *int     `json:"year"`
	Delta   *float64 `json:"delta"`
}

// OverviewDTO is the landing page.
type OverviewDTO struct {
	Cards   []CardDTO  `json:"cards"`
	Ratio   RatioDTO   `json:"ratio"`
	Dataset DatasetDTO `json:"dataset"`
}

// IndicatorsDTO lists indicator names and the year span of the data.
type IndicatorsDTO struct {
	Indicators     []string `json:"indicators"`
	MinYear        *int     `json:"min_year"`
	MaxYear        *int     `json:"max_year"`
	DefaultMinYear int      `json:"default_min_year"`
}

// DatasetDTO summarizes the loaded snapshot.
type DatasetDTO struct {
	Source     string         `json:"source"`
	LoadedAt   string         `json:"loaded_at,omitempty"`
	Counts     map[string]int `json:"counts"`
	Indicators int            `json:"indicators"`
	MinYear    *int           `json:"min_year"`
	MaxYear    *int           `json:"max_year"`
}

// ReloadDTO is returned after the memoized dataset was dropped and reread.
type ReloadDTO struct {
	Reloaded bool       `json:"reloaded"`
	Dataset  DatasetDTO `json:"dataset"`
}

// =============================================================================
// SERIES VIEWS
// =============================================================================

// TrendsDTO is one indicator's series inside a year window.
type TrendsDTO struct {
	Indicator string           `json:"indicator"`
	MinYear   int              `json:"min_year"`
	MaxYear   int              `json:"max_year"`
	Points    []ObservationDTO `json:"points"`
}

// ChannelGroupDTO is one channel indicator's rows.
type ChannelGroupDTO struct {
	Indicator string           `json:"indicator"`
	Points    []ObservationDTO `json:"points"`
}

// ChannelsDTO compares mobile, bank and agent indicators.
type ChannelsDTO struct {
	MinYear *int              `json:"min_year,omitempty"`
	MaxYear *int              `json:"max_year,omitempty"`
	Groups  []ChannelGroupDTO `json:"groups"`
}

// RatioPointDTO is one joined year. Ratio is null when undefined.
type RatioPointDTO struct {
	Year        int      `json:"year"`
	Numerator   *float64 `json:"numerator"`
	Denominator *float64 `json:"denominator"`
	Ratio       *float64 `json:"ratio"`
}

// RatioDTO is a year-joined ratio series.
type RatioDTO struct {
	Numerator   string          `json:"numerator"`
	Denominator string          `json:"denominator"`
	Available   bool            `json:"available"`
	Warning     string          `json:"warning,omitempty"` // one side has no rows
	Note        string          `json:"note,omitempty"`    // both sides exist, no shared year
	Points      []RatioPointDTO `json:"points"`
}

// =============================================================================
// FORECASTS
// =============================================================================

// ForecastDTO is one forecast row.
type ForecastDTO struct {
	Indicator string   `json:"indicator"`
	Year      int      `json:"year"`
	Value     *float64 `json:"value"`
	Scenario  string   `json:"scenario"`
}

// ForecastsDTO is the forecast table filtered by scenario and keyword.
type ForecastsDTO struct {
	Scenario  string        `json:"scenario"`
	Keyword   string        `json:"keyword,omitempty"`
	Available bool          `json:"available"`
	Warning   string        `json:"warning,omitempty"`
	Records   []ForecastDTO `json:"records"`
}

// ProjectionDTO shows forecasts against the inclusion target.
type ProjectionDTO struct {
	Scenario  string        `json:"scenario"`
	Keyword   string        `json:"keyword"`
	Target    float64       `json:"target"`
	Available bool          `json:"available"`
	Warning   string        `json:"warning,omitempty"`
	Reached   bool          `json:"reached"`
	ReachedIn *int          `json:"reached_in"`
	Records   []ForecastDTO `json:"records"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

const dateLayout = "2006-01-02"

func nullFloat(v decimal.NullDecimal) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Decimal.InexactFloat64()
	return &f
}

func decimalFloat(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	return &f
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func toObservationDTO(r indicator.Record) ObservationDTO {
	dto := ObservationDTO{
		Indicator:  r.Indicator,
		Value:      nullFloat(r.Value),
		RecordType: string(r.Type),
		Categories: r.Categories.Names(),
	}
	if y, ok := r.Year(); ok {
		dto.Year = intPtr(y)
		dto.Date = strPtr(r.Date.Format(dateLayout))
	}
	return dto
}

func toObservationDTOs(rows []indicator.Record) []ObservationDTO {
	dtos := make([]ObservationDTO, 0, len(rows))
	for _, r := range rows {
		dtos = append(dtos, toObservationDTO(r))
	}
	return dtos
}

const (
	ratioUnavailable  = "P2P or ATM indicators not available"
	ratioNoSharedYear = "P2P and ATM observations share no year"
)

func toRatioDTO(s indicator.RatioSeries) RatioDTO {
	dto := RatioDTO{
		Numerator:   s.Numerator,
		Denominator: s.Denominator,
		Available:   s.Available,
		Points:      make([]RatioPointDTO, 0, len(s.Points)),
	}
	switch {
	case !s.Available:
		dto.Warning = ratioUnavailable
	case len(s.Points) == 0:
		dto.Note = ratioNoSharedYear
	}
	for _, p := range s.Points {
		dto.Points = append(dto.Points, RatioPointDTO{
			Year:        p.Year,
			Numerator:   nullFloat(p.Numerator),
			Denominator: nullFloat(p.Denominator),
			Ratio:       nullFloat(p.Ratio),
		})
	}
	return dto
}

func toForecastDTOs(records []indicator.ForecastRecord) []ForecastDTO {
	dtos := make([]ForecastDTO, 0, len(records))
	for _, r := range records {
		dtos = append(dtos, ForecastDTO{
			Indicator: r.Indicator,
			Year:      r.Year,
			Value:     nullFloat(r.Value),
			Scenario:  string(r.Scenario),
		})
	}
	return dtos
}

func toDatasetDTO(snap *indicator.Snapshot) DatasetDTO {
	origin := snap.Origin()
	dto := DatasetDTO{
		Source:     origin.Path,
		Counts:     make(map[string]int),
		Indicators: len(snap.Indicators()),
	}
	if !origin.LoadedAt.IsZero() {
		dto.LoadedAt = origin.LoadedAt.UTC().Format(time.RFC3339)
	}
	for typ, n := range snap.Counts() {
		dto.Counts[string(typ)] = n
	}
	if minYear, maxYear, ok := snap.YearBounds(); ok {
		dto.MinYear, dto.MaxYear = intPtr(minYear), intPtr(maxYear)
	}
	return dto
}
