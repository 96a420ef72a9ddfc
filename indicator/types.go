/*
Package indicator provides the query engine behind the financial-inclusion dashboard.

PURPOSE:
  Holds the data model (observations, forecasts) and the pure query helpers
  the dashboard views are built from: latest value lookup, period-over-period
  delta, the p2p/atm ratio join, channel comparison and forecast filtering.
  Nothing in this package performs I/O. Loading lives in the dataset package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: one row of the unified dataset (observation, event or impact link)
  - RecordType: the row classification; only observations feed queries
  - Latest: result of a latest-value lookup
  - RatioPoint / RatioSeries: output of the ratio join

DESIGN PRINCIPLES:
  1. Immutability: a Snapshot is built once and never mutated
  2. Explicit absence: missing values use decimal.NullDecimal, missing dates
     use HasDate=false. No NaN sentinels.
  3. Precision: values are decimal.Decimal so deltas like 46.0-40.0 are exact

SEE ALSO:
  - snapshot.go: Snapshot construction and year filtering
  - query.go: LatestValue, GrowthRate
  - ratio.go: JoinRatio, P2PATMRatio
  - forecast.go: Scenario and ForecastSet
*/
package indicator

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORD TYPE
// =============================================================================

// RecordType classifies a dataset row.
type RecordType string

const (
	RecordObservation RecordType = "observation"
	RecordEvent       RecordType = "event"
	RecordImpactLink  RecordType = "impact_link"
)

// Known reports whether t is one of the three documented record types.
func (t RecordType) Known() bool {
	switch t {
	case RecordObservation, RecordEvent, RecordImpactLink:
		return true
	}
	return false
}

// =============================================================================
// RECORD - One row of the unified dataset
// =============================================================================

// Record is a single dataset row. Date and Value may be absent when the
// source cell could not be parsed.
type Record struct {
	Indicator string
	Date      time.Time
	HasDate   bool
	Value     decimal.NullDecimal
	Type      RecordType

	// Categories is recomputed by NewSnapshot from Indicator.
	Categories Category

	folded string
}

// Year returns the calendar year of the observation date.
func (r Record) Year() (int, bool) {
	if !r.HasDate {
		return 0, false
	}
	return r.Date.Year(), true
}

// IsObservation reports whether the row feeds the query engine.
func (r Record) IsObservation() bool { return r.Type == RecordObservation }

// NewObservation builds a dated observation with a present value.
func NewObservation(name string, date time.Time, value decimal.Decimal) Record {
	return Record{
		Indicator: name,
		Date:      date,
		HasDate:   true,
		Value:     decimal.NewNullDecimal(value),
		Type:      RecordObservation,
	}
}

// =============================================================================
// QUERY RESULTS
// =============================================================================

// Latest is the most recent numeric observation matching a keyword.
type Latest struct {
	Indicator string
	Value     decimal.Decimal
	Year      int
	Date      time.Time
}

// RatioPoint is one joined year of a ratio series. Ratio is invalid when
// either side is missing or the denominator is zero.
type RatioPoint struct {
	Year        int
	Numerator   decimal.NullDecimal
	Denominator decimal.NullDecimal
	Ratio       decimal.NullDecimal
}

// Defined reports whether the ratio could be computed.
func (p RatioPoint) Defined() bool { return p.Ratio.Valid }

// RatioSeries is the result of joining two keyword series on year.
// Available is false when either side matched no observation at all;
// that is a data-absence state, not an error.
type RatioSeries struct {
	Numerator   string
	Denominator string
	Available   bool
	Points      []RatioPoint
}

// Group is the set of rows sharing one indicator name.
type Group struct {
	Indicator string
	Records   []Record
}
