/*
forecast.go - Forecast scenarios and the precomputed forecast table

PURPOSE:
  Forecasts are produced offline and loaded read-only. This file validates
  scenarios and filters the table for the forecast and inclusion projection
  views. There is no forecasting logic here.

SCENARIOS:
  base, optimistic, pessimistic. Anything else is rejected with
  ErrInvalidScenario; there is no silent default.

ORDERING:
  Series keeps stored order. Use SortByYear when a view needs years ascending.

SEE ALSO:
  - dataset/loader.go: reads the table and detects a missing artifact
*/
package indicator

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCENARIO
// =============================================================================

type Scenario string

const (
	ScenarioBase        Scenario = "base"
	ScenarioOptimistic  Scenario = "optimistic"
	ScenarioPessimistic Scenario = "pessimistic"
)

// Scenarios lists the closed set of valid scenarios.
func Scenarios() []Scenario {
	return []Scenario{ScenarioBase, ScenarioOptimistic, ScenarioPessimistic}
}

// ParseScenario validates s against the closed scenario set.
func ParseScenario(s string) (Scenario, error) {
	sc := Scenario(strings.TrimSpace(s))
	for _, valid := range Scenarios() {
		if sc == valid {
			return sc, nil
		}
	}
	return "", &InvalidScenarioError{Value: s}
}

// =============================================================================
// FORECAST SET
// =============================================================================

// ForecastRecord is one projected value.
type ForecastRecord struct {
	Indicator string
	Year      int
	Value     decimal.NullDecimal
	Scenario  Scenario
}

// ForecastSet is the read-only forecast table.
type ForecastSet struct {
	records []ForecastRecord
	origin  Origin
}

// NewForecastSet copies records into a ForecastSet.
func NewForecastSet(records []ForecastRecord) *ForecastSet {
	return &ForecastSet{records: append([]ForecastRecord(nil), records...)}
}

// WithOrigin returns a copy of fs annotated with its source.
func (fs *ForecastSet) WithOrigin(o Origin) *ForecastSet {
	cp := *fs
	cp.origin = o
	return &cp
}

func (fs *ForecastSet) Origin() Origin { return fs.origin }

// Records returns a copy of every row, in stored order.
func (fs *ForecastSet) Records() []ForecastRecord {
	return append([]ForecastRecord(nil), fs.records...)
}

// Len returns the number of forecast rows.
func (fs *ForecastSet) Len() int { return len(fs.records) }

// Series returns rows of the given scenario whose indicator contains keyword.
// An empty keyword disables the indicator filter. Stored order is preserved.
func (fs *ForecastSet) Series(scenario Scenario, keyword string) []ForecastRecord {
	folded := Fold(keyword)
	var out []ForecastRecord
	for _, r := range fs.records {
		if r.Scenario != scenario {
			continue
		}
		if keyword != "" && !containsFolded(Fold(r.Indicator), folded) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortByYear returns a copy of records stable-sorted by year ascending.
func SortByYear(records []ForecastRecord) []ForecastRecord {
	out := append([]ForecastRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// =============================================================================
// PROJECTION - Progress toward an inclusion target
// =============================================================================

// Projection is the forecast of one indicator bucket against a target level.
type Projection struct {
	Scenario  Scenario
	Keyword   string
	Target    decimal.Decimal
	Records   []ForecastRecord
	ReachedIn int
	Reached   bool
}

// Project filters scenario rows by keyword and finds the first year whose
// value is at or above target.
func (fs *ForecastSet) Project(scenario Scenario, keyword string, target decimal.Decimal) Projection {
	p := Projection{
		Scenario: scenario,
		Keyword:  keyword,
		Target:   target,
		Records:  fs.Series(scenario, keyword),
	}
	for _, r := range SortByYear(p.Records) {
		if r.Value.Valid && r.Value.Decimal.GreaterThanOrEqual(target) {
			p.ReachedIn, p.Reached = r.Year, true
			break
		}
	}
	return p
}
