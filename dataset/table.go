package dataset

import (
	"strings"

	"github.com/warp/inclusion-dashboard/indicator"
)

// Column names of the unified dataset and the forecast table.
const (
	ColIndicator       = "indicator"
	ColObservationDate = "observation_date"
	ColValueNumeric    = "value_numeric"
	ColRecordType      = "record_type"

	ColYear     = "year"
	ColValue    = "value"
	ColScenario = "scenario"
)

// Report counts what the parse boundary did to a table.
type Report struct {
	Rows        int // rows kept
	Skipped     int // blank rows, or forecast rows without a usable year
	BadDates    int // non-blank date cells coerced to absent
	BadValues   int // non-blank value cells coerced to absent
	UnknownType int // record_type outside observation/event/impact_link
}

// table is a header row plus data rows as read from any source.
type table struct {
	source string
	header []string
	rows   [][]string
}

// normalizeHeader maps "Observation Date" and " observation_date " alike.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

// index resolves required columns to their positions.
func (t table) index(required ...string) (map[string]int, error) {
	if len(t.header) == 0 {
		return nil, ErrEmptyTable
	}
	pos := make(map[string]int, len(t.header))
	for i, h := range t.header {
		key := normalizeHeader(h)
		if _, dup := pos[key]; !dup {
			pos[key] = i
		}
	}
	for _, col := range required {
		if _, ok := pos[col]; !ok {
			return nil, &MissingColumnError{Column: col, Source: t.source}
		}
	}
	return pos, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// records converts the dataset table through the parse boundary.
func (t table) records() ([]indicator.Record, Report, error) {
	var rep Report
	pos, err := t.index(ColIndicator, ColObservationDate, ColValueNumeric, ColRecordType)
	if err != nil {
		return nil, rep, err
	}

	out := make([]indicator.Record, 0, len(t.rows))
	for _, row := range t.rows {
		if blank(row) {
			rep.Skipped++
			continue
		}

		rawDate := cell(row, pos[ColObservationDate])
		rawValue := cell(row, pos[ColValueNumeric])

		r := indicator.Record{
			Indicator: cell(row, pos[ColIndicator]),
			Value:     ParseValue(rawValue),
			Type:      ParseRecordType(cell(row, pos[ColRecordType])),
		}
		r.Date, r.HasDate = ParseDate(rawDate)

		if rawDate != "" && !r.HasDate {
			rep.BadDates++
		}
		if rawValue != "" && !r.Value.Valid {
			rep.BadValues++
		}
		if !r.Type.Known() {
			rep.UnknownType++
		}
		out = append(out, r)
	}
	rep.Rows = len(out)
	return out, rep, nil
}

// forecasts converts the forecast table. Rows without a usable year are
// skipped since they cannot be placed on a time axis.
func (t table) forecasts() ([]indicator.ForecastRecord, Report, error) {
	var rep Report
	pos, err := t.index(ColIndicator, ColYear, ColValue, ColScenario)
	if err != nil {
		return nil, rep, err
	}

	out := make([]indicator.ForecastRecord, 0, len(t.rows))
	for _, row := range t.rows {
		if blank(row) {
			rep.Skipped++
			continue
		}
		year, ok := ParseYear(cell(row, pos[ColYear]))
		if !ok {
			rep.Skipped++
			continue
		}
		rawValue := cell(row, pos[ColValue])
		r := indicator.ForecastRecord{
			Indicator: cell(row, pos[ColIndicator]),
			Year:      year,
			Value:     ParseValue(rawValue),
			Scenario:  indicator.Scenario(strings.ToLower(cell(row, pos[ColScenario]))),
		}
		if rawValue != "" && !r.Value.Valid {
			rep.BadValues++
		}
		out = append(out, r)
	}
	rep.Rows = len(out)
	return out, rep, nil
}
