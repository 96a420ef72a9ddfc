/*
parse.go - Tolerant parsing boundary for dataset cells

PURPOSE:
  One bad cell must not take the dashboard down. Every parser here returns an
  explicit absent value instead of an error, and the table readers count how
  many cells were coerced so the loader can log it.

DATES:
  Accepted forms, tried in order:
    - a 4-digit integer: the year, read as January 1st
    - a positive number: an Excel serial date (raw xlsx cells)
    - ISO dates and timestamps, slash and dash day/month forms, "Jan 2006"
  Anything else is absent.

VALUES:
  Any decimal literal (exponent allowed). Blank, "NaN", "N/A" and friends are
  absent.

SEE ALSO:
  - table.go: applies these parsers row by row
*/
package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/inclusion-dashboard/indicator"
	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"2006-01",
	"Jan 2006",
	"January 2006",
	"2 Jan 2006",
}

// ParseDate parses a date cell. The bool is false when the cell is blank or
// unparseable.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if len(s) == 4 {
		if y, err := strconv.Atoi(s); err == nil && y > 0 {
			return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), true
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 1 {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders t so that ParseDate reads it back unchanged: a bare
// date at midnight UTC, an RFC 3339 timestamp otherwise.
func FormatDate(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339Nano)
}

// ParseValue parses a numeric cell into a NullDecimal.
func ParseValue(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParseRecordType normalises a record_type cell. Unknown labels are kept
// verbatim (lower-cased) and never feed the query engine.
func ParseRecordType(s string) indicator.RecordType {
	return indicator.RecordType(strings.ToLower(strings.TrimSpace(s)))
}

// ParseYear parses a forecast year. "2025.0" is accepted.
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if y, err := strconv.Atoi(s); err == nil {
		return y, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
