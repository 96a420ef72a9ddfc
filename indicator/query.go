package indicator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INDICATOR QUERY ENGINE
// =============================================================================

// LatestValue returns the chronologically last numeric observation whose
// indicator contains keyword. Matches are stable-sorted by date, so when
// several rows share the latest date the last one in stored order wins.
// Returns false when nothing matches; callers render "N/A".
func (s *Snapshot) LatestValue(keyword string) (Latest, bool) {
	rows := s.orderedNumeric(keyword)
	if len(rows) == 0 {
		return Latest{}, false
	}
	last := rows[len(rows)-1]
	return Latest{
		Indicator: last.Indicator,
		Value:     last.Value.Decimal,
		Year:      last.Date.Year(),
		Date:      last.Date,
	}, true
}

// GrowthRate returns the value of the latest matching observation minus the
// value of the one before it. Despite the name this is an absolute two-point
// delta, not a rate. Returns false with fewer than two numeric matches.
func (s *Snapshot) GrowthRate(keyword string) (decimal.Decimal, bool) {
	rows := s.orderedNumeric(keyword)
	if len(rows) < 2 {
		return decimal.Zero, false
	}
	last, prev := rows[len(rows)-1], rows[len(rows)-2]
	return last.Value.Decimal.Sub(prev.Value.Decimal), true
}

// orderedNumeric pools every observation matching keyword that has a value
// and a date, sorted by date ascending. Undated rows cannot be ordered.
func (s *Snapshot) orderedNumeric(keyword string) []Record {
	rows := s.match(keyword, func(r Record) bool {
		return r.Value.Valid && r.HasDate
	})
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows
}
