package indicator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATIO / JOIN ENGINE
// =============================================================================

const (
	KeywordP2P = "p2p"
	KeywordATM = "atm"
)

// P2PATMRatio joins p2p and atm observations on year and divides them.
func (s *Snapshot) P2PATMRatio() RatioSeries {
	return s.JoinRatio(KeywordP2P, KeywordATM)
}

// JoinRatio inner-joins the observations matching numerator and denominator
// on year. Every pairing of a numerator row with a denominator row in the
// same year yields one point. Points are ordered by year; within a year they
// follow numerator stored order, then denominator stored order.
//
// Rows without a value still join (their ratio is undefined). Rows without a
// date have no year and never join.
func (s *Snapshot) JoinRatio(numerator, denominator string) RatioSeries {
	series := RatioSeries{Numerator: numerator, Denominator: denominator}

	num := s.match(numerator, nil)
	den := s.match(denominator, nil)
	if len(num) == 0 || len(den) == 0 {
		return series
	}
	series.Available = true

	byYear := make(map[int][]Record)
	for _, r := range den {
		if y, ok := r.Year(); ok {
			byYear[y] = append(byYear[y], r)
		}
	}

	for _, n := range num {
		y, ok := n.Year()
		if !ok {
			continue
		}
		for _, d := range byYear[y] {
			series.Points = append(series.Points, RatioPoint{
				Year:        y,
				Numerator:   n.Value,
				Denominator: d.Value,
				Ratio:       divide(n.Value, d.Value),
			})
		}
	}

	sort.SliceStable(series.Points, func(i, j int) bool {
		return series.Points[i].Year < series.Points[j].Year
	})
	return series
}

// divide returns an invalid NullDecimal instead of panicking on a zero or
// missing denominator.
func divide(n, d decimal.NullDecimal) decimal.NullDecimal {
	if !n.Valid || !d.Valid || d.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(n.Decimal.Div(d.Decimal))
}

// =============================================================================
// CHANNEL COMPARISON SELECTOR
// =============================================================================

// ChannelSeries returns raw observations whose indicator mentions mobile,
// bank or agent, in stored order.
func (s *Snapshot) ChannelSeries() []Record {
	var rows []Record
	for _, r := range s.observations {
		if r.Categories.Has(ChannelCategories) {
			rows = append(rows, r)
		}
	}
	return rows
}

// ChannelGroups groups ChannelSeries by indicator name, in order of first
// appearance, for multi-series plotting.
func (s *Snapshot) ChannelGroups() []Group {
	return GroupByIndicator(s.ChannelSeries())
}

// GroupByIndicator splits rows by indicator, keeping first-appearance order.
func GroupByIndicator(rows []Record) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range rows {
		i, ok := index[r.Indicator]
		if !ok {
			i = len(groups)
			index[r.Indicator] = i
			groups = append(groups, Group{Indicator: r.Indicator})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}
