/*
snapshot.go - Immutable view of the loaded dataset

PURPOSE:
  A Snapshot is constructed once per load and passed by reference into every
  query. All query methods read from it and return fresh values, so repeated
  calls with identical inputs return identical results.

YEAR FILTERING:
  WithinYears returns a new Snapshot restricted to observations whose year
  lies in [min, max] inclusive. Rows without a date have no year and are
  dropped by the filter. Non-observation rows are carried over untouched.

SEE ALSO:
  - dataset/session.go: memoizes the Snapshot for the process
  - query.go: queries over observations
*/
package indicator

import (
	"sort"
	"time"
)

// Origin describes where a Snapshot was loaded from.
type Origin struct {
	Path     string
	LoadedAt time.Time
}

// Snapshot is an immutable set of dataset rows.
type Snapshot struct {
	records      []Record
	observations []Record
	origin       Origin
}

// NewSnapshot copies records, tags categories and splits out observations.
func NewSnapshot(records []Record) *Snapshot {
	s := &Snapshot{records: make([]Record, len(records))}
	for i, r := range records {
		r.folded = Fold(r.Indicator)
		r.Categories = categorize(r.folded)
		s.records[i] = r
		if r.IsObservation() {
			s.observations = append(s.observations, r)
		}
	}
	return s
}

// WithOrigin returns a copy of s annotated with its source.
func (s *Snapshot) WithOrigin(o Origin) *Snapshot {
	cp := *s
	cp.origin = o
	return &cp
}

// Origin returns where the snapshot came from.
func (s *Snapshot) Origin() Origin { return s.origin }

// Records returns a copy of every row, in stored order.
func (s *Snapshot) Records() []Record {
	return append([]Record(nil), s.records...)
}

// Observations returns a copy of the observation rows, in stored order.
func (s *Snapshot) Observations() []Record {
	return append([]Record(nil), s.observations...)
}

// Counts returns the number of rows per record type.
func (s *Snapshot) Counts() map[RecordType]int {
	counts := make(map[RecordType]int)
	for _, r := range s.records {
		counts[r.Type]++
	}
	return counts
}

// WithinYears restricts observations to the inclusive range [minYear, maxYear].
func (s *Snapshot) WithinYears(minYear, maxYear int) (*Snapshot, error) {
	if minYear > maxYear {
		return nil, &YearRangeError{Min: minYear, Max: maxYear}
	}
	kept := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if r.IsObservation() {
			y, ok := r.Year()
			if !ok || y < minYear || y > maxYear {
				continue
			}
		}
		kept = append(kept, r)
	}
	return NewSnapshot(kept).WithOrigin(s.origin), nil
}

// YearBounds returns the smallest and largest observation year.
func (s *Snapshot) YearBounds() (minYear, maxYear int, ok bool) {
	for _, r := range s.observations {
		y, has := r.Year()
		if !has {
			continue
		}
		if !ok || y < minYear {
			minYear = y
		}
		if !ok || y > maxYear {
			maxYear = y
		}
		ok = true
	}
	return minYear, maxYear, ok
}

// Indicators returns the sorted, de-duplicated observation indicator names.
func (s *Snapshot) Indicators() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range s.observations {
		if r.Indicator == "" || seen[r.Indicator] {
			continue
		}
		seen[r.Indicator] = true
		names = append(names, r.Indicator)
	}
	sort.Strings(names)
	return names
}

// Series returns observations whose indicator equals name exactly, ordered by
// date. Undated rows sort after dated ones, keeping their stored order.
func (s *Snapshot) Series(name string) []Record {
	var rows []Record
	for _, r := range s.observations {
		if r.Indicator == name {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.HasDate != b.HasDate {
			return a.HasDate
		}
		return a.Date.Before(b.Date)
	})
	return rows
}

// match returns observations whose indicator contains keyword and which
// satisfy keep. Known bucket keywords use the tags computed at load time.
func (s *Snapshot) match(keyword string, keep func(Record) bool) []Record {
	var rows []Record
	cat, tagged := CategoryFor(keyword)
	folded := Fold(keyword)
	for _, r := range s.observations {
		var hit bool
		if tagged {
			hit = r.Categories.Has(cat)
		} else {
			hit = containsFolded(r.folded, folded)
		}
		if hit && (keep == nil || keep(r)) {
			rows = append(rows, r)
		}
	}
	return rows
}
