package dataset

import (
	"context"
	"sync"

	"github.com/warp/inclusion-dashboard/indicator"
)

// Observer is notified after every load attempt. kind is "dataset" or
// "forecasts".
type Observer interface {
	ObserveLoad(kind string, rep Report, err error)
}

// Session memoizes the loaded dataset for the life of the process. It is the
// explicit replacement for a hidden global cache: construct one at startup and
// pass it to whatever serves queries. Callers must not expect a changed file
// to be picked up until Clear is called.
type Session struct {
	loader       *Loader
	datasetPath  string
	forecastPath string
	observer     Observer

	mu        sync.Mutex
	snapshot  *indicator.Snapshot
	forecasts *indicator.ForecastSet
}

// NewSession creates a session over the given files. Nothing is read until
// the first query.
func NewSession(loader *Loader, datasetPath, forecastPath string) *Session {
	if loader == nil {
		loader = NewLoader(nil)
	}
	return &Session{loader: loader, datasetPath: datasetPath, forecastPath: forecastPath}
}

// WithObserver attaches an Observer. Call before the session is shared.
func (s *Session) WithObserver(o Observer) *Session {
	s.observer = o
	return s
}

func (s *Session) DatasetPath() string  { return s.datasetPath }
func (s *Session) ForecastPath() string { return s.forecastPath }

// Snapshot returns the memoized dataset, loading it on first use.
func (s *Session) Snapshot(ctx context.Context) (*indicator.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot != nil {
		return s.snapshot, nil
	}
	snap, rep, err := s.loader.LoadDataset(ctx, s.datasetPath)
	s.observe("dataset", rep, err)
	if err != nil {
		return nil, err
	}
	s.snapshot = snap
	return snap, nil
}

// Forecasts returns the memoized forecast table. Absence is not memoized:
// the offline job may produce the file while the server is running.
func (s *Session) Forecasts(ctx context.Context) (*indicator.ForecastSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forecasts != nil {
		return s.forecasts, nil
	}
	set, rep, err := s.loader.LoadForecasts(ctx, s.forecastPath)
	s.observe("forecasts", rep, err)
	if err != nil {
		return nil, err
	}
	s.forecasts = set
	return set, nil
}

// ForecastSeries validates scenario, then filters the forecast table by
// scenario and optional indicator keyword. Errors:
//   - indicator.ErrInvalidScenario for a scenario outside the closed set
//   - indicator.ErrForecastUnavailable when the artifact does not exist
//
// A valid scenario with no matching rows returns no records and a nil error.
func (s *Session) ForecastSeries(ctx context.Context, scenario, keyword string) ([]indicator.ForecastRecord, error) {
	sc, err := indicator.ParseScenario(scenario)
	if err != nil {
		return nil, err
	}
	set, err := s.Forecasts(ctx)
	if err != nil {
		return nil, err
	}
	return set.Series(sc, keyword), nil
}

// Cached returns what is memoized right now without loading anything.
func (s *Session) Cached() (*indicator.Snapshot, *indicator.ForecastSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.forecasts
}

// Clear drops the memoized dataset and forecasts.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	s.forecasts = nil
}

func (s *Session) observe(kind string, rep Report, err error) {
	if s.observer != nil {
		s.observer.ObserveLoad(kind, rep, err)
	}
}
