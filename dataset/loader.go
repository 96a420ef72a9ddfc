/*
Package dataset loads the unified dataset and the forecast table.

PURPOSE:
  Reads the source files once, runs every cell through the tolerant parse
  boundary (parse.go) and hands back immutable indicator snapshots. All file
  I/O of the dashboard happens here, never inside a query.

SOURCES:
  .xlsx / .xlsm     first worksheet (excelize)
  .csv              header row + rows (encoding/csv)
  .db / .sqlite*    tables "observations" and "forecasts" (store/sqlite)

FORECAST ARTIFACT:
  The forecast file is produced by an offline job and may not exist yet.
  LoadForecasts checks for it before reading and returns
  indicator.ErrForecastUnavailable when it is missing or empty.

SEE ALSO:
  - session.go: memoizes the loaded snapshot for the process
  - indicator/snapshot.go: what a load produces
*/
package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warp/inclusion-dashboard/indicator"
	"github.com/warp/inclusion-dashboard/store/sqlite"
	"go.uber.org/zap"
)

// Loader reads dataset and forecast sources.
type Loader struct {
	Log *zap.Logger
	Now func() time.Time
}

// NewLoader creates a loader that logs coercions to log.
func NewLoader(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{Log: log, Now: time.Now}
}

type format int

const (
	formatUnknown format = iota
	formatXLSX
	formatCSV
	formatSQLite
)

func detectFormat(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return formatXLSX
	case ".csv":
		return formatCSV
	case ".db", ".sqlite", ".sqlite3":
		return formatSQLite
	}
	return formatUnknown
}

func (l *Loader) read(ctx context.Context, path, sqliteTable string) (table, error) {
	switch detectFormat(path) {
	case formatXLSX:
		return readXLSX(path)
	case formatCSV:
		return readCSVFile(path)
	case formatSQLite:
		return readSQLite(ctx, path, sqliteTable)
	}
	return table{source: path}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}

// LoadDataset reads the unified dataset at path.
func (l *Loader) LoadDataset(ctx context.Context, path string) (*indicator.Snapshot, Report, error) {
	t, err := l.read(ctx, path, sqlite.TableObservations)
	if err != nil {
		return nil, Report{}, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}

	records, rep, err := t.records()
	if err != nil {
		return nil, rep, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}

	l.logReport("dataset loaded", path, rep)
	snap := indicator.NewSnapshot(records).WithOrigin(indicator.Origin{Path: path, LoadedAt: l.Now()})
	return snap, rep, nil
}

// LoadForecasts reads the forecast table at path. A missing or empty file
// yields indicator.ErrForecastUnavailable without attempting a read.
func (l *Loader) LoadForecasts(ctx context.Context, path string) (*indicator.ForecastSet, Report, error) {
	if err := checkArtifact(path); err != nil {
		return nil, Report{}, err
	}

	t, err := l.read(ctx, path, sqlite.TableForecasts)
	if err != nil {
		if sqlite.IsTableMissing(err) {
			return nil, Report{}, fmt.Errorf("%w: %s has no forecasts table", indicator.ErrForecastUnavailable, path)
		}
		return nil, Report{}, fmt.Errorf("failed to read forecasts %s: %w", path, err)
	}

	records, rep, err := t.forecasts()
	if err != nil {
		return nil, rep, fmt.Errorf("failed to parse forecasts %s: %w", path, err)
	}

	l.logReport("forecasts loaded", path, rep)
	set := indicator.NewForecastSet(records).WithOrigin(indicator.Origin{Path: path, LoadedAt: l.Now()})
	return set, rep, nil
}

func checkArtifact(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no forecast path configured", indicator.ErrForecastUnavailable)
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s not found", indicator.ErrForecastUnavailable, path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat forecasts %s: %w", path, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", indicator.ErrForecastUnavailable, path)
	}
	return nil
}

func (l *Loader) logReport(msg, path string, rep Report) {
	fields := []zap.Field{
		zap.String("path", path),
		zap.Int("rows", rep.Rows),
		zap.Int("skipped", rep.Skipped),
	}
	if rep.BadDates+rep.BadValues+rep.UnknownType > 0 {
		l.Log.Warn(msg+" with coerced cells", append(fields,
			zap.Int("bad_dates", rep.BadDates),
			zap.Int("bad_values", rep.BadValues),
			zap.Int("unknown_record_types", rep.UnknownType),
		)...)
		return
	}
	l.Log.Info(msg, fields...)
}
