/*
Package sqlite provides a SQLite-backed source for the dashboard dataset.

PURPOSE:
  Lets the dataset and forecast tables live in a single database file instead
  of a spreadsheet plus a CSV. The dashboard only ever reads from it; writes
  happen through the import command, which converts a loaded spreadsheet
  snapshot into this schema.

KEY TABLES:
  observations:  indicator, observation_date, value_numeric, record_type
  forecasts:     indicator, year, value, scenario

  Values are stored as TEXT decimal strings and dates as RFC 3339 UTC
  timestamps, so neither float rounding nor time of day is lost. Missing
  dates and values are NULL.

READ PATH:
  ReadTable returns the header and rows as strings, in insertion order, so
  the same tolerant parse boundary used for xlsx/csv applies (dataset/parse.go).

CONCURRENCY:
  A sync.RWMutex serializes imports against reads on the same Store.

USAGE:
  store, err := sqlite.New("./data/dashboard.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  err = store.SaveSnapshot(ctx, snap)

SEE ALSO:
  - dataset/readers.go: reads through Open + ReadTable
  - cli/import.go: writes through New + SaveSnapshot/SaveForecasts
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/inclusion-dashboard/indicator"
)

const (
	TableObservations = "observations"
	TableForecasts    = "forecasts"
)

// ErrTableMissing is returned by ReadTable when the database lacks the table.
var ErrTableMissing = errors.New("table missing")

// IsTableMissing reports whether err is ErrTableMissing.
func IsTableMissing(err error) bool { return errors.Is(err, ErrTableMissing) }

var tableColumns = map[string][]string{
	TableObservations: {"indicator", "observation_date", "value_numeric", "record_type"},
	TableForecasts:    {"indicator", "year", "value", "scenario"},
}

// Store wraps a SQLite database holding dashboard tables.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (creating if needed) a writable database and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Open opens an existing database read-only. No schema is created.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		indicator TEXT NOT NULL,
		observation_date TEXT,
		value_numeric TEXT,
		record_type TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_observations_indicator
		ON observations(indicator);

	CREATE TABLE IF NOT EXISTS forecasts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		indicator TEXT NOT NULL,
		year INTEGER NOT NULL,
		value TEXT,
		scenario TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_forecasts_scenario
		ON forecasts(scenario);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WRITE PATH (import)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveSnapshot replaces the observations table with every row of snap.
func (s *Store) SaveSnapshot(ctx context.Context, snap *indicator.Snapshot) error {
	return s.replace(ctx, TableObservations, func(db execer) error {
		for _, r := range snap.Records() {
			var date sql.NullString
			if r.HasDate {
				date = nullString(r.Date.UTC().Format(time.RFC3339Nano))
			}
			var value sql.NullString
			if r.Value.Valid {
				value = nullString(r.Value.Decimal.String())
			}
			_, err := db.ExecContext(ctx,
				`INSERT INTO observations (indicator, observation_date, value_numeric, record_type)
				 VALUES (?, ?, ?, ?)`,
				r.Indicator, date, value, string(r.Type))
			if err != nil {
				return fmt.Errorf("failed to insert observation: %w", err)
			}
		}
		return nil
	})
}

// SaveForecasts replaces the forecasts table with every row of set.
func (s *Store) SaveForecasts(ctx context.Context, set *indicator.ForecastSet) error {
	return s.replace(ctx, TableForecasts, func(db execer) error {
		for _, r := range set.Records() {
			var value sql.NullString
			if r.Value.Valid {
				value = nullString(r.Value.Decimal.String())
			}
			_, err := db.ExecContext(ctx,
				`INSERT INTO forecasts (indicator, year, value, scenario) VALUES (?, ?, ?, ?)`,
				r.Indicator, r.Year, value, string(r.Scenario))
			if err != nil {
				return fmt.Errorf("failed to insert forecast: %w", err)
			}
		}
		return nil
	})
}

// replace clears table and refills it inside one transaction.
func (s *Store) replace(ctx context.Context, table string, fill func(execer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	if err := fill(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// READ PATH
// =============================================================================

// ReadTable returns the header and every row of a dashboard table as strings,
// in insertion order. NULL cells are empty strings.
func (s *Store) ReadTable(ctx context.Context, table string) ([]string, [][]string, error) {
	cols, ok := tableColumns[table]
	if !ok {
		return nil, nil, fmt.Errorf("unknown table %q", table)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&n)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if n == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrTableMissing, table)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		cells := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		row := make([]string, len(cols))
		for i, c := range cells {
			row[i] = c.String
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return append([]string(nil), cols...), out, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
