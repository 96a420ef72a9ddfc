package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inclusion-dashboard/indicator"
	"github.com/warp/inclusion-dashboard/store/sqlite"
)

func TestSaveSnapshot_ReadTable(t *testing.T) {
	// GIVEN: A snapshot with a dated observation and an undated event
	// WHEN: Saving it and reading the table back
	// THEN: Rows come back in insertion order with NULLs as empty strings

	ctx := context.Background()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	snap := indicator.NewSnapshot([]indicator.Record{
		indicator.NewObservation("Account ownership", time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("46.5")),
		{Indicator: "Telebirr launch", Type: indicator.RecordEvent},
	})
	require.NoError(t, store.SaveSnapshot(ctx, snap))

	header, rows, err := store.ReadTable(ctx, sqlite.TableObservations)
	require.NoError(t, err)
	assert.Equal(t, []string{"indicator", "observation_date", "value_numeric", "record_type"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Account ownership", "2021-12-31T00:00:00Z", "46.5", "observation"}, rows[0])
	assert.Equal(t, []string{"Telebirr launch", "", "", "event"}, rows[1])
}

func TestSaveSnapshot_ReplacesPreviousRows(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	first := indicator.NewSnapshot([]indicator.Record{{Indicator: "a", Type: indicator.RecordEvent}, {Indicator: "b", Type: indicator.RecordEvent}})
	second := indicator.NewSnapshot([]indicator.Record{{Indicator: "c", Type: indicator.RecordEvent}})
	require.NoError(t, store.SaveSnapshot(ctx, first))
	require.NoError(t, store.SaveSnapshot(ctx, second))

	_, rows, err := store.ReadTable(ctx, sqlite.TableObservations)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0][0])
}

func TestSaveForecasts_ReadTable(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	set := indicator.NewForecastSet([]indicator.ForecastRecord{{
		Indicator: "Account ownership",
		Year:      2027,
		Value:     decimal.NewNullDecimal(decimal.RequireFromString("58.25")),
		Scenario:  indicator.ScenarioBase,
	}})
	require.NoError(t, store.SaveForecasts(ctx, set))

	_, rows, err := store.ReadTable(ctx, sqlite.TableForecasts)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Account ownership", "2027", "58.25", "base"}, rows[0])
}

func TestReadTable_MissingTable(t *testing.T) {
	// GIVEN: A database holding observations but no forecasts table
	path := filepath.Join(t.TempDir(), "partial.db")
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE observations (indicator TEXT, observation_date TEXT, value_numeric TEXT, record_type TEXT)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, _, err = store.ReadTable(context.Background(), sqlite.TableForecasts)
	require.Error(t, err)
	assert.True(t, sqlite.IsTableMissing(err))
}

func TestReadTable_UnknownTable(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, _, err = store.ReadTable(context.Background(), "users; DROP TABLE observations")
	assert.Error(t, err)
}
