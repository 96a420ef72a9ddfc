package dataset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inclusion-dashboard/dataset"
	"github.com/warp/inclusion-dashboard/indicator"
	"github.com/warp/inclusion-dashboard/store/sqlite"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// FIXTURES
// =============================================================================

const datasetCSV = `indicator,observation_date,value_numeric,record_type,source
Account Ownership (%),2018-12-31,40.0,observation,Findex
Account Ownership (%),2021-12-31,46.0,observation,Findex
Mobile money accounts,2021-12-31,not reported,observation,GSMA
Mobile money accounts,garbage,9.5,observation,GSMA
Telebirr launch,2021-05-11,,event,news
,,,,
`

const forecastCSV = `indicator,year,value,scenario
Account Ownership (%),2025,52.1,base
Account Ownership (%),2027,61.0,optimistic
Account Ownership (%),next,55.0,base
Digital payments,2025,,base
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeXLSX(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "dataset.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

// =============================================================================
// DATASET
// =============================================================================

func TestLoadDataset_CSV_CoercesBadCells(t *testing.T) {
	// GIVEN: A CSV with an unparseable value, an unparseable date and a blank row
	// WHEN: Loading it
	// THEN: Bad cells become absent, the blank row is skipped, nothing fails

	loader := dataset.NewLoader(nil)
	snap, rep, err := loader.LoadDataset(context.Background(), writeFile(t, "data.csv", datasetCSV))
	require.NoError(t, err)

	assert.Equal(t, 5, rep.Rows)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 1, rep.BadDates)
	assert.Equal(t, 1, rep.BadValues)

	counts := snap.Counts()
	assert.Equal(t, 4, counts[indicator.RecordObservation])
	assert.Equal(t, 1, counts[indicator.RecordEvent])

	latest, ok := snap.LatestValue("account")
	require.True(t, ok)
	assert.Equal(t, 2021, latest.Year)
	assert.Equal(t, "46", latest.Value.String())

	delta, ok := snap.GrowthRate("account")
	require.True(t, ok)
	assert.Equal(t, "6", delta.String())

	// Neither mobile row is both dated and numeric.
	_, ok = snap.LatestValue("mobile")
	assert.False(t, ok)
	assert.Len(t, snap.ChannelSeries(), 2)
}

func TestLoadDataset_XLSX(t *testing.T) {
	path := writeXLSX(t, [][]any{
		{"Indicator", "Observation Date", "Value Numeric", "Record Type"},
		{"Account Ownership (%)", "2018-12-31", 40.0, "observation"},
		{"Account Ownership (%)", 44561, 46.0, "observation"},
		{"P2P transfers", "2021", 20, "observation"},
		{"ATM withdrawals", "2021", 50, "observation"},
	})

	snap, _, err := dataset.NewLoader(nil).LoadDataset(context.Background(), path)
	require.NoError(t, err)

	latest, ok := snap.LatestValue("account")
	require.True(t, ok)
	assert.Equal(t, 2021, latest.Year)
	assert.Equal(t, "46", latest.Value.String())

	ratio := snap.P2PATMRatio()
	require.Len(t, ratio.Points, 1)
	assert.Equal(t, "0.4", ratio.Points[0].Ratio.Decimal.String())
	assert.Equal(t, path, snap.Origin().Path)
}

func TestLoadDataset_SQLite(t *testing.T) {
	// GIVEN: A database produced from a CSV snapshot
	ctx := context.Background()
	loader := dataset.NewLoader(nil)
	src, _, err := loader.LoadDataset(ctx, writeFile(t, "data.csv", datasetCSV))
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "dashboard.db")
	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(ctx, src))
	require.NoError(t, store.Close())

	// WHEN: Loading the database as a dataset
	snap, rep, err := loader.LoadDataset(ctx, dbPath)
	require.NoError(t, err)

	// THEN: The same queries answer the same way
	assert.Equal(t, 5, rep.Rows)
	want, _ := src.LatestValue("account")
	got, ok := snap.LatestValue("account")
	require.True(t, ok)
	assert.True(t, want.Value.Equal(got.Value))
	assert.Equal(t, want.Year, got.Year)
	assert.Equal(t, src.Indicators(), snap.Indicators())
}

func TestLoadDataset_SQLite_KeepsTimeOfDay(t *testing.T) {
	// GIVEN: Two same-day rows where the later one is stored first
	ctx := context.Background()
	loader := dataset.NewLoader(nil)
	src, _, err := loader.LoadDataset(ctx, writeFile(t, "data.csv", `indicator,observation_date,value_numeric,record_type
Account X,2021-06-01 18:00:00,46,observation
Account X,2021-06-01 09:00:00,40,observation
`))
	require.NoError(t, err)
	want, ok := src.LatestValue("account")
	require.True(t, ok)
	require.Equal(t, "46", want.Value.String())

	// WHEN: Round-tripping through the database
	dbPath := filepath.Join(t.TempDir(), "dashboard.db")
	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(ctx, src))
	require.NoError(t, store.Close())
	snap, _, err := loader.LoadDataset(ctx, dbPath)
	require.NoError(t, err)

	// THEN: The latest row is still the 18:00 one
	got, ok := snap.LatestValue("account")
	require.True(t, ok)
	assert.True(t, want.Value.Equal(got.Value))
	assert.True(t, want.Date.Equal(got.Date), "got %v", got.Date)
}

func TestLoadDataset_MissingColumn(t *testing.T) {
	path := writeFile(t, "data.csv", "indicator,value_numeric,record_type\nA,1,observation\n")

	_, _, err := dataset.NewLoader(nil).LoadDataset(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrMissingColumn))

	var colErr *dataset.MissingColumnError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, "observation_date", colErr.Column)
}

func TestLoadDataset_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "data.parquet", "x")
	_, _, err := dataset.NewLoader(nil).LoadDataset(context.Background(), path)
	assert.True(t, errors.Is(err, dataset.ErrUnsupportedFormat))
}

func TestLoadDataset_MissingFile(t *testing.T) {
	_, _, err := dataset.NewLoader(nil).LoadDataset(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

// =============================================================================
// FORECASTS
// =============================================================================

func TestLoadForecasts_CSV(t *testing.T) {
	set, rep, err := dataset.NewLoader(nil).LoadForecasts(context.Background(), writeFile(t, "forecasts.csv", forecastCSV))
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, 1, rep.Skipped, "row with unparseable year")

	base := set.Series(indicator.ScenarioBase, "")
	require.Len(t, base, 2)
	assert.Equal(t, "Account Ownership (%)", base[0].Indicator)
	assert.False(t, base[1].Value.Valid)
}

func TestLoadForecasts_MissingFile_Unavailable(t *testing.T) {
	_, _, err := dataset.NewLoader(nil).LoadForecasts(context.Background(), filepath.Join(t.TempDir(), "forecasts.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, indicator.ErrForecastUnavailable))
}

func TestLoadForecasts_EmptyFile_Unavailable(t *testing.T) {
	_, _, err := dataset.NewLoader(nil).LoadForecasts(context.Background(), writeFile(t, "forecasts.csv", ""))
	assert.True(t, indicator.IsUnavailable(err))
}

func TestLoadForecasts_SQLiteEmptyTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dashboard.db")
	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// The schema exists but holds no rows: that is an empty, available table.
	set, _, err := dataset.NewLoader(nil).LoadForecasts(context.Background(), dbPath)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}
