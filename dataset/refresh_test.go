package dataset_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inclusion-dashboard/dataset"
	"go.uber.org/goleak"
)

func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, at, at))
}

func TestRefresher_ClearsSessionWhenFileChanges(t *testing.T) {
	// GIVEN: A session with a memoized snapshot and a baseline check
	ctx := context.Background()
	path := writeFile(t, "data.csv", datasetCSV)
	counter := newLoadCounter()
	session := dataset.NewSession(nil, path, "").WithObserver(counter)
	refresher := dataset.NewRefresher(session, nil)

	assert.False(t, refresher.CheckNow(), "first check records a baseline")
	_, err := session.Snapshot(ctx)
	require.NoError(t, err)

	// WHEN: Nothing changed
	// THEN: The cache stays
	assert.False(t, refresher.CheckNow())
	snap, _ := session.Cached()
	assert.NotNil(t, snap)

	// WHEN: The file is rewritten
	touch(t, path, time.Now().Add(time.Hour))

	// THEN: The cache is dropped and the next query reloads
	assert.True(t, refresher.CheckNow())
	snap, _ = session.Cached()
	assert.Nil(t, snap)

	_, err = session.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counter.loads["dataset"])
}

func TestRefresher_ForecastFileRemoved(t *testing.T) {
	ctx := context.Background()
	dataPath := writeFile(t, "data.csv", datasetCSV)
	forecastPath := writeFile(t, "forecasts.csv", forecastCSV)
	session := dataset.NewSession(nil, dataPath, forecastPath)
	refresher := dataset.NewRefresher(session, nil)
	refresher.CheckNow()

	_, err := session.Forecasts(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(forecastPath))
	assert.True(t, refresher.CheckNow())

	_, fs := session.Cached()
	assert.Nil(t, fs)
}

func TestRefresher_NothingCached(t *testing.T) {
	path := writeFile(t, "data.csv", datasetCSV)
	session := dataset.NewSession(nil, path, "")
	refresher := dataset.NewRefresher(session, nil)

	refresher.CheckNow()
	touch(t, path, time.Now().Add(time.Hour))
	assert.False(t, refresher.CheckNow(), "a change with an empty cache is a no-op")
}

func TestRefresher_WatchClearsOnReplace(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// GIVEN: A watched session with a memoized snapshot
	ctx := context.Background()
	path := writeFile(t, "data.csv", datasetCSV)
	session := dataset.NewSession(nil, path, "")
	_, err := session.Snapshot(ctx)
	require.NoError(t, err)

	refresher := dataset.NewRefresher(session, nil)
	refresher.Debounce = 20 * time.Millisecond
	refresher.Start()
	defer refresher.Stop()
	require.Equal(t, dataset.ModeWatch, refresher.Mode())

	// WHEN: The file is replaced the way spreadsheet tools save it
	tmp := filepath.Join(filepath.Dir(path), ".~data.csv")
	require.NoError(t, os.WriteFile(tmp, []byte(datasetCSV), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	// THEN: The cache is dropped once the events settle
	require.Eventually(t, func() bool {
		snap, _ := session.Cached()
		return snap == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, refresher.LastRun().IsZero())
}

func TestRefresher_WatchIgnoresOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	path := writeFile(t, "data.csv", datasetCSV)
	session := dataset.NewSession(nil, path, "")
	_, err := session.Snapshot(ctx)
	require.NoError(t, err)

	refresher := dataset.NewRefresher(session, nil)
	refresher.Debounce = 20 * time.Millisecond
	refresher.Start()
	defer refresher.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "notes.txt"), []byte("x"), 0o644))

	assert.Never(t, func() bool {
		snap, _ := session.Cached()
		return snap == nil
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestRefresher_FallsBackToPolling(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// GIVEN: A source directory that does not exist yet
	path := filepath.Join(t.TempDir(), "later", "data.csv")
	refresher := dataset.NewRefresher(dataset.NewSession(nil, path, ""), nil)
	refresher.PollInterval = 10 * time.Millisecond

	// WHEN: Starting
	refresher.Start()

	// THEN: It polls instead of watching
	assert.Equal(t, dataset.ModePoll, refresher.Mode())
	require.Eventually(t, func() bool { return !refresher.LastRun().IsZero() }, time.Second, 5*time.Millisecond)

	refresher.Stop()
	refresher.Stop()
	assert.Equal(t, dataset.ModeStopped, refresher.Mode())
}
