package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inclusion-dashboard/config"
	"go.uber.org/zap"
)

const datasetCSV = `indicator,observation_date,value_numeric,record_type
Account Ownership (%),2017-12-31,35,observation
Account Ownership (%),2021-12-31,46,observation
Mobile money users (millions),2021-12-31,4.7,observation
P2P transfers (count),2022-06-30,30,observation
ATM withdrawals (count),2022-06-30,60,observation
Telebirr launch,2021-05-11,,event
`

const forecastCSV = `indicator,year,value,scenario
Account Ownership (%),2025,52,base
Account Ownership (%),2026,61,optimistic
`

// writeWorkspace writes the dataset, optionally the forecasts, and a config
// file pointing at them. It returns the config path.
func writeWorkspace(t *testing.T, withForecasts bool) string {
	t.Helper()
	dir := t.TempDir()
	datasetPath := filepath.Join(dir, "unified.csv")
	forecastPath := filepath.Join(dir, "forecasts.csv")
	require.NoError(t, os.WriteFile(datasetPath, []byte(datasetCSV), 0o644))
	if withForecasts {
		require.NoError(t, os.WriteFile(forecastPath, []byte(forecastCSV), 0o644))
	}

	cfgPath := filepath.Join(dir, "dashboard.yaml")
	content := fmt.Sprintf("data:\n  dataset_path: %q\n  forecast_path: %q\nlog:\n  level: error\n", datasetPath, forecastPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// =============================================================================
// ROOT
// =============================================================================

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "summary", "import"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, defaultConfigPath, cfg.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "summary", "--format", "yaml", "--config", writeWorkspace(t, false))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExplicitConfigMissing(t *testing.T) {
	_, err := execute(t, "summary", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSummary_Text(t *testing.T) {
	// GIVEN: A dataset without digital rows and an optimistic forecast above target
	cfgPath := writeWorkspace(t, true)

	// WHEN: Printing the text summary
	out, err := execute(t, "summary", "--config", cfgPath, "--scenario", "optimistic")
	require.NoError(t, err)

	// THEN: Present values are formatted, absent ones print N/A
	assert.Contains(t, out, "Records: event=1 observation=5")
	assert.Contains(t, out, "46.0")
	assert.Contains(t, out, "+11.0")
	assert.Contains(t, out, notAvailable)
	assert.Contains(t, out, "0.50")
	assert.Contains(t, out, "reached in 2026")
}

func TestSummary_JSON_NoForecasts(t *testing.T) {
	out, err := execute(t, "summary", "--config", writeWorkspace(t, false), "--format", "json")
	require.NoError(t, err)

	var s Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s), out)

	require.Len(t, s.Cards, 3)
	assert.True(t, s.Cards[0].Value.Valid)
	assert.Equal(t, "46", s.Cards[0].Value.Decimal.String())
	assert.False(t, s.Cards[1].Value.Valid, "no digital rows")
	assert.Nil(t, s.Cards[1].Year)

	require.True(t, s.Ratio.Available)
	assert.Equal(t, "0.5", s.Ratio.Points[0].Ratio.Decimal.String())

	assert.False(t, s.Projection.Available)
	assert.NotEmpty(t, s.Projection.Warning)
}

func TestSummary_InvalidScenario(t *testing.T) {
	_, err := execute(t, "summary", "--config", writeWorkspace(t, true), "--scenario", "Optimistic")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// =============================================================================
// IMPORT
// =============================================================================

func TestImport_ThenSummaryFromDatabase(t *testing.T) {
	// GIVEN: A dataset and forecasts converted into SQLite
	cfgPath := writeWorkspace(t, true)
	dbPath := filepath.Join(t.TempDir(), "dashboard.db")

	out, err := execute(t, "import", "--config", cfgPath, "-o", dbPath, "--format", "json")
	require.NoError(t, err)
	var result ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 5, result.Records["observation"])
	assert.Equal(t, 2, result.Forecasts)

	// WHEN: The summary reads the database instead of the CSV files
	t.Setenv("DASHBOARD_DATASET", dbPath)
	t.Setenv("DASHBOARD_FORECASTS", dbPath)
	out, err = execute(t, "summary", "--config", cfgPath, "--scenario", "optimistic")

	// THEN: It reports the same figures
	require.NoError(t, err)
	assert.Contains(t, out, "Dataset: "+dbPath)
	assert.Contains(t, out, "46.0")
	assert.Contains(t, out, "reached in 2026")
}

func TestImport_WithoutForecasts(t *testing.T) {
	out, err := execute(t, "import", "--config", writeWorkspace(t, false), "-o", filepath.Join(t.TempDir(), "d.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "note: forecasts not imported")
}

// =============================================================================
// SERVE
// =============================================================================

func TestRunServe_ServesAndShutsDown(t *testing.T) {
	cfgPath := writeWorkspace(t, true)
	cfg, err := config.Load(cfgPath, true)
	require.NoError(t, err)
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Data.RefreshInterval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, zap.NewNop(), ready) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/api/indicators/latest?keyword=account")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Value *float64 `json:"value"`
		Year  *int     `json:"year"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Value)
	assert.Equal(t, 46.0, *body.Value)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
