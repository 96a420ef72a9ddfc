package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inclusion-dashboard/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWhenOptionalFileMissing(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 60.0, cfg.Dashboard.InclusionTarget)
	assert.Equal(t, 2011, cfg.Dashboard.DefaultMinYear)
	require.Len(t, cfg.Dashboard.Cards, 3)
	assert.Equal(t, "account", cfg.Dashboard.Cards[0].Keyword)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	assert.Error(t, err)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  read_timeout: 5s
data:
  dataset_path: /srv/data/unified.csv
dashboard:
  inclusion_target: 70
  cards:
    - title: Agents
      keyword: agent
log:
  level: debug
`)

	cfg, err := config.Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout, "untouched fields keep defaults")
	assert.Equal(t, "/srv/data/unified.csv", cfg.Data.DatasetPath)
	assert.Equal(t, 70.0, cfg.Dashboard.InclusionTarget)
	assert.Equal(t, []config.Card{{Title: "Agents", Keyword: "agent"}}, cfg.Dashboard.Cards)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9000\"\n")
	t.Setenv("DASHBOARD_ADDR", ":7000")
	t.Setenv("DASHBOARD_FORECASTS", "/tmp/fc.csv")
	t.Setenv("DASHBOARD_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/fc.csv", cfg.Data.ForecastPath)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.Dashboard.InclusionTarget = 0
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Dashboard.Cards = append(cfg.Dashboard.Cards, config.Card{Title: "Empty"})
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Data.DatasetPath = ""
	assert.Error(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "server: [unclosed"), true)
	assert.Error(t, err)
}
