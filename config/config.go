// Package config loads dashboard settings from an optional YAML file and the
// environment. Environment variables win over the file, the file wins over
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DataConfig struct {
	DatasetPath  string `yaml:"dataset_path"`
	ForecastPath string `yaml:"forecast_path"` // may not exist yet

	// RefreshInterval > 0 watches both files and drops the cache on change.
	// It is also the polling interval when the directories cannot be watched.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Card is one headline metric on the overview page.
type Card struct {
	Title   string `yaml:"title"`
	Keyword string `yaml:"keyword"`
}

type DashboardConfig struct {
	Cards           []Card  `yaml:"cards"`
	InclusionTarget float64 `yaml:"inclusion_target"` // percent
	TargetKeyword   string  `yaml:"target_keyword"`
	DefaultMinYear  int     `yaml:"default_min_year"` // lower bound of the trends slider
}

type LogConfig struct {
	Level       string `yaml:"level"` // debug|info|warn|error
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			CORSOrigins:  []string{"http://localhost:5173", "http://localhost:8080"},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Data: DataConfig{
			DatasetPath:  "data/processed/ethiopia_fi_unified_data_enriched.xlsx",
			ForecastPath: "data/processed/forecasts.csv",
		},
		Dashboard: DashboardConfig{
			Cards: []Card{
				{Title: "Account Ownership (%)", Keyword: "account"},
				{Title: "Digital Payments Usage (%)", Keyword: "digital"},
				{Title: "Mobile Money Usage (%)", Keyword: "mobile"},
			},
			InclusionTarget: 60,
			TargetKeyword:   "account",
			DefaultMinYear:  2011,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be empty; a missing file is only an
// error when it was asked for explicitly.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
			// optional
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("DASHBOARD_ADDR", c.Server.Addr)
	c.Data.DatasetPath = getEnv("DASHBOARD_DATASET", c.Data.DatasetPath)
	c.Data.ForecastPath = getEnv("DASHBOARD_FORECASTS", c.Data.ForecastPath)
	c.Log.Level = getEnv("DASHBOARD_LOG_LEVEL", c.Log.Level)
	if origins := os.Getenv("DASHBOARD_CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = splitList(origins)
	}
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Data.DatasetPath == "" {
		return errors.New("config: data.dataset_path is required")
	}
	if c.Data.RefreshInterval < 0 {
		return fmt.Errorf("config: data.refresh_interval %v must not be negative", c.Data.RefreshInterval)
	}
	if c.Dashboard.InclusionTarget <= 0 || c.Dashboard.InclusionTarget > 100 {
		return fmt.Errorf("config: dashboard.inclusion_target %v must be in (0, 100]", c.Dashboard.InclusionTarget)
	}
	for i, card := range c.Dashboard.Cards {
		if strings.TrimSpace(card.Keyword) == "" {
			return fmt.Errorf("config: dashboard.cards[%d] has no keyword", i)
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
