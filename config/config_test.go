package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/plumbline/backtest"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/policy"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "./policy.yaml", cfg.Policy.File)
	assert.Equal(t, "sqlite", cfg.Journal.Type)
	assert.Equal(t, market.NewDate(2020, 1, 1), cfg.Backtest.From)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:    "missing policy file",
			mutate:  func(c *Config) { c.Policy.File = "" },
			wantErr: true,
			errMsg:  "policy.file is required",
		},
		{
			name:    "missing prices",
			mutate:  func(c *Config) { c.Data.Prices = "" },
			wantErr: true,
			errMsg:  "data.prices is required",
		},
		{
			name:    "unknown holdings format",
			mutate:  func(c *Config) { c.Data.HoldingsFormat = "xlsx" },
			wantErr: true,
			errMsg:  "data.holdings_format",
		},
		{
			name:    "inverted range",
			mutate:  func(c *Config) { c.Backtest.From, c.Backtest.To = c.Backtest.To, c.Backtest.From },
			wantErr: true,
			errMsg:  "backtest.to must not be before",
		},
		{
			name:    "bad universe",
			mutate:  func(c *Config) { c.Backtest.Universe = "bonds" },
			wantErr: true,
			errMsg:  "backtest.universe",
		},
		{
			name:    "bad day of month",
			mutate:  func(c *Config) { c.Backtest.DayOfMonth = 31 },
			wantErr: true,
			errMsg:  "day_of_month",
		},
		{
			name:    "bad currency",
			mutate:  func(c *Config) { c.Backtest.Currency = "EURO" },
			wantErr: true,
			errMsg:  "backtest.currency",
		},
		{
			name:    "unknown journal type",
			mutate:  func(c *Config) { c.Journal.Type = "postgres" },
			wantErr: true,
			errMsg:  "journal.type must be 'csv' or 'sqlite'",
		},
		{
			name:    "csv without equity file",
			mutate:  func(c *Config) { c.Journal = JournalConfig{Type: "csv"} },
			wantErr: true,
			errMsg:  "equity_file required",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Journal.DBPath = "" },
			wantErr: true,
			errMsg:  "db_path required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: true,
			errMsg:  "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Backtest.Contributions = []backtest.Contribution{
				{Date: market.NewDate(2021, 3, 1), Amount: 500, Currency: "EUR"},
			}
			path := filepath.Join(tmpDir, "test"+tt.ext)

			err := cfg.SaveToFile(path)
			require.NoError(t, err)

			_, err = os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Policy, loaded.Policy)
			assert.Equal(t, cfg.Data, loaded.Data)
			assert.Equal(t, cfg.Backtest, loaded.Backtest)
			assert.Equal(t, cfg.Journal, loaded.Journal)
		})
	}
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestSchedule(t *testing.T) {
	p, _, err := policy.Validate(policy.Example())
	require.NoError(t, err)

	var b BacktestConfig
	assert.Equal(t, backtest.Monthly{Amount: 1000, Currency: "EUR", DayOfMonth: 1}, b.Schedule(p))

	b = BacktestConfig{Amount: 250, Currency: "usd", DayOfMonth: 15}
	assert.Equal(t, backtest.Monthly{Amount: 250, Currency: "USD", DayOfMonth: 15}, b.Schedule(p))

	table := []backtest.Contribution{{Date: market.NewDate(2024, 1, 2), Amount: 10}}
	b.Contributions = table
	assert.Equal(t, backtest.Table(table), b.Schedule(p))
}

func TestLogLevel(t *testing.T) {
	lvl, err := LogConfig{}.ZerologLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)

	lvl, err = LogConfig{Level: "DEBUG"}.ZerologLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)
}
