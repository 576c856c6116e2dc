// Package config holds the application settings shared by the CLI
// commands: where the policy and market data live, backtest defaults,
// where results are journaled and how loudly to log.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/plumbline/backtest"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/policy"
)

// Config represents the complete application configuration
type Config struct {
	Policy   PolicyConfig   `json:"policy" yaml:"policy"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// PolicyConfig points at the policy document
type PolicyConfig struct {
	File string `json:"file" yaml:"file"`
}

// DataConfig contains the input files
type DataConfig struct {
	Holdings string `json:"holdings,omitempty" yaml:"holdings,omitempty"`
	// HoldingsFormat is "csv" or "ibkr"
	HoldingsFormat string `json:"holdings_format,omitempty" yaml:"holdings_format,omitempty"`
	Prices         string `json:"prices" yaml:"prices"`
	FX             string `json:"fx,omitempty" yaml:"fx,omitempty"`
}

// BacktestConfig contains backtest defaults. Zero values fall back to the
// policy's contribution defaults.
type BacktestConfig struct {
	From          market.Date             `json:"from" yaml:"from"`
	To            market.Date             `json:"to" yaml:"to"`
	Universe      string                  `json:"universe,omitempty" yaml:"universe,omitempty"`
	Cash          float64                 `json:"cash,omitempty" yaml:"cash,omitempty"`
	Amount        float64                 `json:"amount,omitempty" yaml:"amount,omitempty"`
	Currency      string                  `json:"currency,omitempty" yaml:"currency,omitempty"`
	DayOfMonth    int                     `json:"day_of_month,omitempty" yaml:"day_of_month,omitempty"`
	Contributions []backtest.Contribution `json:"contributions,omitempty" yaml:"contributions,omitempty"`
}

// Range returns the configured date range.
func (b BacktestConfig) Range() market.Range { return market.Range{From: b.From, To: b.To} }

// Schedule builds the contribution schedule: the explicit table when one is
// given, otherwise a monthly schedule from these settings and p's defaults.
func (b BacktestConfig) Schedule(p *policy.Policy) backtest.Schedule {
	if len(b.Contributions) > 0 {
		return backtest.Table(b.Contributions)
	}
	m := backtest.Monthly{
		Amount:     p.ContributionDefaults.Amount,
		Currency:   p.ContributionDefaults.Currency,
		DayOfMonth: p.ContributionDefaults.DayOfMonth,
	}
	if b.Amount > 0 {
		m.Amount = b.Amount
	}
	if b.Currency != "" {
		m.Currency = market.NormalizeCurrency(b.Currency)
	}
	if b.DayOfMonth > 0 {
		m.DayOfMonth = b.DayOfMonth
	}
	return m
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv" or "sqlite"
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrgDir     string `json:"org_dir,omitempty" yaml:"org_dir,omitempty"`
}

// LogConfig contains logging parameters
type LogConfig struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

// ZerologLevel parses Level, defaulting to info.
func (l LogConfig) ZerologLevel() (zerolog.Level, error) {
	if l.Level == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(l.Level))
}

// LoadFromFile loads configuration from a file (JSON or YAML based on extension)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Policy.File == "" {
		return fmt.Errorf("policy.file is required")
	}
	if c.Data.Prices == "" {
		return fmt.Errorf("data.prices is required")
	}
	switch c.Data.HoldingsFormat {
	case "", "csv", "ibkr":
	default:
		return fmt.Errorf("data.holdings_format must be 'csv' or 'ibkr'")
	}

	b := c.Backtest
	if !b.From.IsZero() && !b.To.IsZero() && b.To.Before(b.From) {
		return fmt.Errorf("backtest.to must not be before backtest.from")
	}
	if _, err := policy.ParseUniverse(b.Universe); err != nil {
		return fmt.Errorf("backtest.universe: %w", err)
	}
	if b.Cash < 0 || b.Amount < 0 {
		return fmt.Errorf("backtest cash and amount must not be negative")
	}
	if b.Currency != "" && !market.IsCurrency(market.NormalizeCurrency(b.Currency)) {
		return fmt.Errorf("backtest.currency %q is not a recognized currency", b.Currency)
	}
	if b.DayOfMonth < 0 || b.DayOfMonth > 28 {
		return fmt.Errorf("backtest.day_of_month must be between 1 and 28")
	}

	if c.Journal.Type != "csv" && c.Journal.Type != "sqlite" {
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	if c.Journal.Type == "csv" && c.Journal.EquityFile == "" {
		return fmt.Errorf("journal equity_file required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}
	if _, err := c.Log.ZerologLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Policy: PolicyConfig{File: "./policy.yaml"},
		Data: DataConfig{
			Holdings:       "./holdings.csv",
			HoldingsFormat: "csv",
			Prices:         "./prices.csv",
			FX:             "./fx.csv",
		},
		Backtest: BacktestConfig{
			From:     market.NewDate(2020, 1, 1),
			To:       market.NewDate(2024, 12, 31),
			Universe: string(policy.CoreOnly),
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./plumbline.db",
		},
		Log: LogConfig{Level: "info"},
	}
}
