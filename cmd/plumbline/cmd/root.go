package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/plumbline/config"
	"github.com/rustyeddy/plumbline/market"
)

var rootCmd = &cobra.Command{
	Use:   "plumbline",
	Short: "Policy-driven contribution planner and backtester",
	Long: `Plumbline keeps a long-term portfolio on its target weights.

It provides tools for:
  - Validating a bucketed target-weight policy
  - Importing holdings from CSV or an IBKR activity statement
  - Measuring drift against the policy
  - Splitting a new contribution into buy orders that respect caps
  - Backtesting a contribution schedule over historical prices

Settings are read from plumbline.yaml unless --config says otherwise.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile  string
	logLevel string

	cfg *config.Config
	log = zerolog.Nop()
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "plumbline.yaml", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
}

// setup loads the config and builds the logger. A missing default config
// file falls back to config.Default; an explicit --config must exist.
// Commands annotated config=none never read the file.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations["config"] == "none" {
		cfg = config.Default()
	} else {
		c, err := config.LoadFromFile(cfgFile)
		switch {
		case err == nil:
			cfg = c
		case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
			cfg = config.Default()
		default:
			return err
		}
	}

	lc := cfg.Log
	if logLevel != "" {
		lc.Level = logLevel
	}
	level, err := lc.ZerologLevel()
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// dateFlag parses an optional YYYY-MM-DD flag value.
func dateFlag(name, v string) (market.Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return market.Date{}, nil
	}
	d, err := market.ParseDate(v)
	if err != nil {
		return market.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}
