package cmd

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebot/config"
	"github.com/rustyeddy/tradebot/internal/logx"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "tradebot",
	Short: "Signal-driven trading engine with backtesting and optimization",
	Long: `Tradebot evaluates trading signals against streaming market data,
manages the lifecycle of trades from entry to exit, and evaluates strategy
performance both live and retrospectively.

It provides tools for:
  - Running the live decision loop against a market data feed
  - Backtesting strategies over historical candle data
  - Optimizing strategy parameters via grid or guided search
  - Journaling trades and equity curves to SQLite`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Not an error if there is no .env; explicit env always wins.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig resolves the effective configuration and logger for a command.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logx.New(cfg.LogLevel)
}
