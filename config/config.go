package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete bot configuration.
type Config struct {
	LogLevel    string `json:"log_level" yaml:"log_level"`
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`

	Account  AccountConfig  `json:"account" yaml:"account"`
	Broker   BrokerConfig   `json:"broker" yaml:"broker"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Exit     ExitConfig     `json:"exit" yaml:"exit"`
	Feed     FeedConfig     `json:"feed" yaml:"feed"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
}

type AccountConfig struct {
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

// BrokerConfig selects the order venue. The default "paper" venue fills
// against feed prices in process; "oanda" places real orders. The OANDA API
// token comes from the OANDA_API_TOKEN environment variable, never the file.
type BrokerConfig struct {
	Venue     string `json:"venue" yaml:"venue"` // "paper" or "oanda"
	AccountID string `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	Practice  bool   `json:"practice,omitempty" yaml:"practice,omitempty"`
}

type EngineConfig struct {
	TickInterval  string   `json:"tick_interval" yaml:"tick_interval"`   // e.g. "60s"
	OrderTimeout  string   `json:"order_timeout" yaml:"order_timeout"`   // e.g. "10s"
	OrderAttempts int      `json:"order_attempts" yaml:"order_attempts"` // retry budget
	Strategies    []string `json:"strategies" yaml:"strategies"`
}

type RiskConfig struct {
	RiskPerTrade  float64 `json:"risk_per_trade" yaml:"risk_per_trade"`
	MaxOpenTrades int     `json:"max_open_trades" yaml:"max_open_trades"`
	MinUnits      float64 `json:"min_units,omitempty" yaml:"min_units,omitempty"`
}

type ExitConfig struct {
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	MaxHold       string  `json:"max_hold" yaml:"max_hold"` // e.g. "4h"
}

type FeedConfig struct {
	URL         string   `json:"url" yaml:"url"`
	Instruments []string `json:"instruments" yaml:"instruments"`
}

type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "sqlite" or "memory"
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type BacktestConfig struct {
	From           string  `json:"from" yaml:"from"` // RFC3339 or 2006-01-02
	To             string  `json:"to" yaml:"to"`
	Step           string  `json:"step" yaml:"step"`         // e.g. "24h"
	Interval       string  `json:"interval" yaml:"interval"` // e.g. "1h"
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`
	CommissionBPS  float64 `json:"commission_bps" yaml:"commission_bps"`
	Warmup         int     `json:"warmup" yaml:"warmup"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration. Validation failures at startup are
// fatal; everything after startup is isolated per tick.
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 1 {
		return fmt.Errorf("risk.risk_per_trade must be in (0,1]")
	}
	if c.Risk.MaxOpenTrades < 0 {
		return fmt.Errorf("risk.max_open_trades must not be negative")
	}
	if c.Exit.StopLossPct < 0 || c.Exit.TakeProfitPct < 0 {
		return fmt.Errorf("exit thresholds must not be negative")
	}
	for _, name := range []struct{ key, val string }{
		{"engine.tick_interval", c.Engine.TickInterval},
		{"engine.order_timeout", c.Engine.OrderTimeout},
		{"exit.max_hold", c.Exit.MaxHold},
	} {
		if name.val == "" {
			continue
		}
		if _, err := time.ParseDuration(name.val); err != nil {
			return fmt.Errorf("%s: %w", name.key, err)
		}
	}
	switch c.Broker.Venue {
	case "", "paper":
	case "oanda":
		if c.Broker.AccountID == "" {
			return fmt.Errorf("broker.account_id required for the oanda venue")
		}
	default:
		return fmt.Errorf("broker.venue must be 'paper' or 'oanda'")
	}
	switch c.Journal.Type {
	case "", "memory":
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite journal")
		}
	default:
		return fmt.Errorf("journal.type must be 'sqlite' or 'memory'")
	}
	return nil
}

// Duration parses s, returning fallback when unset.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Date parses an RFC3339 timestamp or a bare 2006-01-02 date.
func Date(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q (want RFC3339 or YYYY-MM-DD)", s)
	}
	return t.UTC(), nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Account: AccountConfig{
			Currency: "USD",
			Balance:  10_000,
		},
		Engine: EngineConfig{
			TickInterval:  "60s",
			OrderTimeout:  "10s",
			OrderAttempts: 3,
			Strategies:    []string{"sma-cross"},
		},
		Risk: RiskConfig{
			RiskPerTrade:  0.01,
			MaxOpenTrades: 3,
		},
		Exit: ExitConfig{
			StopLossPct:   0.02,
			TakeProfitPct: 0.04,
			MaxHold:       "4h",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./tradebot.sqlite",
		},
		Backtest: BacktestConfig{
			Step:           "24h",
			Interval:       "1h",
			InitialBalance: 10_000,
			CommissionBPS:  5,
			Warmup:         20,
		},
	}
}
