package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
log_level: debug
account:
  currency: USD
  balance: 25000
engine:
  tick_interval: 30s
  order_timeout: 5s
  order_attempts: 2
  strategies: [sma-cross]
risk:
  risk_per_trade: 0.02
  max_open_trades: 5
exit:
  stop_loss_pct: 0.02
  take_profit_pct: 0.04
  max_hold: 4h
feed:
  url: wss://feed.example.com/stream
  instruments: [EUR_USD, GBP_USD]
journal:
  type: sqlite
  db_path: /tmp/test.sqlite
`

const jsonConfig = `{
  "account": {"currency": "USD", "balance": 1000},
  "risk": {"risk_per_trade": 0.01},
  "journal": {"type": "memory"}
}`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromFile(writeConfig(t, "config.yaml", yamlConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 25000.0, cfg.Account.Balance)
	assert.Equal(t, "30s", cfg.Engine.TickInterval)
	assert.Equal(t, []string{"sma-cross"}, cfg.Engine.Strategies)
	assert.Equal(t, 0.02, cfg.Risk.RiskPerTrade)
	assert.Equal(t, 5, cfg.Risk.MaxOpenTrades)
	assert.Equal(t, []string{"EUR_USD", "GBP_USD"}, cfg.Feed.Instruments)
	assert.Equal(t, "sqlite", cfg.Journal.Type)
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromFile(writeConfig(t, "config.json", jsonConfig))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, cfg.Account.Balance)
	assert.Equal(t, "memory", cfg.Journal.Type)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile("/no/such/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing currency", func(c *Config) { c.Account.Currency = "" }},
		{"zero balance", func(c *Config) { c.Account.Balance = 0 }},
		{"risk too high", func(c *Config) { c.Risk.RiskPerTrade = 1.5 }},
		{"risk zero", func(c *Config) { c.Risk.RiskPerTrade = 0 }},
		{"negative max open", func(c *Config) { c.Risk.MaxOpenTrades = -1 }},
		{"negative stop", func(c *Config) { c.Exit.StopLossPct = -0.01 }},
		{"bad duration", func(c *Config) { c.Engine.TickInterval = "sixty seconds" }},
		{"sqlite without path", func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }},
		{"unknown journal", func(c *Config) { c.Journal.Type = "postgres" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Default().Validate())
}

func TestDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 30*time.Second, Duration("30s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("garbage", time.Minute))
}

func TestDate(t *testing.T) {
	t.Parallel()

	d, err := Date("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = Date("2024-03-01T12:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 12, d.Hour())

	_, err = Date("March 1st")
	assert.Error(t, err)
}
