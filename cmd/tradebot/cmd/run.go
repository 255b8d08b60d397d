package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/broker/oanda"
	"github.com/rustyeddy/tradebot/broker/sim"
	"github.com/rustyeddy/tradebot/broker/stream"
	"github.com/rustyeddy/tradebot/config"
	"github.com/rustyeddy/tradebot/engine"
	"github.com/rustyeddy/tradebot/internal/metrics"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/portfolio"
	"github.com/rustyeddy/tradebot/risk"
	"github.com/rustyeddy/tradebot/strategy"
	"github.com/rustyeddy/tradebot/trade"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live trading loop against a market data feed",
	Long: `Run starts the decision loop: every tick it polls the configured
strategies, routes signals through the risk gate, and monitors open trades
for exit conditions. Ctrl-C drains open trades before exiting.

Orders go to the venue selected by broker.venue: the built-in paper venue
fills against feed prices, the oanda venue places real orders (set
OANDA_API_TOKEN in the environment).`,
	RunE: runLive,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	if cfg.Feed.URL == "" || len(cfg.Feed.Instruments) == 0 {
		return fmt.Errorf("feed.url and feed.instruments are required for live runs")
	}

	var jnl journal.Journal
	switch cfg.Journal.Type {
	case "sqlite":
		jnl, err = journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
	default:
		jnl = journal.NewMemory()
	}
	defer jnl.Close()

	var strats []strategy.Strategy
	for _, name := range cfg.Engine.Strategies {
		s := strategy.New(name)
		if s == nil {
			return fmt.Errorf("unknown strategy %q (registered: %v)", name, strategy.Names())
		}
		strats = append(strats, s)
	}

	cache := market.NewCache()
	pf := portfolio.New(cfg.Account.Currency, cfg.Account.Balance)

	var orders broker.OrderPlacer
	switch cfg.Broker.Venue {
	case "oanda":
		token := os.Getenv("OANDA_API_TOKEN")
		if token == "" {
			return fmt.Errorf("OANDA_API_TOKEN must be set for the oanda venue")
		}
		orders = oanda.NewClient(token, cfg.Broker.AccountID, cfg.Broker.Practice)
		log.Info().Str("account", cfg.Broker.AccountID).
			Bool("practice", cfg.Broker.Practice).Msg("using oanda venue")
	default:
		orders = sim.New(cache)
	}

	eng, err := engine.New(engine.Options{
		TickInterval:  config.Duration(cfg.Engine.TickInterval, 60*time.Second),
		OrderTimeout:  config.Duration(cfg.Engine.OrderTimeout, 10*time.Second),
		OrderAttempts: cfg.Engine.OrderAttempts,
		Currency:      cfg.Account.Currency,
		RiskPolicy: risk.Policy{
			RiskPerTrade:  cfg.Risk.RiskPerTrade,
			MaxOpenTrades: cfg.Risk.MaxOpenTrades,
			MinUnits:      cfg.Risk.MinUnits,
		},
		ExitRules: trade.ExitRules{
			StopLossPct:   cfg.Exit.StopLossPct,
			TakeProfitPct: cfg.Exit.TakeProfitPct,
			MaxHold:       config.Duration(cfg.Exit.MaxHold, 4*time.Hour),
		},
		Strategies: strats,
		Cache:      cache,
		Orders:     orders,
		Portfolio:  pf,
		Journal:    jnl,
		Log:        log,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updates, err := stream.New(cfg.Feed.URL, log).Subscribe(ctx, cfg.Feed.Instruments)
	if err != nil {
		return fmt.Errorf("subscribe feed: %w", err)
	}
	go stream.Pump(updates, cache, log)

	return eng.Run(ctx)
}
