// Package backtest replays the live trade lifecycle over historical candles
// with a deterministic fill model and computes performance metrics from the
// resulting trades and equity curve.
package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/broker/sim"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/portfolio"
	"github.com/rustyeddy/tradebot/risk"
	"github.com/rustyeddy/tradebot/strategy"
	"github.com/rustyeddy/tradebot/trade"
)

type Config struct {
	Instruments []string
	From, To    time.Time

	// Step is the simulation clock increment; default one day. Interval is
	// the candle granularity requested from the data source; default 1h.
	Step     time.Duration
	Interval time.Duration

	InitialBalance float64 // default 10000
	Currency       string  // default USD

	// CommissionBPS is charged on notional at entry and exit, e.g. 5 = 0.05%.
	CommissionBPS float64

	RiskPolicy risk.Policy
	ExitRules  trade.ExitRules

	// Warmup is the minimum candle count before a strategy is consulted.
	Warmup int // default 20

	// CloseAtEnd closes remaining positions on the last step.
	CloseAtEnd bool

	// PeriodsPerYear annualizes Sharpe/Sortino; default 252.
	PeriodsPerYear float64

	Log zerolog.Logger
}

// NoDataError: the requested window has no historical coverage for any
// configured instrument. Fatal to the run, never silently zeroed metrics.
type NoDataError struct {
	Instruments []string
	From, To    time.Time
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no historical data for %s between %s and %s",
		strings.Join(e.Instruments, ","),
		e.From.Format(time.RFC3339), e.To.Format(time.RFC3339))
}

type Result struct {
	Metrics    Metrics
	Trades     []trade.Trade
	Equity     []journal.EquitySnapshot
	Commission float64

	Start, End time.Time
}

type Backtester struct {
	strat strategy.Strategy
	data  broker.MarketData
	cfg   Config
}

func New(strat strategy.Strategy, data broker.MarketData, cfg Config) *Backtester {
	if cfg.Step <= 0 {
		cfg.Step = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = 10_000
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Warmup <= 0 {
		cfg.Warmup = 20
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = 252
	}
	return &Backtester{strat: strat, data: data, cfg: cfg}
}

// Run executes the simulation. Each run owns a fresh Portfolio, so parallel
// runs never share mutable state.
func (b *Backtester) Run(ctx context.Context) (Result, error) {
	cfg := b.cfg

	cache := market.NewCache()
	cache.SetHistory(1 << 20) // retain the full window; no live trimming

	loaded := 0
	for _, in := range cfg.Instruments {
		candles, err := b.data.GetCandles(ctx, in, cfg.Interval, cfg.From, cfg.To)
		if err != nil {
			cfg.Log.Warn().Err(err).Str("instrument", in).Msg("candle load failed")
			continue
		}
		for _, c := range candles {
			if err := cache.Append(in, c); err != nil {
				return Result{}, fmt.Errorf("backtest: bad candle series for %s: %w", in, err)
			}
		}
		if len(candles) > 0 {
			loaded++
		}
	}
	if loaded == 0 {
		return Result{}, &NoDataError{Instruments: cfg.Instruments, From: cfg.From, To: cfg.To}
	}

	pf := portfolio.New(cfg.Currency, cfg.InitialBalance)
	jnl := journal.NewMemory()
	venue := sim.New(cache)
	mgr := trade.NewManager(pf, jnl, cfg.Currency)

	var commission float64

	for clock := cfg.From; !clock.After(cfg.To); clock = clock.Add(cfg.Step) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		venue.SetNow(clock)

		// Entries: only candles at or before the simulated clock are visible.
		for _, in := range cfg.Instruments {
			visible := cache.CandlesThrough(in, clock)
			if len(visible) < cfg.Warmup {
				continue
			}

			sigs, err := b.strat.GenerateSignals(in, visible)
			if err != nil {
				cfg.Log.Warn().Err(err).Str("instrument", in).
					Str("strategy", b.strat.Name()).Msg("signal generation failed")
				continue
			}

			for _, sig := range sigs {
				c, err := b.execute(ctx, venue, mgr, pf, sig)
				if err != nil {
					cfg.Log.Debug().Err(err).Str("instrument", in).Msg("signal skipped")
					continue
				}
				commission += c
			}
		}

		// Exits, same rules and priority as the live loop.
		for _, t := range mgr.OpenTrades() {
			prices, _ := venue.GetCurrentPrices(ctx, []string{t.Instrument})
			price, ok := prices[t.Instrument]
			if !ok {
				continue
			}

			reason, exit := trade.EvaluateExit(t, price, clock, cfg.ExitRules)
			if !exit {
				continue
			}

			c, err := b.close(ctx, venue, mgr, pf, t, reason)
			if err != nil {
				cfg.Log.Warn().Err(err).Str("trade_id", t.ID).Msg("close failed")
				continue
			}
			commission += c
		}

		prices, _ := venue.GetCurrentPrices(ctx, cfg.Instruments)
		_ = jnl.RecordEquity(journal.EquitySnapshot{
			Time:    clock,
			Balance: pf.Cash(),
			Equity:  pf.Equity(prices),
		})
	}

	if cfg.CloseAtEnd {
		for _, t := range mgr.OpenTrades() {
			c, err := b.close(ctx, venue, mgr, pf, t, trade.ExitEndOfData)
			if err != nil {
				cfg.Log.Warn().Err(err).Str("trade_id", t.ID).Msg("end-of-data close failed")
				continue
			}
			commission += c
		}
	}

	equity := jnl.Equity()
	closed := mgr.ClosedTrades()

	return Result{
		Metrics:    Compute(closed, equity, cfg.PeriodsPerYear),
		Trades:     mgr.History(),
		Equity:     equity,
		Commission: commission,
		Start:      cfg.From,
		End:        cfg.To,
	}, nil
}

// execute routes one signal through validation, the risk gate, and the sim
// venue. Returns the commission charged, zero when the signal was dropped.
func (b *Backtester) execute(ctx context.Context, venue *sim.Broker, mgr *trade.Manager, pf *portfolio.Portfolio, sig strategy.Signal) (float64, error) {
	if err := sig.Validate(); err != nil {
		return 0, err
	}

	prices, _ := venue.GetCurrentPrices(ctx, []string{sig.Instrument})
	snap := risk.Snapshot{
		Available:    pf.Balance(b.cfg.Currency).Available,
		OpenTrades:   mgr.OpenCount(),
		HasOpenTrade: mgr.HasOpen(sig.Instrument),
		Price:        prices[sig.Instrument],
	}

	decision := risk.Check(sig, snap, b.cfg.RiskPolicy)
	if !decision.Allowed {
		return 0, nil // normal outcome, not an error
	}

	fill, err := venue.PlaceOrder(ctx, broker.OrderRequest{
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Quantity:   decision.Size,
		Kind:       sig.Kind,
		LimitPrice: sig.LimitPrice,
	})
	if err != nil {
		return 0, err
	}
	if !fill.Executed() {
		return 0, nil
	}

	if _, err := mgr.Open(sig, fill); err != nil {
		return 0, err
	}
	return b.charge(pf, fill), nil
}

func (b *Backtester) close(ctx context.Context, venue *sim.Broker, mgr *trade.Manager, pf *portfolio.Portfolio, t trade.Trade, reason trade.ExitReason) (float64, error) {
	fill, err := venue.ClosePosition(ctx, t.Instrument, t.ExecutedSize)
	if err != nil {
		return 0, err
	}
	if _, err := mgr.Close(t.ID, fill, reason); err != nil {
		return 0, err
	}
	return b.charge(pf, fill), nil
}

// charge deducts the fixed basis-point commission on the fill's notional.
func (b *Backtester) charge(pf *portfolio.Portfolio, fill broker.Fill) float64 {
	if b.cfg.CommissionBPS <= 0 {
		return 0
	}
	c := fill.Price * fill.Quantity * b.cfg.CommissionBPS / 10_000
	pf.SettlePL(b.cfg.Currency, -c)
	return c
}
