// Package engine runs the live control loop: poll strategies, route signals
// through the risk gate, execute approved orders, and monitor open trades
// for exit conditions once per tick.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/internal/metrics"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/portfolio"
	"github.com/rustyeddy/tradebot/risk"
	"github.com/rustyeddy/tradebot/strategy"
	"github.com/rustyeddy/tradebot/trade"
)

type Options struct {
	TickInterval time.Duration // default 60s
	OrderTimeout time.Duration // default 10s
	Currency     string        // account currency, default USD

	RiskPolicy risk.Policy
	ExitRules  trade.ExitRules

	// Retry bounds for transient order-placement failures.
	OrderAttempts int           // default 3
	OrderBackoff  time.Duration // default 500ms

	Strategies []strategy.Strategy
	Cache      *market.Cache
	Orders     broker.OrderPlacer
	Portfolio  *portfolio.Portfolio
	Journal    journal.Journal
	Log        zerolog.Logger
}

type Engine struct {
	opts Options
	mgr  *trade.Manager
	log  zerolog.Logger
}

func New(opts Options) (*Engine, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("engine: Cache is required")
	}
	if opts.Orders == nil {
		return nil, fmt.Errorf("engine: Orders is required")
	}
	if opts.Portfolio == nil {
		return nil, fmt.Errorf("engine: Portfolio is required")
	}
	if len(opts.Strategies) == 0 {
		return nil, fmt.Errorf("engine: at least one strategy is required")
	}

	if opts.TickInterval <= 0 {
		opts.TickInterval = 60 * time.Second
	}
	if opts.OrderTimeout <= 0 {
		opts.OrderTimeout = 10 * time.Second
	}
	if opts.OrderAttempts <= 0 {
		opts.OrderAttempts = 3
	}
	if opts.OrderBackoff <= 0 {
		opts.OrderBackoff = 500 * time.Millisecond
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}

	return &Engine{
		opts: opts,
		mgr:  trade.NewManager(opts.Portfolio, opts.Journal, opts.Currency),
		log:  opts.Log,
	}, nil
}

// Manager exposes the lifecycle state machine, mainly for inspection.
func (e *Engine) Manager() *trade.Manager { return e.mgr }

// Run loops one Tick per interval until ctx is canceled, then drains open
// trades before returning.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().
		Dur("tick", e.opts.TickInterval).
		Int("strategies", len(e.opts.Strategies)).
		Msg("engine started")

	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.Shutdown(context.Background())
		case now := <-ticker.C:
			e.Tick(ctx, now.UTC())
		}
	}
}

// Tick runs one full pass: signals, exits, performance. Failures inside a
// single strategy or trade are logged and skipped; they never abort the
// tick.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	e.runStrategies(ctx)
	e.monitorTrades(ctx, now)
	e.snapshotEquity(now)
	metrics.OpenTrades.Set(float64(e.mgr.OpenCount()))
}

// runStrategies fans signal generation out across strategies, then applies
// the resulting signals sequentially. Per-instrument serialization is the
// manager's job; signal generation itself is read-only against the cache.
func (e *Engine) runStrategies(ctx context.Context) {
	instruments := e.opts.Cache.Instruments()

	var wg sync.WaitGroup
	out := make(chan strategy.Signal, 64)

	for _, s := range e.opts.Strategies {
		wg.Add(1)
		go func(s strategy.Strategy) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					metrics.TickErrors.WithLabelValues("strategy").Inc()
					e.log.Error().Str("strategy", s.Name()).Any("panic", r).
						Msg("strategy panicked, skipping this tick")
				}
			}()

			for _, in := range instruments {
				sigs, err := s.GenerateSignals(in, e.opts.Cache.Candles(in))
				if err != nil {
					metrics.TickErrors.WithLabelValues("strategy").Inc()
					e.log.Error().Err(err).
						Str("strategy", s.Name()).Str("instrument", in).
						Msg("signal generation failed")
					continue
				}
				for _, sig := range sigs {
					metrics.SignalsTotal.WithLabelValues(s.Name(), in).Inc()
					out <- sig
				}
			}
		}(s)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	for sig := range out {
		if err := e.processSignal(ctx, sig); err != nil {
			metrics.TickErrors.WithLabelValues("order").Inc()
			e.log.Error().Err(err).
				Str("strategy", sig.Strategy).Str("instrument", sig.Instrument).
				Msg("signal processing failed")
		}
	}
}

func (e *Engine) processSignal(ctx context.Context, sig strategy.Signal) error {
	if err := sig.Validate(); err != nil {
		e.log.Warn().Err(err).Str("strategy", sig.Strategy).Msg("dropping malformed signal")
		return nil
	}

	price, ok := e.opts.Cache.Price(sig.Instrument)
	snap := risk.Snapshot{
		Available:    e.opts.Portfolio.Balance(e.opts.Currency).Available,
		OpenTrades:   e.mgr.OpenCount(),
		HasOpenTrade: e.mgr.HasOpen(sig.Instrument),
	}
	if ok {
		snap.Price = price.Value
	}

	decision := risk.Check(sig, snap, e.opts.RiskPolicy)
	if !decision.Allowed {
		metrics.RejectionsTotal.WithLabelValues(decision.Code).Inc()
		e.log.Debug().
			Str("instrument", sig.Instrument).Str("strategy", sig.Strategy).
			Str("code", decision.Code).Str("reason", decision.Msg).
			Msg("risk gate rejected signal")
		return nil
	}

	fill, err := e.placeOrder(ctx, broker.OrderRequest{
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Quantity:   decision.Size,
		Kind:       sig.Kind,
		LimitPrice: sig.LimitPrice,
	})
	if err != nil {
		// Timed-out or failed placement is treated as a rejection of this
		// signal, not retried beyond the bounded backoff.
		return fmt.Errorf("place order: %w", err)
	}
	if !fill.Executed() {
		e.log.Debug().Str("instrument", sig.Instrument).Msg("order not filled, dropping signal")
		return nil
	}

	t, err := e.mgr.Open(sig, fill)
	if err != nil {
		return fmt.Errorf("open trade: %w", err)
	}

	metrics.TradesOpened.WithLabelValues(t.Instrument, t.Direction.String()).Inc()
	e.log.Info().
		Str("trade_id", t.ID).Str("instrument", t.Instrument).
		Str("direction", t.Direction.String()).Str("strategy", t.Strategy).
		Float64("size", t.ExecutedSize).Float64("price", t.EntryPrice).
		Msg("trade opened")
	return nil
}

func (e *Engine) monitorTrades(ctx context.Context, now time.Time) {
	for _, t := range e.mgr.OpenTrades() {
		price, ok := e.opts.Cache.Price(t.Instrument)
		if !ok {
			continue
		}

		reason, exit := trade.EvaluateExit(t, price.Value, now, e.opts.ExitRules)
		if !exit {
			continue
		}

		if err := e.closeTrade(ctx, t, reason); err != nil {
			metrics.TickErrors.WithLabelValues("exit").Inc()
			e.log.Error().Err(err).
				Str("trade_id", t.ID).Str("instrument", t.Instrument).
				Msg("trade close failed, will retry next tick")
		}
	}
}

func (e *Engine) closeTrade(ctx context.Context, t trade.Trade, reason trade.ExitReason) error {
	cctx, cancel := context.WithTimeout(ctx, e.opts.OrderTimeout)
	defer cancel()

	var fill broker.Fill
	err := broker.Retry(cctx, e.opts.OrderAttempts, e.opts.OrderBackoff, func() error {
		var err error
		fill, err = e.opts.Orders.ClosePosition(cctx, t.Instrument, t.ExecutedSize)
		return err
	})
	if err != nil {
		return err
	}

	closed, err := e.mgr.Close(t.ID, fill, reason)
	if err != nil {
		return err
	}

	metrics.TradesClosed.WithLabelValues(closed.Instrument, string(reason)).Inc()
	e.log.Info().
		Str("trade_id", closed.ID).Str("instrument", closed.Instrument).
		Str("reason", string(reason)).Float64("profit", closed.Profit).
		Msg("trade closed")
	return nil
}

func (e *Engine) placeOrder(ctx context.Context, req broker.OrderRequest) (broker.Fill, error) {
	octx, cancel := context.WithTimeout(ctx, e.opts.OrderTimeout)
	defer cancel()

	var fill broker.Fill
	err := broker.Retry(octx, e.opts.OrderAttempts, e.opts.OrderBackoff, func() error {
		var err error
		fill, err = e.opts.Orders.PlaceOrder(octx, req)
		return err
	})
	return fill, err
}

func (e *Engine) snapshotEquity(now time.Time) {
	if e.opts.Journal == nil {
		return
	}

	prices := make(map[string]float64)
	for _, in := range e.opts.Cache.Instruments() {
		if p, ok := e.opts.Cache.Price(in); ok {
			prices[in] = p.Value
		}
	}

	err := e.opts.Journal.RecordEquity(journal.EquitySnapshot{
		Time:    now,
		Balance: e.opts.Portfolio.Cash(),
		Equity:  e.opts.Portfolio.Equity(prices),
	})
	if err != nil {
		e.log.Error().Err(err).Msg("equity snapshot failed")
	}
}

// Performance returns the running totals maintained by the manager.
func (e *Engine) Performance() trade.Performance { return e.mgr.Performance() }

// Shutdown closes every open trade best-effort before returning. This is a
// blocking drain, not a hard kill.
func (e *Engine) Shutdown(ctx context.Context) error {
	open := e.mgr.OpenTrades()
	e.log.Info().Int("open_trades", len(open)).Msg("engine shutting down")

	var firstErr error
	for _, t := range open {
		if err := e.closeTrade(ctx, t, trade.ExitShutdown); err != nil {
			e.log.Error().Err(err).Str("trade_id", t.ID).Msg("shutdown close failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
