package engine

import (
	"context"
	"fmt"

	"github.com/rustyeddy/tradebot/strategy"
	"github.com/rustyeddy/tradebot/trade"
)

// ManualOrder converts a cash amount into units at the current price and
// routes the resulting signal through the normal risk/lifecycle path. Meant
// for operator-driven entries and testing.
func (e *Engine) ManualOrder(ctx context.Context, instrument string, dir strategy.Direction, amount float64, kind strategy.OrderKind, limit *float64) (trade.Trade, error) {
	price, ok := e.opts.Cache.Price(instrument)
	if !ok || price.Value <= 0 {
		return trade.Trade{}, fmt.Errorf("manual order: no price for %q", instrument)
	}

	units := float64(int64(amount / price.Value))
	if units < 1 {
		return trade.Trade{}, fmt.Errorf("manual order: amount %.2f buys no whole unit at %.4f", amount, price.Value)
	}

	sig := strategy.Signal{
		Instrument: instrument,
		Direction:  dir,
		Size:       units,
		Kind:       kind,
		LimitPrice: limit,
		Strength:   1,
		Strategy:   "manual",
	}
	// One open trade per instrument, so remembering the current id is enough
	// to tell a fresh fill apart from a trade that was already there.
	var prevID string
	for _, t := range e.mgr.OpenTrades() {
		if t.Instrument == instrument {
			prevID = t.ID
		}
	}

	if err := e.processSignal(ctx, sig); err != nil {
		return trade.Trade{}, err
	}

	for _, t := range e.mgr.OpenTrades() {
		if t.Instrument == instrument && t.ID != prevID {
			return t, nil
		}
	}
	return trade.Trade{}, fmt.Errorf("manual order: signal for %q was not executed", instrument)
}
