// Package sim is a deterministic in-process venue: orders fill at the last
// candle close known to the simulated clock, with no slippage. It backs the
// backtester and paper-trading runs.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/market"
)

type Broker struct {
	mu    sync.Mutex
	cache *market.Cache
	now   time.Time
}

var (
	_ broker.MarketData  = (*Broker)(nil)
	_ broker.OrderPlacer = (*Broker)(nil)
)

func New(cache *market.Cache) *Broker {
	return &Broker{cache: cache}
}

// SetNow advances the simulated clock. Fills and price lookups never see
// candles newer than this.
func (b *Broker) SetNow(t time.Time) {
	b.mu.Lock()
	b.now = t
	b.mu.Unlock()
}

func (b *Broker) Now() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now
}

// fillTime stamps fills with the simulated clock, or wall time in
// live/paper mode.
func (b *Broker) fillTime() time.Time {
	if now := b.Now(); !now.IsZero() {
		return now
	}
	return time.Now().UTC()
}

func (b *Broker) GetCandles(_ context.Context, instrument string, _ time.Duration, from, to time.Time) ([]market.Candle, error) {
	var out []market.Candle
	for _, c := range b.visible(instrument) {
		if !from.IsZero() && c.Time.Before(from) {
			continue
		}
		if !to.IsZero() && c.Time.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// visible returns the candles the simulated clock may see. A zero clock
// means live/paper mode: everything in the cache is fair game.
func (b *Broker) visible(instrument string) []market.Candle {
	now := b.Now()
	if now.IsZero() {
		return b.cache.Candles(instrument)
	}
	return b.cache.CandlesThrough(instrument, now)
}

func (b *Broker) GetCurrentPrices(_ context.Context, instruments []string) (map[string]float64, error) {
	out := make(map[string]float64, len(instruments))
	for _, in := range instruments {
		p, err := b.lastClose(in)
		if err != nil {
			continue
		}
		out[in] = p
	}
	return out, nil
}

// PlaceOrder fills market orders at the last close. Limit orders fill only
// when the limit is marketable against the last close; otherwise the fill
// reports no execution (Quantity 0) and the caller drops the signal.
func (b *Broker) PlaceOrder(_ context.Context, req broker.OrderRequest) (broker.Fill, error) {
	price, err := b.lastClose(req.Instrument)
	if err != nil {
		return broker.Fill{}, err
	}

	if req.LimitPrice != nil {
		lim := *req.LimitPrice
		marketable := (req.Direction > 0 && price <= lim) || (req.Direction < 0 && price >= lim)
		if !marketable {
			return broker.Fill{Instrument: req.Instrument, Time: b.fillTime()}, nil
		}
	}

	return broker.Fill{
		Instrument: req.Instrument,
		Price:      price,
		Quantity:   req.Quantity,
		Time:       b.fillTime(),
	}, nil
}

func (b *Broker) ClosePosition(_ context.Context, instrument string, quantity float64) (broker.Fill, error) {
	price, err := b.lastClose(instrument)
	if err != nil {
		return broker.Fill{}, err
	}
	return broker.Fill{
		Instrument: instrument,
		Price:      price,
		Quantity:   quantity,
		Time:       b.fillTime(),
	}, nil
}

func (b *Broker) lastClose(instrument string) (float64, error) {
	candles := b.visible(instrument)
	if len(candles) == 0 {
		// In live/paper mode a tick may arrive before the first candle.
		if b.Now().IsZero() {
			if p, ok := b.cache.Price(instrument); ok && p.Value > 0 {
				return p.Value, nil
			}
		}
		return 0, fmt.Errorf("sim: no price for %q at %s", instrument, b.Now())
	}
	return candles[len(candles)-1].Close, nil
}
