// Package broker defines the external collaborator interfaces the trading
// core consumes: market data, order placement, and streaming updates. The
// core never depends on a concrete venue.
package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/strategy"
)

// MarketData serves historical candles and spot prices.
type MarketData interface {
	GetCandles(ctx context.Context, instrument string, interval time.Duration, from, to time.Time) ([]market.Candle, error)
	GetCurrentPrices(ctx context.Context, instruments []string) (map[string]float64, error)
}

// Update is one incremental message from a subscription feed: a price tick,
// a candle, or both.
type Update struct {
	Price  *market.Price
	Candle *market.Candle
	// Instrument for candle updates (market.Candle carries no key).
	Instrument string
}

// Stream delivers incremental price/candle updates until ctx is canceled.
type Stream interface {
	Subscribe(ctx context.Context, instruments []string) (<-chan Update, error)
}

// OrderRequest asks the venue to fill a signal-derived order.
type OrderRequest struct {
	Instrument string
	Direction  strategy.Direction
	Quantity   float64
	Kind       strategy.OrderKind
	LimitPrice *float64
}

// Fill is the executed result of an order placement attempt. Quantity zero
// means the venue reported no execution.
type Fill struct {
	Instrument string
	Price      float64
	Quantity   float64
	Time       time.Time
}

// Executed reports whether the fill carries a real execution.
func (f Fill) Executed() bool { return f.Quantity > 0 }

// OrderPlacer places and unwinds orders. Implementations must be safe to
// retry on transient failure and must never double-fill on the caller's
// behalf.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (Fill, error)
	// ClosePosition unwinds quantity units of the instrument at market.
	ClosePosition(ctx context.Context, instrument string, quantity float64) (Fill, error)
}
