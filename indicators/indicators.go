// Package indicators provides technical analysis building blocks shared by
// strategies.
package indicators

import "github.com/rustyeddy/tradebot/market"

// Indicator computes a single streaming value from closed candles.
// It is deterministic and safe to use in live runs and backtests alike.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "ATR(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed candle.
	Update(c market.Candle)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current indicator value; callers must check Ready().
	Value() float64
}
