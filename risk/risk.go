// Package risk approves or rejects proposed signals against exposure limits.
// A rejection is a normal control-flow outcome, not an error.
package risk

import (
	"fmt"

	"github.com/rustyeddy/tradebot/strategy"
)

type Policy struct {
	// RiskPerTrade is the fraction of available balance a single trade may
	// commit, e.g. 0.01.
	RiskPerTrade float64

	// MaxOpenTrades caps concurrently open trades across all instruments.
	MaxOpenTrades int

	// MinUnits is the smallest tradable size; a clamped size below it is a
	// rejection, not a partial trade. Zero means 1.
	MinUnits float64
}

// Snapshot is the portfolio state the gate evaluates against. The caller
// assembles it so the gate stays a pure function.
type Snapshot struct {
	Available    float64 // available balance in account currency
	OpenTrades   int     // currently open trades, all instruments
	HasOpenTrade bool    // an open trade already exists for this instrument
	Price        float64 // current price of the signal's instrument
}

// Rejection codes.
const (
	CodeInstrumentBusy = "INSTRUMENT_BUSY"
	CodeTooManyOpen    = "TOO_MANY_OPEN_TRADES"
	CodeSizeTooSmall   = "SIZE_TOO_SMALL"
	CodeNoPrice        = "NO_PRICE"
)

type Decision struct {
	Allowed bool
	// Size is the approved quantity, clamped to the risk budget.
	Size float64
	Code string
	Msg  string
}

func reject(code, format string, args ...any) Decision {
	return Decision{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Check evaluates one signal. The requested size is clamped to the smaller
// of the signal's size and the risk-budget-implied size
// (available × RiskPerTrade / price).
func Check(sig strategy.Signal, snap Snapshot, pol Policy) Decision {
	if snap.HasOpenTrade {
		return reject(CodeInstrumentBusy, "open trade exists for %s", sig.Instrument)
	}
	if pol.MaxOpenTrades > 0 && snap.OpenTrades >= pol.MaxOpenTrades {
		return reject(CodeTooManyOpen, "open trades %d >= max %d", snap.OpenTrades, pol.MaxOpenTrades)
	}
	if snap.Price <= 0 {
		return reject(CodeNoPrice, "no current price for %s", sig.Instrument)
	}

	budget := snap.Available * pol.RiskPerTrade
	size := sig.Size
	if implied := budget / snap.Price; implied < size {
		size = implied
	}

	minUnits := pol.MinUnits
	if minUnits <= 0 {
		minUnits = 1
	}
	// Whole tradable units only.
	size = float64(int64(size/minUnits)) * minUnits

	if size < minUnits {
		return reject(CodeSizeTooSmall,
			"clamped size %.4f below minimum %.4f (budget %.2f at price %.4f)",
			size, minUnits, budget, snap.Price)
	}

	return Decision{Allowed: true, Size: size}
}
