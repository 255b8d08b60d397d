package trade

import (
	"time"

	"github.com/rustyeddy/tradebot/strategy"
)

// ExitReason names why a trade closed.
type ExitReason string

const (
	ExitNone       ExitReason = ""
	ExitStopLoss   ExitReason = "StopLoss"
	ExitTakeProfit ExitReason = "TakeProfit"
	ExitMaxHold    ExitReason = "MaxHold"
	ExitShutdown   ExitReason = "Shutdown"
	ExitEndOfData  ExitReason = "EndOfData"
	ExitManual     ExitReason = "Manual"
)

// ExitRules are the percentage-of-entry exit thresholds plus a holding-time
// cap. A zero field disables that condition.
type ExitRules struct {
	StopLossPct   float64       // e.g. 0.02
	TakeProfitPct float64       // e.g. 0.04
	MaxHold       time.Duration // e.g. 4h
}

// EvaluateExit decides whether the trade should close at the given price and
// time. Conditions are checked in fixed priority order: stop-loss, then
// take-profit, then holding duration. The first match wins regardless of
// magnitude.
func EvaluateExit(t Trade, price float64, now time.Time, rules ExitRules) (ExitReason, bool) {
	long := t.Direction == strategy.Long

	if rules.StopLossPct > 0 {
		threshold := t.EntryPrice * rules.StopLossPct
		if long && price <= t.EntryPrice-threshold {
			return ExitStopLoss, true
		}
		if !long && price >= t.EntryPrice+threshold {
			return ExitStopLoss, true
		}
	}

	if rules.TakeProfitPct > 0 {
		threshold := t.EntryPrice * rules.TakeProfitPct
		if long && price >= t.EntryPrice+threshold {
			return ExitTakeProfit, true
		}
		if !long && price <= t.EntryPrice-threshold {
			return ExitTakeProfit, true
		}
	}

	if rules.MaxHold > 0 && now.Sub(t.EntryTime) >= rules.MaxHold {
		return ExitMaxHold, true
	}

	return ExitNone, false
}
