package backtest

import (
	"math"

	"github.com/rustyeddy/tradebot/journal"
	"github.com/rustyeddy/tradebot/trade"
)

// Metrics summarizes a backtest run. Edge conventions: a run with no trades
// reports zero across the board; ProfitFactor is +Inf when trades exist but
// none lost. No metric is ever NaN.
type Metrics struct {
	Sharpe       float64
	Sortino      float64
	MaxDrawdown  float64
	WinRate      float64
	ProfitFactor float64
	TotalReturn  float64

	Trades int
	AvgPL  float64
}

// Compute derives all metrics from the closed trade list and equity curve.
// Returns are percentage changes of the equity curve; Sharpe and Sortino are
// annualized by sqrt(periodsPerYear).
func Compute(trades []trade.Trade, equity []journal.EquitySnapshot, periodsPerYear float64) Metrics {
	var m Metrics
	m.Trades = len(trades)

	if len(trades) > 0 {
		var wins int
		var grossProfit, grossLoss, total float64
		for _, t := range trades {
			total += t.Profit
			switch {
			case t.Profit > 0:
				wins++
				grossProfit += t.Profit
			case t.Profit < 0:
				grossLoss += -t.Profit
			}
		}
		m.WinRate = float64(wins) / float64(len(trades))
		m.AvgPL = total / float64(len(trades))
		if grossLoss > 0 {
			m.ProfitFactor = grossProfit / grossLoss
		} else {
			m.ProfitFactor = math.Inf(1)
		}
	}

	if len(equity) < 2 {
		return m
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, equity[i].Equity/prev-1)
	}

	mean := meanOf(returns)
	if sd := stdev(returns, mean); sd > 0 {
		m.Sharpe = math.Sqrt(periodsPerYear) * mean / sd
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) > 0 {
		if sd := stdev(downside, meanOf(downside)); sd > 0 {
			m.Sortino = math.Sqrt(periodsPerYear) * mean / sd
		}
	}

	// Max drawdown over the cumulative-return curve: min(cum/peak - 1).
	cum := 1.0
	peak := 1.0
	for _, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		if dd := cum/peak - 1; dd < m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}

	if initial := equity[0].Equity; initial != 0 {
		m.TotalReturn = (equity[len(equity)-1].Equity - initial) / initial
	}

	return m
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
