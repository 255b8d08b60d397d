package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/tradebot/strategy"
)

func sig(size float64) strategy.Signal {
	return strategy.Signal{
		Instrument: "EUR_USD",
		Direction:  strategy.Long,
		Size:       size,
		Strategy:   "test",
	}
}

func TestCheckClampsToRiskBudget(t *testing.T) {
	t.Parallel()

	// 1% of 10k at price 50 buys 2 units, far less than the 1000 requested.
	d := Check(sig(1000), Snapshot{Available: 10000, Price: 50}, Policy{RiskPerTrade: 0.01})
	assert.True(t, d.Allowed)
	assert.Equal(t, 2.0, d.Size)
}

func TestCheckRequestBelowBudget(t *testing.T) {
	t.Parallel()

	// Budget allows 100 units; the smaller requested size wins.
	d := Check(sig(10), Snapshot{Available: 10000, Price: 1}, Policy{RiskPerTrade: 0.01})
	assert.True(t, d.Allowed)
	assert.Equal(t, 10.0, d.Size)
}

func TestCheckInstrumentBusy(t *testing.T) {
	t.Parallel()

	d := Check(sig(10), Snapshot{Available: 10000, Price: 1, HasOpenTrade: true}, Policy{RiskPerTrade: 0.01})
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeInstrumentBusy, d.Code)
}

func TestCheckTooManyOpenTrades(t *testing.T) {
	t.Parallel()

	d := Check(sig(10), Snapshot{Available: 10000, Price: 1, OpenTrades: 3},
		Policy{RiskPerTrade: 0.01, MaxOpenTrades: 3})
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeTooManyOpen, d.Code)
}

func TestCheckNoPrice(t *testing.T) {
	t.Parallel()

	d := Check(sig(10), Snapshot{Available: 10000}, Policy{RiskPerTrade: 0.01})
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeNoPrice, d.Code)
}

func TestCheckSizeTooSmall(t *testing.T) {
	t.Parallel()

	// Budget of $1 at price 50 floors to zero units.
	d := Check(sig(1000), Snapshot{Available: 100, Price: 50}, Policy{RiskPerTrade: 0.01})
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeSizeTooSmall, d.Code)
}

func TestCheckMonotoneInRiskPerTrade(t *testing.T) {
	t.Parallel()

	snap := Snapshot{Available: 10000, Price: 7}
	var prev float64
	for _, rpt := range []float64{0.005, 0.01, 0.02, 0.05, 0.1} {
		d := Check(sig(1e9), snap, Policy{RiskPerTrade: rpt})
		if d.Allowed {
			assert.GreaterOrEqual(t, d.Size, prev,
				"approved size shrank when risk_per_trade grew to %v", rpt)
			prev = d.Size
		}
	}
}

func TestCheckMinUnits(t *testing.T) {
	t.Parallel()

	// Budget buys 25 units but lots trade in tens.
	d := Check(sig(1000), Snapshot{Available: 10000, Price: 4},
		Policy{RiskPerTrade: 0.01, MinUnits: 10})
	assert.True(t, d.Allowed)
	assert.Equal(t, 20.0, d.Size)
}
