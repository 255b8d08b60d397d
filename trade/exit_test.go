package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/tradebot/strategy"
)

var exitRules = ExitRules{
	StopLossPct:   0.02,
	TakeProfitPct: 0.04,
	MaxHold:       4 * time.Hour,
}

func openLong(entry float64, at time.Time) Trade {
	return Trade{
		Instrument: "EUR_USD",
		Direction:  strategy.Long,
		EntryPrice: entry,
		EntryTime:  at,
		Status:     Open,
	}
}

func TestEvaluateExitLong(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tr := openLong(100, t0)

	// Inside both thresholds: hold.
	reason, hit := EvaluateExit(tr, 101, t0.Add(time.Hour), exitRules)
	assert.False(t, hit, "unexpected exit %s", reason)

	// At or below 98: stop-loss.
	reason, hit = EvaluateExit(tr, 98, t0.Add(2*time.Hour), exitRules)
	assert.True(t, hit)
	assert.Equal(t, ExitStopLoss, reason)

	// At or above 104: take-profit.
	reason, hit = EvaluateExit(tr, 104, t0.Add(2*time.Hour), exitRules)
	assert.True(t, hit)
	assert.Equal(t, ExitTakeProfit, reason)
}

func TestEvaluateExitShort(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tr := openLong(100, t0)
	tr.Direction = strategy.Short

	reason, hit := EvaluateExit(tr, 102, t0.Add(time.Hour), exitRules)
	assert.True(t, hit)
	assert.Equal(t, ExitStopLoss, reason)

	reason, hit = EvaluateExit(tr, 96, t0.Add(time.Hour), exitRules)
	assert.True(t, hit)
	assert.Equal(t, ExitTakeProfit, reason)
}

func TestEvaluateExitMaxHold(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tr := openLong(100, t0)

	_, hit := EvaluateExit(tr, 100.5, t0.Add(3*time.Hour), exitRules)
	assert.False(t, hit)

	reason, hit := EvaluateExit(tr, 100.5, t0.Add(4*time.Hour), exitRules)
	assert.True(t, hit)
	assert.Equal(t, ExitMaxHold, reason)
}

// Stop-loss outranks every other condition even when take-profit or the hold
// cap would also fire.
func TestEvaluateExitPriority(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tr := openLong(100, t0)

	reason, hit := EvaluateExit(tr, 98, t0.Add(5*time.Hour), exitRules)
	assert.True(t, hit)
	assert.Equal(t, ExitStopLoss, reason)
}

func TestEvaluateExitDisabledRules(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tr := openLong(100, t0)

	_, hit := EvaluateExit(tr, 1, t0.Add(100*time.Hour), ExitRules{})
	assert.False(t, hit, "zeroed rules must never trigger an exit")
}
