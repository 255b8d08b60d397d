package optimize

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebot/backtest"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/risk"
	"github.com/rustyeddy/tradebot/strategy"
	"github.com/rustyeddy/tradebot/trade"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// risingData serves a flat-then-rising daily series: entries at 100 win long
// and lose short.
type risingData struct{}

func (risingData) GetCandles(_ context.Context, instrument string, _ time.Duration, from, to time.Time) ([]market.Candle, error) {
	closes := []float64{100, 100, 100, 100, 100, 104, 104, 104}
	var out []market.Candle
	for i, c := range closes {
		ts := day0.AddDate(0, 0, i)
		if ts.Before(from) || ts.After(to) {
			continue
		}
		out = append(out, market.Candle{
			Open: c, High: c, Low: c, Close: c, Time: ts, Complete: true,
		})
	}
	return out, nil
}

func (risingData) GetCurrentPrices(_ context.Context, instruments []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, in := range instruments {
		out[in] = 104
	}
	return out, nil
}

// dirStrategy trades once; the "dir" parameter picks the side, so exactly one
// grid point profits on the rising series.
type dirStrategy struct {
	dir   float64
	fired bool
}

func (s *dirStrategy) Name() string { return "dir" }

func (s *dirStrategy) GenerateSignals(instrument string, candles []market.Candle) ([]strategy.Signal, error) {
	if s.fired || len(candles) < 5 {
		return nil, nil
	}
	s.fired = true
	d := strategy.Short
	if s.dir > 0 {
		d = strategy.Long
	}
	return []strategy.Signal{{
		Instrument: instrument,
		Direction:  d,
		Size:       1000,
		Strategy:   s.Name(),
	}}, nil
}

func (s *dirStrategy) ParameterGrid() map[string][]float64 {
	return map[string][]float64{"dir": {0, 1}}
}

func (s *dirStrategy) SuggestParameters(t strategy.Trial) map[string]float64 {
	return map[string]float64{"dir": float64(t.SuggestInt("dir", 0, 1))}
}

func (s *dirStrategy) SetParameters(params map[string]float64) error {
	for name, v := range params {
		if name != "dir" {
			return fmt.Errorf("dir: unknown parameter %q", name)
		}
		s.dir = v
	}
	return nil
}

func testConfig(factory func() strategy.Strategy) Config {
	return Config{
		NewStrategy: factory,
		Data:        risingData{},
		Backtest: backtest.Config{
			Instruments:    []string{"EUR_USD"},
			From:           day0,
			To:             day0.AddDate(0, 0, 7),
			InitialBalance: 10000,
			Warmup:         2,
			RiskPolicy:     risk.Policy{RiskPerTrade: 0.1},
			ExitRules:      trade.ExitRules{StopLossPct: 0.02, TakeProfitPct: 0.04},
		},
		Workers: 2,
	}
}

func TestGridPicksBest(t *testing.T) {
	t.Parallel()

	best, err := Grid(context.Background(), testConfig(func() strategy.Strategy { return &dirStrategy{} }))
	require.NoError(t, err)
	assert.Equal(t, 1.0, best.Params["dir"])
	assert.Greater(t, best.Metric, 0.0)
}

func TestSearchReproducibleAndBudgeted(t *testing.T) {
	t.Parallel()

	var built int64
	cfg := testConfig(func() strategy.Strategy {
		atomic.AddInt64(&built, 1)
		return &dirStrategy{}
	})
	cfg.Trials = 16
	cfg.Seed = 1

	best, err := Search(context.Background(), cfg)
	require.NoError(t, err)
	require.Contains(t, best.Params, "dir")

	// Two constructions per trial: one for the suggestion, one evaluated.
	assert.Equal(t, int64(2*cfg.Trials), atomic.LoadInt64(&built))

	// Re-evaluating the winning parameters reproduces the reported metric.
	metric, err := objective(context.Background(), cfg, best.Params)
	require.NoError(t, err)
	assert.Equal(t, best.Metric, metric)

	// The winner is at least as good as always-short.
	short, err := objective(context.Background(), cfg, map[string]float64{"dir": 0})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, best.Metric, short)
}

func TestAllTrialsFailed(t *testing.T) {
	t.Parallel()

	cfg := testConfig(func() strategy.Strategy { return &dirStrategy{} })
	cfg.NewStrategy = func() strategy.Strategy { return &badParams{} }

	_, err := Grid(context.Background(), cfg)
	assert.Error(t, err)
}

// badParams rejects every assignment, so every trial fails.
type badParams struct{ dirStrategy }

func (b *badParams) SetParameters(map[string]float64) error {
	return fmt.Errorf("bad params")
}

func TestCartesian(t *testing.T) {
	t.Parallel()

	combos := cartesian(map[string][]float64{
		"a": {1, 2},
		"b": {3, 4, 5},
	})
	require.Len(t, combos, 6)

	// Keys iterate sorted, values in declared order.
	assert.Equal(t, map[string]float64{"a": 1, "b": 3}, combos[0])
	assert.Equal(t, map[string]float64{"a": 1, "b": 4}, combos[1])
	assert.Equal(t, map[string]float64{"a": 2, "b": 5}, combos[5])
	for _, c := range combos {
		assert.Len(t, c, 2)
	}
}

func TestSamplerStaysInRange(t *testing.T) {
	t.Parallel()

	s := newSampler(7, 20)
	s.observe(map[string]float64{"x": 5, "n": 50}, 1.0)

	for i := 0; i < 20; i++ {
		tr := s.trial(i)
		x := tr.SuggestFloat("x", 0, 10)
		assert.GreaterOrEqual(t, x, 0.0)
		assert.LessOrEqual(t, x, 10.0)

		n := tr.SuggestInt("n", 10, 100)
		assert.GreaterOrEqual(t, n, 10)
		assert.LessOrEqual(t, n, 100)
	}
}
