package strategy

import (
	"fmt"
	"math"

	"github.com/rustyeddy/tradebot/indicators"
	"github.com/rustyeddy/tradebot/market"
)

// SMACross trades a fast/slow simple moving average crossover.
// - Emits a long signal when the fast average crosses above the slow one
// - Emits a short signal on the opposite cross
// - Signal strength scales with the normalized distance between the averages
type SMACross struct {
	Fast      int     // 20
	Slow      int     // 50
	Threshold float64 // minimum |fast-slow|/slow separation, e.g. 0.001
	Units     float64 // requested size per signal

	// Crossover state per instrument.
	lastDiff map[string]float64
}

func NewSMACross(fast, slow int, threshold, units float64) *SMACross {
	if units <= 0 {
		units = 100
	}
	return &SMACross{
		Fast: fast, Slow: slow, Threshold: threshold, Units: units,
		lastDiff: make(map[string]float64),
	}
}

func init() {
	Register("sma-cross", func() Strategy { return NewSMACross(20, 50, 0.001, 100) })
}

func (s *SMACross) Name() string { return "sma-cross" }

func (s *SMACross) GenerateSignals(instrument string, candles []market.Candle) ([]Signal, error) {
	if s.Fast <= 0 || s.Slow <= s.Fast {
		return nil, fmt.Errorf("sma-cross: need 0 < fast < slow, got fast=%d slow=%d", s.Fast, s.Slow)
	}
	if len(candles) < s.Slow+1 {
		return nil, nil // not enough history yet
	}

	fast, err := indicators.MA(candles, s.Fast)
	if err != nil {
		return nil, err
	}
	slow, err := indicators.MA(candles, s.Slow)
	if err != nil {
		return nil, err
	}

	diff := (fast - slow) / slow
	if s.lastDiff == nil {
		s.lastDiff = make(map[string]float64)
	}
	prev, seen := s.lastDiff[instrument]
	s.lastDiff[instrument] = diff

	if !seen {
		return nil, nil
	}
	if math.Abs(diff) < s.Threshold {
		return nil, nil
	}

	var dir Direction
	switch {
	case prev <= 0 && diff > 0:
		dir = Long
	case prev >= 0 && diff < 0:
		dir = Short
	default:
		return nil, nil // no cross this bar
	}

	// Strength saturates at 3x the threshold separation.
	strength := math.Min(1, math.Abs(diff)/(3*s.Threshold))

	return []Signal{{
		Instrument: instrument,
		Direction:  dir,
		Size:       s.Units,
		Kind:       Market,
		Strength:   strength,
		Strategy:   s.Name(),
	}}, nil
}

func (s *SMACross) ParameterGrid() map[string][]float64 {
	return map[string][]float64{
		"fast":      {10, 20, 30},
		"slow":      {50, 100, 200},
		"threshold": {0.0005, 0.001, 0.002},
	}
}

func (s *SMACross) SuggestParameters(t Trial) map[string]float64 {
	return map[string]float64{
		"fast":      float64(t.SuggestInt("fast", 5, 50)),
		"slow":      float64(t.SuggestInt("slow", 50, 200)),
		"threshold": t.SuggestFloat("threshold", 0.0001, 0.005),
	}
}

func (s *SMACross) SetParameters(params map[string]float64) error {
	for name, v := range params {
		switch name {
		case "fast":
			s.Fast = int(v)
		case "slow":
			s.Slow = int(v)
		case "threshold":
			s.Threshold = v
		case "units":
			s.Units = v
		default:
			return fmt.Errorf("sma-cross: unknown parameter %q", name)
		}
	}
	// Crossover state is meaningless under new parameters.
	s.lastDiff = make(map[string]float64)
	return nil
}
