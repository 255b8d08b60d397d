package strategy

import (
	"fmt"

	"github.com/rustyeddy/tradebot/indicators"
	"github.com/rustyeddy/tradebot/market"
)

// RSIRevert is a mean-reversion strategy on Wilder's RSI.
// - Goes long when RSI drops below the oversold level
// - Goes short when RSI rises above the overbought level
// - Emits only on the bar where the level is first crossed
type RSIRevert struct {
	Period     int     // 14
	Oversold   float64 // 30
	Overbought float64 // 70
	Units      float64 // requested size per signal

	// Previous RSI per instrument, to detect level crossings.
	lastRSI map[string]float64
}

func NewRSIRevert(period int, oversold, overbought, units float64) *RSIRevert {
	if units <= 0 {
		units = 100
	}
	return &RSIRevert{
		Period: period, Oversold: oversold, Overbought: overbought, Units: units,
		lastRSI: make(map[string]float64),
	}
}

func init() {
	Register("rsi-revert", func() Strategy { return NewRSIRevert(14, 30, 70, 100) })
}

func (s *RSIRevert) Name() string { return "rsi-revert" }

func (s *RSIRevert) GenerateSignals(instrument string, candles []market.Candle) ([]Signal, error) {
	if s.Period <= 0 || s.Oversold >= s.Overbought {
		return nil, fmt.Errorf("rsi-revert: need period > 0 and oversold < overbought")
	}
	if len(candles) < s.Period+1 {
		return nil, nil
	}

	rsi, err := indicators.RSI(candles, s.Period)
	if err != nil {
		return nil, err
	}

	if s.lastRSI == nil {
		s.lastRSI = make(map[string]float64)
	}
	prev, seen := s.lastRSI[instrument]
	s.lastRSI[instrument] = rsi

	if !seen {
		return nil, nil
	}

	var dir Direction
	switch {
	case prev >= s.Oversold && rsi < s.Oversold:
		dir = Long
	case prev <= s.Overbought && rsi > s.Overbought:
		dir = Short
	default:
		return nil, nil
	}

	// Strength grows with how far past the level RSI has pushed.
	var strength float64
	if dir == Long {
		strength = (s.Oversold - rsi) / s.Oversold
	} else {
		strength = (rsi - s.Overbought) / (100 - s.Overbought)
	}
	if strength > 1 {
		strength = 1
	}

	return []Signal{{
		Instrument: instrument,
		Direction:  dir,
		Size:       s.Units,
		Kind:       Market,
		Strength:   strength,
		Strategy:   s.Name(),
	}}, nil
}

func (s *RSIRevert) ParameterGrid() map[string][]float64 {
	return map[string][]float64{
		"period":     {7, 14, 21},
		"oversold":   {20, 25, 30},
		"overbought": {70, 75, 80},
	}
}

func (s *RSIRevert) SuggestParameters(t Trial) map[string]float64 {
	return map[string]float64{
		"period":     float64(t.SuggestInt("period", 5, 30)),
		"oversold":   t.SuggestFloat("oversold", 15, 35),
		"overbought": t.SuggestFloat("overbought", 65, 85),
	}
}

func (s *RSIRevert) SetParameters(params map[string]float64) error {
	for name, v := range params {
		switch name {
		case "period":
			s.Period = int(v)
		case "oversold":
			s.Oversold = v
		case "overbought":
			s.Overbought = v
		case "units":
			s.Units = v
		default:
			return fmt.Errorf("rsi-revert: unknown parameter %q", name)
		}
	}
	s.lastRSI = make(map[string]float64)
	return nil
}
