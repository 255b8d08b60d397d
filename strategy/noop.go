package strategy

import "github.com/rustyeddy/tradebot/market"

// Noop never signals. Useful as a baseline and in tests.
type Noop struct{}

func init() {
	Register("noop", func() Strategy { return Noop{} })
}

func (Noop) Name() string { return "noop" }

func (Noop) GenerateSignals(string, []market.Candle) ([]Signal, error) { return nil, nil }

func (Noop) ParameterGrid() map[string][]float64 { return nil }

func (Noop) SuggestParameters(Trial) map[string]float64 { return nil }

func (Noop) SetParameters(map[string]float64) error { return nil }
