package market

import "time"

// Candle represents OHLC (Open, High, Low, Close) candlestick data for one
// interval of one instrument. Complete is false while the interval is still
// forming.
type Candle struct {
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Time     time.Time
	Complete bool
}

// Price is the latest known quote for an instrument.
type Price struct {
	Instrument string
	Value      float64
	Time       time.Time
}
