// Package journal records closed trades and equity snapshots for audit and
// read-back. It is never the source of truth for in-memory state.
package journal

import "time"

type TradeRecord struct {
	TradeID    string
	Instrument string
	Direction  string
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	Profit     float64
	Reason     string
	Strategy   string
}

// EquitySnapshot is one point of the equity curve: cash balance plus
// mark-to-market of open positions.
type EquitySnapshot struct {
	Time    time.Time
	Balance float64
	Equity  float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error

	// TradeHistory returns trades closed within the last n days, oldest
	// first. n <= 0 means everything.
	TradeHistory(days int) ([]TradeRecord, error)

	Close() error
}
