package trade

import (
	"time"

	"github.com/rustyeddy/tradebot/strategy"
)

type Status int8

const (
	Open Status = iota
	Closed
)

func (s Status) String() string {
	if s == Closed {
		return "closed"
	}
	return "open"
}

// Trade is one signal-to-close lifecycle. Created only by a successful fill;
// exit fields are written exactly once when the trade closes. Closed is
// terminal.
type Trade struct {
	ID         string
	Instrument string
	Direction  strategy.Direction

	RequestedSize float64
	ExecutedSize  float64

	EntryPrice float64
	EntryTime  time.Time

	ExitPrice float64
	ExitTime  time.Time
	Profit    float64
	Reason    ExitReason

	Status Status

	Strategy       string
	SignalStrength float64
}

// Notional is the committed capital at entry.
func (t *Trade) Notional() float64 {
	return t.EntryPrice * t.ExecutedSize
}

// SignedSize is the position delta this trade applied: positive long,
// negative short.
func (t *Trade) SignedSize() float64 {
	return float64(t.Direction) * t.ExecutedSize
}
