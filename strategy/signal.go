package strategy

import "fmt"

// Direction of a proposed trade.
type Direction int8

const (
	Long  Direction = +1
	Short Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return "unknown"
}

// OrderKind selects the order type used to act on a signal.
type OrderKind int8

const (
	Market OrderKind = iota
	Limit
)

func (k OrderKind) String() string {
	if k == Limit {
		return "limit"
	}
	return "market"
}

// Signal is an immutable trade proposal emitted by a strategy.
type Signal struct {
	Instrument string
	Direction  Direction
	Size       float64
	Kind       OrderKind
	LimitPrice *float64
	Strength   float64 // [0,1]
	Strategy   string
}

// ValidationError marks a malformed signal. It rejects the single signal and
// never aborts the surrounding loop.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid signal %s: %s", e.Field, e.Msg)
}

// Validate checks the signal's structural invariants.
func (s Signal) Validate() error {
	if s.Instrument == "" {
		return &ValidationError{Field: "instrument", Msg: "must be set"}
	}
	if s.Direction != Long && s.Direction != Short {
		return &ValidationError{Field: "direction", Msg: "must be long or short"}
	}
	if s.Size <= 0 {
		return &ValidationError{Field: "size", Msg: "must be positive"}
	}
	if s.Strength < 0 || s.Strength > 1 {
		return &ValidationError{Field: "strength", Msg: "must be in [0,1]"}
	}
	if s.Kind == Limit && s.LimitPrice == nil {
		return &ValidationError{Field: "limit_price", Msg: "required for limit orders"}
	}
	return nil
}
