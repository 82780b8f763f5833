package model

import "github.com/shopspring/decimal"

// Side is the direction of an open Trade.
type Side int

const (
	Long Side = iota
	Short
)

func (s Side) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}

// Trade is a strategy-managed position. EndValue is unset (nil) while the
// trade is open; a strategy closes it by setting EndValue. Trade carries no
// PnL accounting of its own — that remains a non-goal of the engine.
type Trade struct {
	ID         string
	Side       Side
	Value      decimal.Decimal
	StartValue decimal.Decimal
	EndValue   *decimal.Decimal
}

// Open reports whether the trade has not yet been closed.
func (t Trade) Open() bool {
	return t.EndValue == nil
}
