package model

import "github.com/shopspring/decimal"

// StrategyContext is a strategy's working memory, carried across Init,
// every Tick, and End: an optional reference dataframe (left opaque here —
// a strategy that needs one stores it behind ReferenceData and type-asserts
// it back) and a table of the trades it currently has open, keyed by id.
// The runner constructs a fresh StrategyContext once per session and
// threads the value each call returns into the next; nothing outside the
// strategy mutates it.
type StrategyContext struct {
	ReferenceData any
	Trades        map[string]Trade
}

// NewStrategyContext returns an empty StrategyContext ready for a fresh
// session: no reference data, no open trades.
func NewStrategyContext() StrategyContext {
	return StrategyContext{Trades: make(map[string]Trade)}
}

// OpenTrade records t as an in-flight trade, keyed by t.ID. A strategy
// calls this from Tick when it decides to open a position.
func (c *StrategyContext) OpenTrade(t Trade) {
	if c.Trades == nil {
		c.Trades = make(map[string]Trade)
	}
	c.Trades[t.ID] = t
}

// CloseTrade sets endValue on the open trade with the given id and returns
// the closed trade. The second return value is false if no trade with that
// id is open.
func (c *StrategyContext) CloseTrade(id string, endValue decimal.Decimal) (Trade, bool) {
	t, ok := c.Trades[id]
	if !ok {
		return Trade{}, false
	}
	t.EndValue = &endValue
	c.Trades[id] = t
	return t, true
}

// Trade returns the trade open under id, if any.
func (c StrategyContext) Trade(id string) (Trade, bool) {
	t, ok := c.Trades[id]
	return t, ok
}

// OpenTrades returns the ids of every trade still open (EndValue unset).
func (c StrategyContext) OpenTrades() []string {
	var ids []string
	for id, t := range c.Trades {
		if t.Open() {
			ids = append(ids, id)
		}
	}
	return ids
}
