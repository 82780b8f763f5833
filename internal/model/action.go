package model

// TradingAction is a strategy-emitted instruction. The runner only logs and
// forwards it; order routing to an exchange is not implemented.
type TradingAction struct {
	ID        string
	Timestamp int64 // ms since epoch, the triggering bar's close time
	Symbol    string
	Amount    float64
}

// StrategyAction is the tagged result of one Strategy.Tick call: either an
// emitted TradingAction, or Pass (no action this bar).
type StrategyAction struct {
	Action  TradingAction
	Emitted bool
}

// Emitted constructs a StrategyAction that carries a TradingAction.
func Emitted(a TradingAction) StrategyAction {
	return StrategyAction{Action: a, Emitted: true}
}

// Pass is the StrategyAction returned when a strategy has nothing to do on
// the current bar.
var Pass = StrategyAction{}
