package strategy

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"cryptotick/internal/indicator"
	"cryptotick/internal/model"
)

// MinimalState is the per-strategy state the Minimal strategy carries across
// ticks: the latest indicator readings, the bookkeeping needed to emit at
// most once per bar, and the id of whichever Trade it currently has open in
// the shared StrategyContext (empty when flat).
type MinimalState struct {
	Macd          model.MacdOutput
	EMA           float64
	SuperTrend    model.SuperTrendOutput
	LastTimestamp int64
	LastTrend     int
	OpenTradeID   string
	LastClose     float64
}

// Minimal is the reference strategy: MACD(12,26,9), EMA(20) and
// SuperTrend(10, 3.0) over the ring snapshot. On a bullish SuperTrend trend
// (trend==1) that is either new for this bar's timestamp or a fresh flip from
// a non-bullish trend, it emits an action. The emitted action id is literally
// "sell" — the original code emits "sell" on a bullish flip, which reads as
// inverted relative to conventional buy/sell semantics; preserved exactly
// rather than corrected (see DESIGN.md).
type Minimal struct {
	log *slog.Logger
}

// NewMinimal constructs the Minimal strategy. log may be nil.
func NewMinimal(log *slog.Logger) *Minimal {
	if log == nil {
		log = slog.Default()
	}
	return &Minimal{log: log}
}

func (m *Minimal) Name() string { return "minimal" }

func (m *Minimal) InitialState() MinimalState {
	return MinimalState{LastTrend: -1}
}

func (m *Minimal) Init(sctx model.StrategyContext, state MinimalState) (model.StrategyContext, MinimalState) {
	m.log.Info("strategy init", slog.String("strategy", m.Name()))
	if sctx.Trades == nil {
		sctx = model.NewStrategyContext()
	}
	return sctx, state
}

func (m *Minimal) Tick(sctx model.StrategyContext, at time.Time, state MinimalState, symbol string, snapshot []model.Candle, bar model.Candle) (model.StrategyContext, MinimalState, model.StrategyAction) {
	state.Macd = indicator.MACD(snapshot, 12, 26, 9)
	state.EMA = indicator.EMA(snapshot, 20)
	state.SuperTrend = indicator.SuperTrend(snapshot, 10, 3.0)
	state.LastClose = bar.Close

	// bar.Timestamp is the candle close time in unix milliseconds; the
	// new-bar test keys on second resolution to match the original
	// timestamp.timestamp() comparison.
	barSeconds := bar.Timestamp / 1000

	trend := state.SuperTrend.Trend
	flipped := trend == 1 && state.LastTrend != 1
	newBar := barSeconds != state.LastTimestamp

	if trend == 1 && (newBar || flipped) {
		state.LastTimestamp = barSeconds
		state.LastTrend = trend

		// Close whatever this strategy previously had open before opening
		// the new one — modify-over-delete, the table never shrinks.
		if state.OpenTradeID != "" {
			sctx.CloseTrade(state.OpenTradeID, decimal.NewFromFloat(bar.Close))
		}
		tradeID := fmt.Sprintf("%s-%d", symbol, bar.Timestamp)
		sctx.OpenTrade(model.Trade{
			ID:         tradeID,
			Side:       model.Short,
			Value:      decimal.NewFromFloat(bar.Close),
			StartValue: decimal.NewFromFloat(bar.Close),
		})
		state.OpenTradeID = tradeID

		action := model.TradingAction{
			ID:        "sell",
			Timestamp: bar.Timestamp,
			Symbol:    symbol,
			Amount:    0.01,
		}
		return sctx, state, model.Emitted(action)
	}

	state.LastTrend = trend
	return sctx, state, model.Pass
}

func (m *Minimal) End(sctx model.StrategyContext, state MinimalState) (model.StrategyContext, MinimalState) {
	m.log.Info("strategy end", slog.String("strategy", m.Name()))
	if state.OpenTradeID != "" {
		sctx.CloseTrade(state.OpenTradeID, decimal.NewFromFloat(state.LastClose))
		state.OpenTradeID = ""
	}
	return sctx, state
}

func (m *Minimal) Portfolio() map[string]float64 {
	return map[string]float64{
		"BTCUSDT": 0.6,
		"ETHUSDT": 0.4,
	}
}
