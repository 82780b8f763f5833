// Package strategy defines the pluggable Strategy contract the runner drives
// on every live bar, plus the Minimal reference implementation.
//
// A Strategy is polymorphic over its own per-strategy state type S: init runs
// once before the first tick, tick runs once per live bar in arrival order,
// and end runs once after the loop terminates. All of (sctx, state) belong
// exclusively to the runner task during a session — no other task mutates
// them concurrently. sctx is the strategy's own working memory (an optional
// reference dataframe plus its in-flight trades table) — distinct from, and
// threaded alongside, the runner's cancellation context.Context.
package strategy

import (
	"time"

	"cryptotick/internal/model"
)

// Strategy is implemented once per trading strategy, parameterised by its own
// state type S.
type Strategy[S any] interface {
	// Name returns a human-readable identifier for logs and metrics.
	Name() string

	// InitialState returns the zero/starting value of S.
	InitialState() S

	// Init is called once, before the first tick.
	Init(sctx model.StrategyContext, state S) (model.StrategyContext, S)

	// Tick is called once per live bar, in arrival order. snapshot is the
	// ring's chronological snapshot including bar as its last element.
	Tick(sctx model.StrategyContext, at time.Time, state S, symbol string, snapshot []model.Candle, bar model.Candle) (model.StrategyContext, S, model.StrategyAction)

	// End is called once after the tick loop terminates (cancellation or
	// stream-closed).
	End(sctx model.StrategyContext, state S) (model.StrategyContext, S)

	// Portfolio is a static weighting hint: symbol -> priority in [0,1].
	Portfolio() map[string]float64
}
