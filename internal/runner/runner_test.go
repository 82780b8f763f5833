package runner

import (
	"context"
	"testing"
	"time"

	"cryptotick/internal/model"
)

// fakeBroker implements broker.Broker with scripted candles/stream only —
// the other methods are unused by the runner and return empty sentinels.
type fakeBroker struct {
	backfill []model.Candle
	live     chan model.Candle
}

func (f *fakeBroker) Balance(ctx context.Context) (map[string]float64, error) { return nil, nil }
func (f *fakeBroker) MarketCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}
func (f *fakeBroker) OpenOrders(ctx context.Context, symbol string) ([]model.OpenOrder, error) {
	return nil, nil
}
func (f *fakeBroker) TradeHistory(ctx context.Context, symbol string) ([]model.HistoricalTrade, error) {
	return nil, nil
}
func (f *fakeBroker) OrderBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error) {
	return model.OrderBook{}, nil
}
func (f *fakeBroker) Candles(ctx context.Context, symbol, interval string, limit int, from, to int64) ([]model.Candle, error) {
	return f.backfill, nil
}
func (f *fakeBroker) CandleStream(ctx context.Context, symbol, interval string) (<-chan model.Candle, func(), error) {
	return f.live, func() {}, nil
}
func (f *fakeBroker) OrderBookStream(ctx context.Context, symbol string) (<-chan model.OrderBook, func(), error) {
	return nil, func() {}, nil
}

// countingStrategy records every tick/init/end call.
type countingState struct {
	ticks int
}

type countingStrategy struct {
	initCalled, endCalled int
}

func (s *countingStrategy) Name() string                 { return "counting" }
func (s *countingStrategy) InitialState() countingState   { return countingState{} }
func (s *countingStrategy) Portfolio() map[string]float64 { return nil }

func (s *countingStrategy) Init(sctx model.StrategyContext, st countingState) (model.StrategyContext, countingState) {
	s.initCalled++
	return sctx, st
}

func (s *countingStrategy) End(sctx model.StrategyContext, st countingState) (model.StrategyContext, countingState) {
	s.endCalled++
	return sctx, st
}

func (s *countingStrategy) Tick(sctx model.StrategyContext, at time.Time, st countingState, symbol string, snapshot []model.Candle, bar model.Candle) (model.StrategyContext, countingState, model.StrategyAction) {
	st.ticks++
	return sctx, st, model.Pass
}

func TestRunner_BackfillThenLiveLoop(t *testing.T) {
	backfill := []model.Candle{
		{Timestamp: 1, Close: 1}, {Timestamp: 2, Close: 2},
	}
	live := make(chan model.Candle, 2)
	live <- model.Candle{Timestamp: 3, Close: 3}
	live <- model.Candle{Timestamp: 4, Close: 4}
	close(live)

	b := &fakeBroker{backfill: backfill, live: live}
	strat := &countingStrategy{}

	var emissions []Emission
	sess := &Session[countingState]{
		Symbol:   "BTCUSDT",
		Interval: "1m",
		Broker:   b,
		Strategy: strat,
		EmissionObserver: func(e Emission) {
			emissions = append(emissions, e)
		},
	}

	if err := sess.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strat.initCalled != 1 {
		t.Fatalf("expected Init called once, got %d", strat.initCalled)
	}
	if strat.endCalled != 1 {
		t.Fatalf("expected End called once on stream-closed, got %d", strat.endCalled)
	}
	if len(emissions) != 2 {
		t.Fatalf("expected one emission per live bar, got %d", len(emissions))
	}
}

func TestRunner_CancellationCallsEnd(t *testing.T) {
	live := make(chan model.Candle) // never sends
	b := &fakeBroker{live: live}
	strat := &countingStrategy{}

	sess := &Session[countingState]{
		Symbol: "BTCUSDT", Interval: "1m",
		Broker: b, Strategy: strat,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context.Canceled error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not return after cancellation")
	}
	if strat.endCalled != 1 {
		t.Fatalf("expected End called once on cancellation, got %d", strat.endCalled)
	}
}
