// Package tfbuilder incrementally resamples a symbol's base-interval candle
// feed (the ring's live bars) into coarser derived timeframes. It updates
// each derived bucket in O(1) per incoming candle per timeframe. No other
// package in this module calls it; the indicator checkpoint service
// evaluates the Indicator Bank over the base-interval ring only.
package tfbuilder

import (
	"context"
	"log/slog"

	"cryptotick/internal/model"
)

// Candle is one derived-timeframe bar for a symbol. Forming is true while
// the bucket is still accumulating; Forming flips to false exactly once,
// when a later candle's bucket supersedes it.
type Candle struct {
	Symbol   string
	Interval int64 // bucket width in seconds
	Bucket   int64 // bucket start, unix seconds
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Count    int
	Forming  bool
}

type state struct {
	bucket int64
	candle Candle
}

// Builder resamples one symbol's base candles into multiple derived
// timeframes. Not safe for concurrent use — intended to run from a single
// consumer goroutine, mirroring the base candle stream's delivery order.
type Builder struct {
	symbol    string
	intervals []int64 // seconds

	states map[int64]*state // interval -> forming state

	log *slog.Logger

	// OnCandle, if set, is called for every forming or finalized derived
	// candle (optional; used for metrics/logging hooks).
	OnCandle func(Candle)
}

// New creates a Builder for symbol with the given derived timeframes in
// seconds (e.g. []int64{300, 900} for 5m and 15m derived from a 1m feed).
func New(symbol string, intervalsSeconds []int64, log *slog.Logger) *Builder {
	states := make(map[int64]*state, len(intervalsSeconds))
	for _, iv := range intervalsSeconds {
		states[iv] = nil
	}
	if log == nil {
		log = slog.Default()
	}
	return &Builder{symbol: symbol, intervals: intervalsSeconds, states: states, log: log}
}

// Run consumes base candles from in and resamples them until ctx is
// cancelled or in is closed, finalizing every forming bucket on exit.
func (b *Builder) Run(ctx context.Context, in <-chan model.Candle) {
	defer b.flushAll()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-in:
			if !ok {
				return
			}
			b.Process(c)
		}
	}
}

// Process folds one base candle into every derived timeframe's forming
// bucket. O(1) per timeframe.
func (b *Builder) Process(c model.Candle) {
	ts := c.Timestamp / 1000 // close time, unix seconds

	for iv, st := range b.states {
		bucket := ts - (ts % iv)

		if st != nil && bucket > st.bucket {
			st.candle.Forming = false
			b.emit(st.candle)
			st = nil
		}

		if st == nil {
			st = &state{
				bucket: bucket,
				candle: Candle{
					Symbol: b.symbol, Interval: iv, Bucket: bucket,
					Open: c.Open, High: c.High, Low: c.Low, Close: c.Close,
					Volume: c.Volume, Count: 1, Forming: true,
				},
			}
			b.states[iv] = st
			b.emit(st.candle)
			continue
		}

		// Same bucket: merge OHLCV.
		fc := &st.candle
		if c.High > fc.High {
			fc.High = c.High
		}
		if c.Low < fc.Low {
			fc.Low = c.Low
		}
		fc.Close = c.Close
		fc.Volume += c.Volume
		fc.Count++
		b.emit(*fc)
	}
}

func (b *Builder) flushAll() {
	for iv, st := range b.states {
		if st != nil {
			st.candle.Forming = false
			b.emit(st.candle)
			b.states[iv] = nil
		}
	}
}

func (b *Builder) emit(c Candle) {
	if b.OnCandle != nil {
		b.OnCandle(c)
	}
}

// Intervals returns the builder's configured derived timeframes in seconds.
func (b *Builder) Intervals() []int64 { return b.intervals }
