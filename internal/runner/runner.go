// Package runner composes a Broker and a Strategy into one (symbol, interval)
// trading session: open the live stream before backfilling so no bars are
// lost, seed the ring from the backfill, then tick the strategy on every
// live bar until cancellation or the stream closes.
package runner

import (
	"context"
	"log/slog"
	"time"

	"cryptotick/internal/broker"
	"cryptotick/internal/logger"
	"cryptotick/internal/metrics"
	"cryptotick/internal/model"
	"cryptotick/internal/ring"
	"cryptotick/internal/strategy"
)

const (
	ringCapacity   = 2000
	backfillLimit  = 1000
	backfillWindow = 24 * time.Hour
)

// Emission is what the runner records for every strategy tick result,
// regardless of whether an action was emitted, so observers can audit
// Pass decisions too.
type Emission struct {
	Symbol string
	At     time.Time
	Action model.StrategyAction
}

// Session runs one (symbol, interval) pair to completion. EmissionObserver,
// if set, is called for every tick result (emit or Pass); it must not block.
type Session[S any] struct {
	Symbol   string
	Interval string

	Broker   broker.Broker
	Strategy strategy.Strategy[S]
	Log      *slog.Logger
	Metrics  *metrics.Metrics

	EmissionObserver func(Emission)
}

// Run blocks until ctx is cancelled or the broker's candle stream closes.
func (s *Session[S]) Run(ctx context.Context) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}

	sctx, state := s.Strategy.Init(model.NewStrategyContext(), s.Strategy.InitialState())

	// Open the live stream before the backfill so no live bars are lost
	// while the backfill REST call is in flight; the broadcast hub buffers
	// up to its capacity in the meantime.
	liveCh, unsubscribe, err := s.Broker.CandleStream(ctx, s.Symbol, s.Interval)
	if err != nil {
		return err
	}
	defer unsubscribe()

	r := ring.New(ringCapacity)

	now := time.Now()
	from := now.Add(-backfillWindow).UnixMilli()
	to := now.UnixMilli()
	backfill, err := s.Broker.Candles(ctx, s.Symbol, s.Interval, backfillLimit, from, to)
	if err != nil {
		log.Error("runner: backfill failed", slog.String("symbol", s.Symbol), slog.Any("err", err))
	}
	for _, c := range backfill {
		r.Upsert(c)
	}
	log.Info("runner: backfill seeded", slog.String("symbol", s.Symbol), slog.Int("count", len(backfill)))

	for {
		select {
		case <-ctx.Done():
			_, state = s.Strategy.End(sctx, state)
			return ctx.Err()

		case bar, ok := <-liveCh:
			if !ok {
				log.Info("runner: stream closed, ending session", slog.String("symbol", s.Symbol))
				_, state = s.Strategy.End(sctx, state)
				return nil
			}

			tickStart := time.Now()
			r.Upsert(bar)
			snapshot := r.Snapshot()
			at := bar.TS()

			traceID := logger.TickTraceID(s.Symbol, s.Interval, bar.Timestamp)
			tctx := logger.WithTraceID(ctx, traceID)
			log.Debug("runner: tick", append(logger.LogWithTrace(tctx), slog.String("symbol", s.Symbol))...)

			var action model.StrategyAction
			sctx, state, action = s.Strategy.Tick(sctx, at, state, s.Symbol, snapshot, bar)

			if s.Metrics != nil {
				s.Metrics.TicksTotal.Inc()
				s.Metrics.TickLatency.Observe(time.Since(tickStart).Seconds())
				s.Metrics.RingOccupancy.WithLabelValues(s.Symbol).Set(float64(r.Len()))
				if action.Emitted {
					s.Metrics.EmissionsTotal.WithLabelValues(s.Strategy.Name(), action.Action.ID).Inc()
				}
			}

			if s.EmissionObserver != nil {
				s.EmissionObserver(Emission{Symbol: s.Symbol, At: at, Action: action})
			}
		}
	}
}
