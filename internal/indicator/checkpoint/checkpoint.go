// Package checkpoint periodically evaluates the Indicator Bank over a
// symbol's live ring and persists the result through a model.SnapshotStore,
// so a restarted process can warm-start its indicator view instead of
// waiting out a full backfill window before its first meaningful reading.
// The Indicator Bank itself stays pure and stateless (internal/indicator);
// this package is the only place that gives its output a lifetime.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cryptotick/internal/indicator"
	"cryptotick/internal/model"
	"cryptotick/internal/ring"
)

// Snapshot is the JSON shape persisted for one run. It captures everything
// a cold-started process needs to display a reading immediately: the last N
// candles (for further pure recomputation) and the bank outputs computed
// from them at the time of the snapshot.
type Snapshot struct {
	RunID      string                  `json:"run_id"`
	Symbol     string                  `json:"symbol"`
	TakenAt    int64                   `json:"taken_at"`
	Candles    []model.Candle          `json:"candles"`
	EMA20      float64                 `json:"ema20"`
	RSI14      float64                 `json:"rsi14"`
	MACD       model.MacdOutput        `json:"macd"`
	ATR14      float64                 `json:"atr14"`
	SuperTrend model.SuperTrendOutput  `json:"super_trend"`
	Cluster    model.SuperTrendCluster `json:"cluster"`

	// Derived is a slot for bank readings on coarser resampled timeframes
	// (seconds -> reading). Service does not fill it, so snapshots it
	// writes carry no derived readings.
	Derived map[int64]DerivedReading `json:"derived,omitempty"`
}

// DerivedReading is the Indicator Bank evaluated over one resampled
// timeframe's candle history.
type DerivedReading struct {
	Candles    int                    `json:"candles"`
	EMA20      float64                `json:"ema20"`
	RSI14      float64                `json:"rsi14"`
	MACD       model.MacdOutput       `json:"macd"`
	ATR14      float64                `json:"atr14"`
	SuperTrend model.SuperTrendOutput `json:"super_trend"`
}

// Params configures one symbol's periodic bank evaluation.
type Params struct {
	RunID    string // snapshot key, typically "<symbol>@<interval>"
	Symbol   string
	Interval time.Duration // how often to snapshot
	ATRPeriod int
	EMAPeriod int
	RSIPeriod int
	MACDFast, MACDSlow, MACDSignal int
	ClusterMin, ClusterMax, ClusterStep float64
	ClusterAlpha int
}

// DefaultParams fills in indicator periods for symbol/runID: EMA(20) and
// MACD(12,26,9) as the Minimal strategy uses them, RSI and ATR period 14,
// and a 1..5 step 0.5 cluster sweep. The snapshot's SuperTrend reading uses
// ATRPeriod (14) and ClusterMax (5) as its factor, not the Minimal
// strategy's SuperTrend(10, 3.0).
func DefaultParams(runID, symbol string) Params {
	return Params{
		RunID: runID, Symbol: symbol, Interval: time.Minute,
		ATRPeriod: 14, EMAPeriod: 20, RSIPeriod: 14,
		MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
		ClusterMin: 1, ClusterMax: 5, ClusterStep: 0.5, ClusterAlpha: 14,
	}
}

// Service evaluates the Indicator Bank against a Ring on a fixed interval
// and writes the result to a model.SnapshotStore. It also serves the last
// snapshot it produced in-process, so callers (e.g. the HTTP façade) don't
// have to round-trip through the store for a value this process already
// holds.
type Service struct {
	params Params
	r      *ring.Ring
	store  model.SnapshotStore
	log    *slog.Logger

	last *Snapshot
}

// New creates a Service reading from r and writing through store.
func New(params Params, r *ring.Ring, store model.SnapshotStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{params: params, r: r, store: store, log: log}
}

// Run evaluates and persists a snapshot every params.Interval until ctx is
// cancelled. It also takes one snapshot immediately on start if the ring
// already has data, so the store isn't empty for the first Interval.
func (s *Service) Run(ctx context.Context) {
	if s.r.Len() > 0 {
		s.tick()
	}

	t := time.NewTicker(s.params.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("checkpoint: stopping", slog.String("run_id", s.params.RunID))
			return
		case <-t.C:
			s.tick()
		}
	}
}

func (s *Service) tick() {
	seq := s.r.Snapshot()
	if len(seq) == 0 {
		return
	}

	p := s.params
	snap := &Snapshot{
		RunID:   p.RunID,
		Symbol:  p.Symbol,
		TakenAt: time.Now().UTC().UnixMilli(),
		Candles: seq,
		EMA20:   indicator.EMA(seq, p.EMAPeriod),
		RSI14:   indicator.RSI(seq, p.RSIPeriod),
		MACD:    indicator.MACD(seq, p.MACDFast, p.MACDSlow, p.MACDSignal),
		ATR14:   indicator.ATR(seq, p.ATRPeriod),
		SuperTrend: indicator.SuperTrend(seq, p.ATRPeriod, p.ClusterMax),
		Cluster: indicator.KMeansCluster(seq, p.ATRPeriod, p.ClusterMin, p.ClusterMax, p.ClusterStep, p.ClusterAlpha, model.ClusterBest),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.log.Error("checkpoint: marshal failed", slog.String("run_id", p.RunID), slog.Any("err", err))
		return
	}
	if err := s.store.SaveSnapshotJSON(p.RunID, data); err != nil {
		s.log.Error("checkpoint: save failed", slog.String("run_id", p.RunID), slog.Any("err", err))
		return
	}
	s.last = snap
	s.log.Debug("checkpoint: saved", slog.String("run_id", p.RunID), slog.Int("candles", len(seq)))
}

// Last returns the most recent snapshot this Service produced in-process,
// or nil if none has been taken yet.
func (s *Service) Last() *Snapshot {
	return s.last
}

// Load reads the most recently persisted snapshot for runID from store,
// independent of any running Service. Used on process start to warm-start
// a Ring before the first live tick arrives.
func Load(store model.SnapshotStore, runID string) (*Snapshot, error) {
	data, err := store.ReadLatestSnapshotJSON(runID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint load %s: %w", runID, err)
	}
	if data == nil {
		return nil, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("checkpoint unmarshal %s: %w", runID, err)
	}
	return &snap, nil
}
