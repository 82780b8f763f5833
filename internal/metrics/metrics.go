// Package metrics exposes Prometheus instrumentation for the engine: tick
// latency, stream reconnects, ring occupancy and strategy emissions.
package metrics

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the engine registers.
type Metrics struct {
	TicksTotal       prometheus.Counter
	TickLatency      prometheus.Histogram
	StreamReconnects *prometheus.CounterVec // labels: stream ("candle"|"order_book")
	StreamDrops      *prometheus.CounterVec // labels: stream
	RingOccupancy    *prometheus.GaugeVec   // labels: symbol
	EmissionsTotal   *prometheus.CounterVec // labels: strategy, action
	IndicatorDur     prometheus.Histogram
}

// New registers and returns the engine's metric set.
func New() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptotick_ticks_total",
			Help: "Total live bars processed by the runner",
		}),
		TickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptotick_tick_latency_seconds",
			Help:    "Time spent upserting, snapshotting and ticking the strategy for one bar",
			Buckets: prometheus.DefBuckets,
		}),
		StreamReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptotick_stream_reconnects_total",
			Help: "WebSocket stream connections established after a backoff sleep",
		}, []string{"stream"}),
		StreamDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptotick_stream_drops_total",
			Help: "Messages dropped for a lagging broadcast subscriber",
		}, []string{"stream"}),
		RingOccupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cryptotick_ring_occupancy",
			Help: "Current number of candles held in a symbol's ring",
		}, []string{"symbol"}),
		EmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptotick_strategy_emissions_total",
			Help: "Strategy actions emitted, by strategy and action id",
		}, []string{"strategy", "action"}),
		IndicatorDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptotick_indicator_compute_duration_seconds",
			Help:    "Time spent evaluating the indicator bank over a snapshot",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.TickLatency,
		m.StreamReconnects,
		m.StreamDrops,
		m.RingOccupancy,
		m.EmissionsTotal,
		m.IndicatorDur,
	)

	return m
}

// Server exposes /metrics and /healthz for Prometheus scraping and liveness
// probes.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
