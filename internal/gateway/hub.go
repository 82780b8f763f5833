// Package gateway is the HTTP+WebSocket façade in front of the Broker Port
// and the reference Strategy: health, broker account/market-data queries,
// the strategy's static portfolio weights, and two WS relays (candles,
// order book) fed from the broker's own multi-consumer streams. It also
// exposes /chat against the stub task DAG. None of this runs a trading
// session itself — it only reads through broker.Broker.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cryptotick/internal/broker"
	"cryptotick/internal/model"
)

// relay fans one broker stream key (symbol[@interval]) out to every
// currently-connected WS client, keeping a replay buffer so a client that
// reconnects quickly doesn't lose bars produced in the gap.
type relay struct {
	mu      sync.Mutex
	clients map[*Client]bool
	replay  *ReplayBuffer
	seq     int64
	latency *LatencyTracker
	cancel  func()
}

// Hub owns the façade's live relays over a Broker. One Hub is shared by
// every HTTP request the router dispatches.
type Hub struct {
	broker broker.Broker
	log    *slog.Logger

	mu           sync.Mutex
	candleRelays map[string]*relay // key: symbol@interval
	bookRelays   map[string]*relay // key: symbol
}

// NewHub creates a Hub over broker b.
func NewHub(b broker.Broker, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		broker:       b,
		log:          log,
		candleRelays: make(map[string]*relay),
		bookRelays:   make(map[string]*relay),
	}
}

func candleKey(symbol, interval string) string { return symbol + "@" + interval }

// attachCandleClient registers c on the candle relay for (symbol, interval),
// starting the relay's broker subscription on first use, and sends c the
// relay's current replay buffer as a backfill burst.
func (h *Hub) attachCandleClient(ctx context.Context, symbol, interval string, c *Client) (func(), error) {
	key := candleKey(symbol, interval)

	h.mu.Lock()
	r, ok := h.candleRelays[key]
	if !ok {
		rctx, cancel := context.WithCancel(context.Background())
		ch, unsubscribe, err := h.broker.CandleStream(rctx, symbol, interval)
		if err != nil {
			cancel()
			h.mu.Unlock()
			return nil, fmt.Errorf("gateway: candle stream %s: %w", key, err)
		}
		r = &relay{
			clients: make(map[*Client]bool),
			replay:  NewReplayBuffer(500),
			latency: NewLatencyTracker(1000),
			cancel: func() {
				unsubscribe()
				cancel()
			},
		}
		h.candleRelays[key] = r
		go h.runCandleRelay(rctx, key, r, ch)
		h.log.Info("gateway: started candle relay", slog.String("key", key))
	}
	h.mu.Unlock()

	r.mu.Lock()
	r.clients[c] = true
	backlog := r.replay.Range(0, r.seq)
	r.mu.Unlock()

	for _, e := range backlog {
		select {
		case c.send <- e.Data:
		default:
		}
	}

	return func() {
		r.mu.Lock()
		delete(r.clients, c)
		r.mu.Unlock()
	}, nil
}

func (h *Hub) runCandleRelay(ctx context.Context, key string, r *relay, ch <-chan model.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-ch:
			if !ok {
				return
			}
			now := time.Now().UTC()
			r.latency.Record(float64(now.UnixMilli()-bar.Timestamp) * 1.0)

			data, err := json.Marshal(bar)
			if err != nil {
				continue
			}

			r.mu.Lock()
			r.seq++
			seq := r.seq
			r.replay.Push(seq, data)
			clients := make([]*Client, 0, len(r.clients))
			for c := range r.clients {
				clients = append(clients, c)
			}
			r.mu.Unlock()

			for _, c := range clients {
				select {
				case c.send <- data:
				default:
				}
			}
		}
	}
}

// attachBookClient is the order-book analogue of attachCandleClient.
func (h *Hub) attachBookClient(ctx context.Context, symbol string, c *Client) (func(), error) {
	h.mu.Lock()
	r, ok := h.bookRelays[symbol]
	if !ok {
		rctx, cancel := context.WithCancel(context.Background())
		ch, unsubscribe, err := h.broker.OrderBookStream(rctx, symbol)
		if err != nil {
			cancel()
			h.mu.Unlock()
			return nil, fmt.Errorf("gateway: book stream %s: %w", symbol, err)
		}
		r = &relay{
			clients: make(map[*Client]bool),
			replay:  NewReplayBuffer(100),
			latency: NewLatencyTracker(1000),
			cancel: func() {
				unsubscribe()
				cancel()
			},
		}
		h.bookRelays[symbol] = r
		go h.runBookRelay(rctx, symbol, r, ch)
		h.log.Info("gateway: started book relay", slog.String("symbol", symbol))
	}
	h.mu.Unlock()

	r.mu.Lock()
	r.clients[c] = true
	backlog := r.replay.Range(0, r.seq)
	r.mu.Unlock()

	for _, e := range backlog {
		select {
		case c.send <- e.Data:
		default:
		}
	}

	return func() {
		r.mu.Lock()
		delete(r.clients, c)
		r.mu.Unlock()
	}, nil
}

func (h *Hub) runBookRelay(ctx context.Context, symbol string, r *relay, ch <-chan model.OrderBook) {
	for {
		select {
		case <-ctx.Done():
			return
		case book, ok := <-ch:
			if !ok {
				return
			}
			start := time.Now()
			data, err := json.Marshal(book)
			if err != nil {
				continue
			}

			r.mu.Lock()
			r.seq++
			r.replay.Push(r.seq, data)
			clients := make([]*Client, 0, len(r.clients))
			for c := range r.clients {
				clients = append(clients, c)
			}
			r.mu.Unlock()

			for _, c := range clients {
				select {
				case c.send <- data:
				default:
				}
			}

			// Book updates carry no exchange timestamp to diff against, so
			// this tracks relay processing time (marshal + fan-out) rather
			// than exchange-to-client latency.
			r.latency.Record(float64(time.Since(start).Microseconds()) / 1000.0)
		}
	}
}

// RelayCount reports how many active candle/book relays the Hub is running.
func (h *Hub) RelayCount() (candles, books int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.candleRelays), len(h.bookRelays)
}

// Stats reports each active relay's delivery latency percentiles, keyed
// "candle:<symbol@interval>" or "book:<symbol>".
func (h *Hub) Stats() map[string]RelayStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]RelayStats, len(h.candleRelays)+len(h.bookRelays))
	for key, r := range h.candleRelays {
		out["candle:"+key] = r.latency.Snapshot()
	}
	for symbol, r := range h.bookRelays {
		out["book:"+symbol] = r.latency.Snapshot()
	}
	return out
}
