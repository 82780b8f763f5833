package gateway

import (
	"context"
	"testing"
	"time"

	"cryptotick/internal/model"
)

// fakeBroker implements broker.Broker with channel-backed streams only —
// every other method returns zero values, since relay tests only exercise
// CandleStream/OrderBookStream.
type fakeBroker struct {
	candles chan model.Candle
	books   chan model.OrderBook
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
	return nil, nil
}
func (f *fakeBroker) CandleStream(ctx context.Context, symbol, interval string) (<-chan model.Candle, func(), error) {
	return f.candles, func() {}, nil
}
func (f *fakeBroker) OrderBookStream(ctx context.Context, symbol string) (<-chan model.OrderBook, func(), error) {
	return f.books, func() {}, nil
}

func TestHubCandleRelayFansOutToClient(t *testing.T) {
	fb := &fakeBroker{candles: make(chan model.Candle, 4)}
	h := NewHub(fb, nil)

	c := &Client{send: make(chan []byte, 4)}
	detach, err := h.attachCandleClient(context.Background(), "BTCUSDT", "1m", c)
	if err != nil {
		t.Fatalf("attachCandleClient: %v", err)
	}
	defer detach()

	fb.candles <- model.Candle{Symbol: "BTCUSDT", Close: 100, Timestamp: time.Now().UnixMilli()}

	select {
	case msg := <-c.send:
		if len(msg) == 0 {
			t.Fatal("expected non-empty envelope")
		}
	case <-time.After(time.Second):
		t.Fatal("expected a relayed candle")
	}

	candles, books := h.RelayCount()
	if candles != 1 || books != 0 {
		t.Fatalf("expected 1 candle relay, 0 book relays, got %d %d", candles, books)
	}
}

func TestHubBookRelayFansOutToClient(t *testing.T) {
	fb := &fakeBroker{books: make(chan model.OrderBook, 4)}
	h := NewHub(fb, nil)

	c := &Client{send: make(chan []byte, 4)}
	detach, err := h.attachBookClient(context.Background(), "ETHUSDT", c)
	if err != nil {
		t.Fatalf("attachBookClient: %v", err)
	}
	defer detach()

	fb.books <- model.OrderBook{Symbol: "ETHUSDT", Bids: []model.BookLevel{{Price: 1, Quantity: 1}}}

	select {
	case msg := <-c.send:
		if len(msg) == 0 {
			t.Fatal("expected non-empty envelope")
		}
	case <-time.After(time.Second):
		t.Fatal("expected a relayed book update")
	}
}

func TestHubBookRelaySendsReplayBacklogOnAttach(t *testing.T) {
	fb := &fakeBroker{books: make(chan model.OrderBook, 4)}
	h := NewHub(fb, nil)

	c1 := &Client{send: make(chan []byte, 4)}
	detach1, err := h.attachBookClient(context.Background(), "ETHUSDT", c1)
	if err != nil {
		t.Fatalf("attach c1: %v", err)
	}
	fb.books <- model.OrderBook{Symbol: "ETHUSDT", Bids: []model.BookLevel{{Price: 1, Quantity: 1}}}
	select {
	case <-c1.send:
	case <-time.After(time.Second):
		t.Fatal("expected c1 to receive the first book update")
	}
	detach1()

	c2 := &Client{send: make(chan []byte, 4)}
	detach2, err := h.attachBookClient(context.Background(), "ETHUSDT", c2)
	if err != nil {
		t.Fatalf("attach c2: %v", err)
	}
	defer detach2()

	select {
	case msg := <-c2.send:
		if len(msg) == 0 {
			t.Fatal("expected a non-empty replay backlog entry")
		}
	case <-time.After(time.Second):
		t.Fatal("expected the late joiner to receive the existing backlog")
	}
}

func TestHubStatsReportsPerRelayLatency(t *testing.T) {
	fb := &fakeBroker{candles: make(chan model.Candle, 4)}
	h := NewHub(fb, nil)

	c := &Client{send: make(chan []byte, 4)}
	detach, err := h.attachCandleClient(context.Background(), "BTCUSDT", "1m", c)
	if err != nil {
		t.Fatalf("attachCandleClient: %v", err)
	}
	defer detach()

	fb.candles <- model.Candle{Symbol: "BTCUSDT", Close: 100, Timestamp: time.Now().UnixMilli()}
	select {
	case <-c.send:
	case <-time.After(time.Second):
		t.Fatal("expected a relayed candle before checking stats")
	}

	stats := h.Stats()
	s, ok := stats["candle:BTCUSDT@1m"]
	if !ok {
		t.Fatalf("expected stats for candle:BTCUSDT@1m, got keys %v", stats)
	}
	if s.Samples != 1 {
		t.Fatalf("expected 1 recorded sample, got %d", s.Samples)
	}
}

func TestAttachCandleClientReusesExistingRelay(t *testing.T) {
	fb := &fakeBroker{candles: make(chan model.Candle, 4)}
	h := NewHub(fb, nil)

	c1 := &Client{send: make(chan []byte, 4)}
	c2 := &Client{send: make(chan []byte, 4)}
	if _, err := h.attachCandleClient(context.Background(), "BTCUSDT", "1m", c1); err != nil {
		t.Fatalf("attach c1: %v", err)
	}
	if _, err := h.attachCandleClient(context.Background(), "BTCUSDT", "1m", c2); err != nil {
		t.Fatalf("attach c2: %v", err)
	}

	candles, _ := h.RelayCount()
	if candles != 1 {
		t.Fatalf("expected a single shared relay for the same key, got %d", candles)
	}
}
