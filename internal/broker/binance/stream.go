package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"cryptotick/internal/broadcast"
	"cryptotick/internal/model"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
)

// klineFrame accepts both the raw stream shape ({"k":{...}}) and the
// combined-stream envelope ({"data":{"k":{...}}}).
type klineFrame struct {
	K    *klinePayload `json:"k"`
	Data *struct {
		K *klinePayload `json:"k"`
	} `json:"data"`
}

type klinePayload struct {
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
}

func (f klineFrame) payload() *klinePayload {
	if f.K != nil {
		return f.K
	}
	if f.Data != nil {
		return f.Data.K
	}
	return nil
}

type depthFrame struct {
	Event       string     `json:"e"`
	FinalUpdate int64      `json:"u"`
	Bids        [][]string `json:"b"`
	Asks        [][]string `json:"a"`
}

// CandleStream starts (once per symbol/interval pair) a reconnecting WS
// producer and returns a broadcast subscription. Multiple callers for the
// same (symbol, interval) share one underlying connection.
func (a *Adapter) CandleStream(ctx context.Context, symbol, interval string) (<-chan model.Candle, func(), error) {
	key := symbol + "@" + interval

	a.mu.Lock()
	hub, exists := a.candleHubs[key]
	if !exists {
		hub = broadcast.NewHub[model.Candle](broadcast.DefaultCapacity, a.log)
		if a.metrics != nil {
			hub.OnDrop = func(int) { a.metrics.StreamDrops.WithLabelValues("candle").Inc() }
		}
		a.candleHubs[key] = hub

		producerCtx, cancel := context.WithCancel(context.Background())
		a.candleCancels[key] = cancel
		url := wsKlineURL(a.wsBaseURL, symbol, interval)
		go a.runCandleProducer(producerCtx, url, symbol, hub)
	}
	a.mu.Unlock()

	ch, unsubscribe := hub.Subscribe()
	return ch, unsubscribe, nil
}

// OrderBookStream is the book-update analogue of CandleStream.
func (a *Adapter) OrderBookStream(ctx context.Context, symbol string) (<-chan model.OrderBook, func(), error) {
	a.mu.Lock()
	hub, exists := a.bookHubs[symbol]
	if !exists {
		hub = broadcast.NewHub[model.OrderBook](broadcast.DefaultCapacity, a.log)
		a.bookHubs[symbol] = hub

		producerCtx, cancel := context.WithCancel(context.Background())
		a.bookCancels[symbol] = cancel
		url := wsDepthURL(a.wsBaseURL, symbol)
		go a.runBookProducer(producerCtx, url, symbol, hub)
	}
	a.mu.Unlock()

	ch, unsubscribe := hub.Subscribe()
	return ch, unsubscribe, nil
}

// runCandleProducer owns the reconnect/backoff loop for one kline stream:
// connect, reset backoff to 1s on a successful handshake, read frames until
// failure or clean break, then sleep backoff (doubling, capped at 60s) and
// reconnect. Producer tasks are independent of consumers; they exit only
// when ctx is cancelled.
func (a *Adapter) runCandleProducer(ctx context.Context, url, symbol string, hub *broadcast.Hub[model.Candle]) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			a.log.Error("binance: candle stream connect failed", slog.String("url", url), slog.Any("err", err))
			if !sleepBackoff(ctx, &backoff) {
				return
			}
			continue
		}
		a.log.Info("binance: candle stream connected", slog.String("symbol", symbol))
		if backoff != initialBackoff && a.metrics != nil {
			a.metrics.StreamReconnects.WithLabelValues("candle").Inc()
		}
		backoff = initialBackoff

		a.readCandleFrames(ctx, conn, symbol, hub)
		conn.Close()

		if !sleepBackoff(ctx, &backoff) {
			return
		}
	}
}

func (a *Adapter) readCandleFrames(ctx context.Context, conn *websocket.Conn, symbol string, hub *broadcast.Hub[model.Candle]) {
	go closeOnCancel(ctx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				a.log.Warn("binance: candle stream read error, reconnecting", slog.Any("err", err))
			}
			return
		}

		var frame klineFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			a.log.Warn("binance: candle frame parse error, dropping", slog.Any("err", err))
			continue
		}
		payload := frame.payload()
		if payload == nil {
			continue
		}

		c, ok := klineToCandle(symbol, 0, payload.CloseTime, payload.Open, payload.High, payload.Low, payload.Close, payload.Volume)
		if !ok {
			a.log.Warn("binance: candle frame had unparseable OHLCV, dropping")
			continue
		}
		hub.Publish(c)
	}
}

func (a *Adapter) runBookProducer(ctx context.Context, url, symbol string, hub *broadcast.Hub[model.OrderBook]) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			a.log.Error("binance: book stream connect failed", slog.String("url", url), slog.Any("err", err))
			if !sleepBackoff(ctx, &backoff) {
				return
			}
			continue
		}
		a.log.Info("binance: book stream connected", slog.String("symbol", symbol))
		if backoff != initialBackoff && a.metrics != nil {
			a.metrics.StreamReconnects.WithLabelValues("order_book").Inc()
		}
		backoff = initialBackoff

		a.readBookFrames(ctx, conn, symbol, hub)
		conn.Close()

		if !sleepBackoff(ctx, &backoff) {
			return
		}
	}
}

func (a *Adapter) readBookFrames(ctx context.Context, conn *websocket.Conn, symbol string, hub *broadcast.Hub[model.OrderBook]) {
	go closeOnCancel(ctx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				a.log.Warn("binance: book stream read error, reconnecting", slog.Any("err", err))
			}
			return
		}

		var frame depthFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			a.log.Warn("binance: depth frame parse error, dropping", slog.Any("err", err))
			continue
		}
		if frame.Event != "depthUpdate" {
			continue
		}

		book := model.OrderBook{
			Symbol:       symbol,
			LastUpdateID: frame.FinalUpdate,
			Bids:         parseLevels(frame.Bids),
			Asks:         parseLevels(frame.Asks),
		}
		hub.Publish(book)
	}
}

func parseLevels(raw [][]string) []model.BookLevel {
	out := make([]model.BookLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) != 2 {
			continue
		}
		var price, qty float64
		if _, err := fmt.Sscanf(lvl[0], "%f", &price); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(lvl[1], "%f", &qty); err != nil {
			continue
		}
		out = append(out, model.BookLevel{Price: price, Quantity: qty})
	}
	return out
}

func closeOnCancel(ctx context.Context, conn *websocket.Conn) {
	<-ctx.Done()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
	conn.Close()
}

// sleepBackoff sleeps for the current backoff (or returns false immediately
// if ctx is cancelled first), then doubles backoff capped at maxBackoff.
func sleepBackoff(ctx context.Context, backoff *time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(*backoff):
	}
	*backoff *= 2
	if *backoff > maxBackoff {
		*backoff = maxBackoff
	}
	return true
}
