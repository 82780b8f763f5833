// Command tickserver is a local WebSocket simulator that emits Binance-shaped
// kline frames for every configured symbol on the single /ws path. The
// internal/broker/binance adapter's WS base URL is fixed in binance.New and
// has no setter, so the adapter does not connect to this server as built.
//
// Frame shape matches the raw single-stream kline envelope the adapter
// parses: {"k":{"T":closeTimeMs,"s":SYMBOL,"o":"..","h":"..","l":"..","c":"..","v":".."}}
//
// Config (env vars):
//
//	TICK_SERVER_ADDR  — listen address (default: ":9001")
//	TICK_SYMBOLS      — comma-separated symbols to simulate (default: "BTCUSDT")
//	TICK_INTERVAL_MS  — broadcast interval milliseconds (default: "1000")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type klinePayload struct {
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
}

type klineFrame struct {
	K klinePayload `json:"k"`
}

// instrument holds per-symbol simulation state, advanced each tick by a
// small random walk around the previous close.
type instrument struct {
	Symbol string
	Price  float64
}

func (i *instrument) walk() {
	pct := (rand.Float64()*2 - 1) * 0.001 // ±0.1%
	i.Price += i.Price * pct
	if i.Price < 0.01 {
		i.Price = 0.01
	}
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client — drop frame
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[tickserver] upgrade error: %v", err)
			return
		}
		log.Printf("[tickserver] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[tickserver] client disconnected: %s", r.RemoteAddr)
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func runGenerator(h *hub, instruments []*instrument, intervalMs int) {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for now := range ticker.C {
		for _, inst := range instruments {
			open := inst.Price
			inst.walk()
			close_ := inst.Price
			high := open
			if close_ > high {
				high = close_
			}
			low := open
			if close_ < low {
				low = close_
			}

			frame := klineFrame{K: klinePayload{
				CloseTime: now.UnixMilli(),
				Symbol:    inst.Symbol,
				Open:      strconv.FormatFloat(open, 'f', 8, 64),
				High:      strconv.FormatFloat(high, 'f', 8, 64),
				Low:       strconv.FormatFloat(low, 'f', 8, 64),
				Close:     strconv.FormatFloat(close_, 'f', 8, 64),
				Volume:    strconv.FormatFloat(rand.Float64()*10, 'f', 8, 64),
			}}
			b, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("[tickserver] starting kline simulator...")

	addr := envOrDefault("TICK_SERVER_ADDR", ":9001")
	symbolsEnv := envOrDefault("TICK_SYMBOLS", "BTCUSDT")
	intervalMs := envIntOrDefault("TICK_INTERVAL_MS", 1000)

	instruments := parseInstruments(symbolsEnv)
	if len(instruments) == 0 {
		log.Fatal("[tickserver] no symbols configured via TICK_SYMBOLS")
	}
	log.Printf("[tickserver] symbols: %v", symbolNames(instruments))
	log.Printf("[tickserver] broadcast interval: %dms", intervalMs)

	h := newHub()
	go runGenerator(h, instruments, intervalMs)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"tickserver"}`)
	})

	log.Printf("[tickserver] listening on %s (ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[tickserver] server error: %v", err)
	}
}

func parseInstruments(s string) []*instrument {
	defaultPrices := map[string]float64{
		"BTCUSDT": 65000,
		"ETHUSDT": 3400,
		"SOLUSDT": 165,
	}

	var result []*instrument
	for _, sym := range strings.Split(s, ",") {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		price, ok := defaultPrices[sym]
		if !ok {
			price = 100
		}
		result = append(result, &instrument{Symbol: sym, Price: price})
	}
	return result
}

func symbolNames(instruments []*instrument) []string {
	names := make([]string, len(instruments))
	for i, inst := range instruments {
		names[i] = inst.Symbol
	}
	return names
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
