package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cryptotick/internal/broker"
	"cryptotick/internal/chat/dag"
	"cryptotick/internal/chat/session"
)

// allowedOrigins is parsed once from ALLOWED_ORIGINS ("*" allows all, the
// development default).
var allowedOrigins = parseAllowedOrigins(os.Getenv("ALLOWED_ORIGINS"))

func parseAllowedOrigins(s string) []string {
	if s == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func checkOrigin(r *http.Request) bool {
	for _, o := range allowedOrigins {
		if o == "*" {
			return true
		}
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range allowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       checkOrigin,
	EnableCompression: true,
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	w.Write([]byte(msg))
}

// Handlers holds the façade's dependencies: the broker port, a fixed
// strategy instance to read Portfolio() from, the Hub's live relays, and
// the chat DAG/session store.
type Handlers struct {
	Broker  broker.Broker
	Hub     *Hub
	ChatDAG *dag.Graph
	Chat    *session.Store
	Log     *slog.Logger

	// Portfolio is read from a fixed Strategy[S] instance's Portfolio()
	// method at router-construction time — it is a static literal per
	// spec, not recomputed per request.
	Portfolio map[string]float64
}

// Health always responds "OK"; it does not probe the broker.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// StrategyPortfolio returns the reference strategy's static weighting hint.
func (h *Handlers) StrategyPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Portfolio)
}

// Balance proxies broker.Balance.
func (h *Handlers) Balance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.Broker.Balance(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, bal)
}

// OpenOrders proxies broker.OpenOrders for ?symbol=.
func (h *Handlers) OpenOrders(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeErr(w, http.StatusBadRequest, "symbol is required")
		return
	}
	orders, err := h.Broker.OpenOrders(r.Context(), symbol)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, orders)
}

// TradeHistory proxies broker.TradeHistory for ?symbol=.
func (h *Handlers) TradeHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeErr(w, http.StatusBadRequest, "symbol is required")
		return
	}
	trades, err := h.Broker.TradeHistory(r.Context(), symbol)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, trades)
}

// Candles proxies broker.Candles for ?symbol=&interval=&limit=&start=&end=.
func (h *Handlers) Candles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	interval := q.Get("interval")
	if symbol == "" || interval == "" {
		writeErr(w, http.StatusBadRequest, "symbol and interval are required")
		return
	}
	limit := 500
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		limit = l
	}
	var from, to int64
	if v, err := strconv.ParseInt(q.Get("start"), 10, 64); err == nil {
		from = v
	}
	if v, err := strconv.ParseInt(q.Get("end"), 10, 64); err == nil {
		to = v
	}

	candles, err := h.Broker.Candles(r.Context(), symbol, interval, limit, from, to)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, candles)
}

// OrderBook proxies broker.OrderBook for ?symbol=&depth=.
func (h *Handlers) OrderBook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		writeErr(w, http.StatusBadRequest, "symbol is required")
		return
	}
	depth := 20
	if d, err := strconv.Atoi(q.Get("depth")); err == nil && d > 0 {
		depth = d
	}
	book, err := h.Broker.OrderBook(r.Context(), symbol, depth)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, book)
}

// CandleStream upgrades to a WebSocket and relays live bars for
// ?symbol=&interval= until the client disconnects or the stream closes.
func (h *Handlers) CandleStream(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	interval := r.URL.Query().Get("interval")
	if symbol == "" || interval == "" {
		writeErr(w, http.StatusBadRequest, "symbol and interval are required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Error("gateway: ws upgrade failed", slog.Any("err", err))
		return
	}
	c := newClient(conn, h.Log)

	detach, err := h.Hub.attachCandleClient(r.Context(), symbol, interval, c)
	if err != nil {
		conn.Close()
		h.Log.Error("gateway: candle stream attach failed", slog.Any("err", err))
		return
	}

	go c.writePump()
	c.readPump(detach)
}

// StreamStats reports delivery-latency percentiles per active candle/book
// relay, for dashboards watching whether a relay is falling behind its
// source.
func (h *Handlers) StreamStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Hub.Stats())
}

// OrderBookStream is the order-book analogue of CandleStream.
func (h *Handlers) OrderBookStream(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeErr(w, http.StatusBadRequest, "symbol is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Error("gateway: ws upgrade failed", slog.Any("err", err))
		return
	}
	c := newClient(conn, h.Log)

	detach, err := h.Hub.attachBookClient(r.Context(), symbol, c)
	if err != nil {
		conn.Close()
		h.Log.Error("gateway: book stream attach failed", slog.Any("err", err))
		return
	}

	go c.writePump()
	c.readPump(detach)
}

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer,omitempty"`
	Status    string `json:"status"`
}

// Chat runs the stub task DAG against a query and persists the turn to the
// session store, creating a new session when session_id is absent.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeErr(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx := r.Context()

	var sessionID uuid.UUID
	if req.SessionID != "" {
		parsed, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid session_id")
			return
		}
		exists, err := h.Chat.SessionExists(ctx, parsed)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !exists {
			writeErr(w, http.StatusNotFound, "unknown session_id")
			return
		}
		sessionID = parsed
	} else {
		created, err := h.Chat.NewSession(ctx)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		sessionID = created
	}

	reply, err := dag.RunChat(ctx, h.ChatDAG, sessionID.String(), req.Query)
	if err != nil {
		writeJSON(w, chatResponse{SessionID: sessionID.String(), Status: "paused"})
		return
	}

	if _, err := h.Chat.RecordTurn(ctx, sessionID, req.Query, reply.Answer, reply.Status); err != nil {
		h.Log.Error("gateway: chat turn persist failed", slog.Any("err", err))
	}

	writeJSON(w, chatResponse{SessionID: sessionID.String(), Answer: reply.Answer, Status: reply.Status})
}
