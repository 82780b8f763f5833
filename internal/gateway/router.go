package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the façade's chi router over h.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", h.Health)
	r.Post("/chat", h.Chat)
	r.Get("/strategy/portfolio", h.StrategyPortfolio)

	r.Route("/broker", func(r chi.Router) {
		r.Get("/balance", h.Balance)
		r.Get("/open_orders", h.OpenOrders)
		r.Get("/trade_history", h.TradeHistory)
		r.Get("/candles", h.Candles)
		r.Get("/order_book", h.OrderBook)
		r.Get("/candle_stream", h.CandleStream)
		r.Get("/order_book_stream", h.OrderBookStream)
		r.Get("/stream_stats", h.StreamStats)
	})

	return r
}
