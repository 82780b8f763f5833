// Package broker defines the abstract market-data + account capability the
// runner depends on, so offline backtests and live runs share the same
// narrow port. internal/broker/binance supplies the one concrete adapter.
package broker

import (
	"context"

	"cryptotick/internal/model"
)

// Broker is the abstract market-data and account capability port. Blocking
// calls (balance, open_orders, trade_history, order_book, current price) may
// perform I/O and should be offloaded to a blocking-capable worker by the
// caller if invoked from a cooperative scheduler loop. candles is
// async/backfill; the two *_stream calls return immediately with a
// multi-consumer receiver that the adapter keeps alive and reconnects
// internally.
type Broker interface {
	// Balance returns asset -> free quantity, restricted to assets with
	// free > 0. Returns an empty map on any error.
	Balance(ctx context.Context) (map[string]float64, error)

	// MarketCurrentPrice returns the last traded price for symbol, or 0.0 on
	// error.
	MarketCurrentPrice(ctx context.Context, symbol string) (float64, error)

	// OpenOrders returns resting orders for symbol, empty on error.
	OpenOrders(ctx context.Context, symbol string) ([]model.OpenOrder, error)

	// TradeHistory returns executed fills for symbol, empty on error.
	TradeHistory(ctx context.Context, symbol string) ([]model.HistoricalTrade, error)

	// OrderBook returns a depth snapshot of the given depth, empty book on
	// error.
	OrderBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error)

	// Candles returns up to limit bars. If from/to are both non-zero (unix
	// ms), the window [from,to] is returned; otherwise the latest limit
	// bars. Empty slice on error.
	Candles(ctx context.Context, symbol, interval string, limit int, from, to int64) ([]model.Candle, error)

	// CandleStream starts (if not already running) a long-lived stream
	// producer for (symbol, interval) and returns a receiver plus an
	// unsubscribe func. The returned channel is a bounded broadcast; slow
	// consumers observe dropped bars rather than blocking the producer.
	CandleStream(ctx context.Context, symbol, interval string) (<-chan model.Candle, func(), error)

	// OrderBookStream is the book-update analogue of CandleStream.
	OrderBookStream(ctx context.Context, symbol string) (<-chan model.OrderBook, func(), error)
}
