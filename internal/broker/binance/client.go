// Package binance is the one concrete Broker Port adapter: REST via
// github.com/adshao/go-binance/v2 for blocking/backfill calls, and a raw
// github.com/gorilla/websocket reconnect loop (not the library's built-in
// stream helpers) for candle_stream/order_book_stream, so the adapter keeps
// exact control over the documented 1s->60s capped backoff sequence.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pquerna/otp/totp"

	"cryptotick/internal/broadcast"
	"cryptotick/internal/metrics"
	"cryptotick/internal/model"
)

// Credentials are read from the environment at construction time (see
// config.Config). A zero-value Credentials leaves the adapter read-only:
// candles/order book/public price calls still work, account-scoped calls
// return their documented empty sentinel with a logged error.
type Credentials struct {
	APIKey    string
	SecretKey string

	// TOTPSecret is an optional TOTP secret that currentTOTP turns into a
	// code. Binance itself does not require TOTP for REST/WS auth, and the
	// adapter performs no credential refresh with it.
	TOTPSecret string
}

func (c Credentials) hasAccountAccess() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

// currentTOTP returns the current 30s TOTP code for the configured secret,
// or "" if no secret is configured. Never called on Binance's own REST/WS
// paths; kept for operators who front Binance with a TOTP-gated proxy.
func (c Credentials) currentTOTP() string {
	if c.TOTPSecret == "" {
		return ""
	}
	code, err := totp.GenerateCode(c.TOTPSecret, time.Now())
	if err != nil {
		return ""
	}
	return code
}

// Adapter is the Binance Broker Port implementation.
type Adapter struct {
	creds   Credentials
	rest    *binance.Client
	log     *slog.Logger
	metrics *metrics.Metrics

	wsBaseURL string

	mu            sync.Mutex
	candleHubs    map[string]*broadcast.Hub[model.Candle]
	bookHubs      map[string]*broadcast.Hub[model.OrderBook]
	candleCancels map[string]context.CancelFunc
	bookCancels   map[string]context.CancelFunc
}

// SetMetrics attaches a metrics sink for stream reconnects/drops. Optional —
// a nil sink (the default) simply skips instrumentation.
func (a *Adapter) SetMetrics(m *metrics.Metrics) { a.metrics = m }

// New constructs an Adapter. creds may be zero-value for read-only use.
func New(creds Credentials, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		creds:         creds,
		rest:          binance.NewClient(creds.APIKey, creds.SecretKey),
		log:           log,
		wsBaseURL:     "wss://stream.binance.com:9443/ws",
		candleHubs:    make(map[string]*broadcast.Hub[model.Candle]),
		bookHubs:      make(map[string]*broadcast.Hub[model.OrderBook]),
		candleCancels: make(map[string]context.CancelFunc),
		bookCancels:   make(map[string]context.CancelFunc),
	}
}

func (a *Adapter) Balance(ctx context.Context) (map[string]float64, error) {
	out := map[string]float64{}
	if !a.creds.hasAccountAccess() {
		a.log.Warn("binance: balance requested without credentials, returning empty sentinel")
		return out, nil
	}

	acct, err := a.rest.NewGetAccountService().Do(ctx)
	if err != nil {
		a.log.Error("binance: balance call failed", slog.Any("err", err))
		return out, nil
	}
	for _, b := range acct.Balances {
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil || free <= 0 {
			continue
		}
		out[b.Asset] = free
	}
	return out, nil
}

func (a *Adapter) MarketCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := a.rest.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil || len(prices) == 0 {
		a.log.Error("binance: current price call failed", slog.String("symbol", symbol), slog.Any("err", err))
		return 0.0, nil
	}
	p, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0.0, nil
	}
	return p, nil
}

func (a *Adapter) OpenOrders(ctx context.Context, symbol string) ([]model.OpenOrder, error) {
	if !a.creds.hasAccountAccess() {
		a.log.Warn("binance: open_orders requested without credentials, returning empty sentinel")
		return nil, nil
	}
	orders, err := a.rest.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		a.log.Error("binance: open_orders call failed", slog.String("symbol", symbol), slog.Any("err", err))
		return nil, nil
	}
	out := make([]model.OpenOrder, 0, len(orders))
	for _, o := range orders {
		price, _ := strconv.ParseFloat(o.Price, 64)
		qty, _ := strconv.ParseFloat(o.OrigQuantity, 64)
		out = append(out, model.OpenOrder{
			OrderID:  o.OrderID,
			Symbol:   o.Symbol,
			Side:     string(o.Side),
			Price:    price,
			Quantity: qty,
			Status:   string(o.Status),
		})
	}
	return out, nil
}

func (a *Adapter) TradeHistory(ctx context.Context, symbol string) ([]model.HistoricalTrade, error) {
	if !a.creds.hasAccountAccess() {
		a.log.Warn("binance: trade_history requested without credentials, returning empty sentinel")
		return nil, nil
	}
	trades, err := a.rest.NewListTradesService().Symbol(symbol).Do(ctx)
	if err != nil {
		a.log.Error("binance: trade_history call failed", slog.String("symbol", symbol), slog.Any("err", err))
		return nil, nil
	}
	out := make([]model.HistoricalTrade, 0, len(trades))
	for _, tr := range trades {
		price, _ := strconv.ParseFloat(tr.Price, 64)
		qty, _ := strconv.ParseFloat(tr.Quantity, 64)
		out = append(out, model.HistoricalTrade{
			ID:       tr.ID,
			Symbol:   symbol,
			Price:    price,
			Quantity: qty,
			IsBuyer:  tr.IsBuyer,
			Time:     tr.Time,
		})
	}
	return out, nil
}

func (a *Adapter) OrderBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error) {
	res, err := a.rest.NewDepthService().Symbol(symbol).Limit(depth).Do(ctx)
	if err != nil {
		a.log.Error("binance: order_book call failed", slog.String("symbol", symbol), slog.Any("err", err))
		return model.OrderBook{Symbol: symbol}, nil
	}

	book := model.OrderBook{
		Symbol:       symbol,
		LastUpdateID: res.LastUpdateID,
		Bids:         make([]model.BookLevel, 0, len(res.Bids)),
		Asks:         make([]model.BookLevel, 0, len(res.Asks)),
	}
	for _, b := range res.Bids {
		price, _ := strconv.ParseFloat(b.Price, 64)
		qty, _ := strconv.ParseFloat(b.Quantity, 64)
		book.Bids = append(book.Bids, model.BookLevel{Price: price, Quantity: qty})
	}
	for _, ask := range res.Asks {
		price, _ := strconv.ParseFloat(ask.Price, 64)
		qty, _ := strconv.ParseFloat(ask.Quantity, 64)
		book.Asks = append(book.Asks, model.BookLevel{Price: price, Quantity: qty})
	}
	return book, nil
}

func (a *Adapter) Candles(ctx context.Context, symbol, interval string, limit int, from, to int64) ([]model.Candle, error) {
	svc := a.rest.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
	if from != 0 && to != 0 {
		svc = svc.StartTime(from).EndTime(to)
	}
	klines, err := svc.Do(ctx)
	if err != nil {
		a.log.Error("binance: candles call failed", slog.String("symbol", symbol), slog.Any("err", err))
		return nil, nil
	}

	out := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		c, ok := klineToCandle(symbol, k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func klineToCandle(symbol string, openTime, closeTime int64, open, high, low, close_, volume string) (model.Candle, bool) {
	o, err1 := strconv.ParseFloat(open, 64)
	h, err2 := strconv.ParseFloat(high, 64)
	l, err3 := strconv.ParseFloat(low, 64)
	c, err4 := strconv.ParseFloat(close_, 64)
	v, err5 := strconv.ParseFloat(volume, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return model.Candle{}, false
	}
	return model.Candle{
		Symbol: symbol, Open: o, High: h, Low: l, Close: c, Volume: v,
		Timestamp: closeTime,
	}, true
}

func streamSymbol(symbol string) string { return strings.ToLower(symbol) }

func wsKlineURL(base, symbol, interval string) string {
	return fmt.Sprintf("%s/%s@kline_%s", base, streamSymbol(symbol), interval)
}

func wsDepthURL(base, symbol string) string {
	return fmt.Sprintf("%s/%s@depth", base, streamSymbol(symbol))
}
