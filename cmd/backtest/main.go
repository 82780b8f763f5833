// Command backtest replays historical candles fetched from the broker's
// REST endpoint through the Indicator Bank and the Minimal reference
// strategy, printing every emitted action. It never places an order — the
// system's order-execution boundary is a non-goal everywhere, including
// here — it only demonstrates that the same pure indicator/strategy code
// used live produces sane output over a known history.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=BTCUSDT --interval=1h --limit=500
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"cryptotick/internal/broker/binance"
	"cryptotick/internal/indicator"
	"cryptotick/internal/model"
	"cryptotick/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	symbol := flag.String("symbol", "BTCUSDT", "Symbol to replay")
	interval := flag.String("interval", "1h", "Candle interval")
	limit := flag.Int("limit", 500, "Number of historical candles to fetch")
	from := flag.Int64("from", 0, "Unix ms start time (0=exchange default)")
	to := flag.Int64("to", 0, "Unix ms end time (0=exchange default)")
	flag.Parse()

	slogLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	b := binance.New(binance.Credentials{
		APIKey:    os.Getenv("BINANCE_API_KEY"),
		SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
	}, slogLogger)

	candles, err := b.Candles(context.Background(), *symbol, *interval, *limit, *from, *to)
	if err != nil {
		log.Fatalf("[backtest] fetch candles failed: %v", err)
	}
	if len(candles) == 0 {
		log.Fatal("[backtest] no candles returned")
	}
	log.Printf("[backtest] replaying %d candles for %s@%s", len(candles), *symbol, *interval)

	strat := strategy.NewMinimal(slogLogger)
	state := strat.InitialState()
	sctx, state := strat.Init(model.NewStrategyContext(), state)

	emissions := 0
	for i := range candles {
		window := candles[:i+1]
		bar := candles[i]

		var newState strategy.MinimalState
		var action model.StrategyAction
		sctx, newState, action = strat.Tick(sctx, bar.TS(), state, *symbol, window, bar)
		state = newState

		if action.Emitted {
			emissions++
			fmt.Printf("  [%s] %s %s amount=%.8f close=%.2f\n",
				bar.TS().Format("2006-01-02 15:04:05"), action.Action.ID, *symbol, action.Action.Amount, bar.Close)
		}
	}
	sctx, state = strat.End(sctx, state)
	fmt.Printf("  open trades remaining : %d\n", len(sctx.OpenTrades()))

	last := candles[len(candles)-1]
	window := candles
	ema := indicator.EMA(window, 20)
	rsi := indicator.RSI(window, 14)
	atr := indicator.ATR(window, 14)
	macd := indicator.MACD(window, 12, 26, 9)
	st := indicator.SuperTrend(window, 10, 3.0)

	fmt.Println()
	fmt.Println("backtest complete")
	fmt.Printf("  candles processed : %d\n", len(candles))
	fmt.Printf("  actions emitted   : %d\n", emissions)
	fmt.Printf("  final close       : %.2f\n", last.Close)
	fmt.Printf("  EMA(20)           : %.4f\n", ema)
	fmt.Printf("  RSI(14)           : %.4f\n", rsi)
	fmt.Printf("  ATR(14)           : %.4f\n", atr)
	fmt.Printf("  MACD              : macd=%.4f signal=%.4f hist=%.4f\n", macd.Macd, macd.Signal, macd.Histogram)
	fmt.Printf("  SuperTrend        : value=%.4f trend=%d\n", st.Value, st.Trend)
}
