// Command indengine runs the indicator checkpoint service standalone: for
// every configured symbol it subscribes to the Binance candle stream and
// periodically persists Indicator Bank snapshots, without running a
// trading session. Useful for warm-starting a later mdengine run, or for
// serving checkpointed indicator reads without paying for strategy
// evaluation.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"cryptotick/config"
	"cryptotick/internal/broker"
	"cryptotick/internal/broker/binance"
	"cryptotick/internal/indicator/checkpoint"
	"cryptotick/internal/logger"
	"cryptotick/internal/ring"
	"cryptotick/internal/store/sqlite"
)

func main() {
	log := logger.Init("indengine", slog.LevelInfo)
	log.Info("indengine: starting")

	cfg := config.Load()
	symbols := cfg.ParseSymbols()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	b := binance.New(binance.Credentials{
		APIKey:    cfg.BinanceAPIKey,
		SecretKey: cfg.BinanceSecretKey,
	}, log)

	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	store, err := sqlite.Open(cfg.SQLitePath, log)
	if err != nil {
		log.Error("indengine: store init failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer store.Close()

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		symbol := symbol
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSymbol(ctx, b, symbol, cfg.Interval, store, log)
		}()
	}
	log.Info("indengine: running", slog.Any("symbols", symbols))

	<-sigCh
	log.Info("indengine: shutdown signal received")
	cancel()
	wg.Wait()
	log.Info("indengine: shutdown complete")
}

func runSymbol(ctx context.Context, b broker.Broker, symbol, interval string, store *sqlite.Store, log *slog.Logger) {
	runID := symbol + "@" + interval

	backfill, err := b.Candles(ctx, symbol, interval, 1000, 0, 0)
	if err != nil {
		log.Error("indengine: backfill failed", slog.String("symbol", symbol), slog.Any("err", err))
	}
	r := ring.New(2000)
	for _, c := range backfill {
		r.Upsert(c)
	}

	ch, unsubscribe, err := b.CandleStream(ctx, symbol, interval)
	if err != nil {
		log.Error("indengine: subscribe failed", slog.String("symbol", symbol), slog.Any("err", err))
		return
	}
	defer unsubscribe()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case bar, ok := <-ch:
				if !ok {
					return
				}
				r.Upsert(bar)
			}
		}
	}()

	svc := checkpoint.New(checkpoint.DefaultParams(runID, symbol), r, store, log)
	svc.Run(ctx)
}
