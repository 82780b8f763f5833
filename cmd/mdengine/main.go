// Command mdengine runs the live tick loop: one runner.Session per
// configured symbol against the Binance broker adapter and the Minimal
// reference strategy, an indicator checkpoint service per symbol, and a
// notification dispatcher forwarding emissions to Telegram/log.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"cryptotick/config"
	"cryptotick/internal/broker"
	"cryptotick/internal/broker/binance"
	"cryptotick/internal/execution"
	"cryptotick/internal/indicator/checkpoint"
	"cryptotick/internal/logger"
	"cryptotick/internal/metrics"
	"cryptotick/internal/notification"
	"cryptotick/internal/ring"
	"cryptotick/internal/runner"
	"cryptotick/internal/store/sqlite"
	"cryptotick/internal/strategy"
)

func main() {
	log := logger.Init("mdengine", slog.LevelInfo)
	log.Info("mdengine: starting")

	cfg := config.Load()
	symbols := cfg.ParseSymbols()
	log.Info("mdengine: configuration loaded", slog.Any("symbols", symbols), slog.String("interval", cfg.Interval))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	prom := metrics.New()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr)
	metricsSrv.Start()
	log.Info("mdengine: metrics server listening", slog.String("addr", cfg.MetricsAddr))

	broker := binance.New(binance.Credentials{
		APIKey:     cfg.BinanceAPIKey,
		SecretKey:  cfg.BinanceSecretKey,
		TOTPSecret: os.Getenv("BINANCE_TOTP_SECRET"),
	}, log)
	broker.SetMetrics(prom)

	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	checkpointStore, err := sqlite.Open(cfg.SQLitePath, log)
	if err != nil {
		log.Error("mdengine: checkpoint store init failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer checkpointStore.Close()

	journal, err := execution.NewJournal(filepath.Join(filepath.Dir(cfg.SQLitePath), "journal.db"))
	if err != nil {
		log.Error("mdengine: journal init failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer journal.Close()

	var notifiers []notification.Notifier
	notifiers = append(notifiers, notification.NewLogNotifier())
	if cfg.TeloxideToken != "" {
		chatID := os.Getenv("TELOXIDE_CHAT_ID")
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TeloxideToken, chatID))
		log.Info("mdengine: telegram notifications enabled")
	}
	dispatcher := notification.NewDispatcher(log, notifiers...)

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		symbol := symbol
		strat := strategy.NewMinimal(log)

		sess := &runner.Session[strategy.MinimalState]{
			Symbol:   symbol,
			Interval: cfg.Interval,
			Broker:   broker,
			Strategy: strat,
			Log:      log,
			Metrics:  prom,
			EmissionObserver: func(e runner.Emission) {
				dispatcher.Notify(e)
				if e.Action.Emitted {
					if err := journal.Record(e.Action.Action); err != nil {
						log.Error("mdengine: journal record failed", slog.Any("err", err))
					}
				}
			},
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("mdengine: session starting", slog.String("symbol", symbol))
			if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("mdengine: session ended with error", slog.String("symbol", symbol), slog.Any("err", err))
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			runCheckpoint(ctx, broker, symbol, cfg.Interval, checkpointStore, log)
		}()
	}

	log.Info("mdengine: all sessions started", slog.Int("count", len(symbols)))

	<-sigCh
	log.Info("mdengine: shutdown signal received")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("mdengine: shutdown timed out waiting for sessions")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	log.Info("mdengine: shutdown complete")
}

// runCheckpoint subscribes a second, independent consumer to the symbol's
// candle stream (the broadcast hub inside the adapter supports arbitrarily
// many) and periodically snapshots the Indicator Bank over its own ring, so
// checkpointing never competes with the trading session's hot path.
func runCheckpoint(ctx context.Context, b broker.Broker, symbol, interval string, store *sqlite.Store, log *slog.Logger) {
	ch, unsubscribe, err := b.CandleStream(ctx, symbol, interval)
	if err != nil {
		log.Error("mdengine: checkpoint stream subscribe failed", slog.String("symbol", symbol), slog.Any("err", err))
		return
	}
	defer unsubscribe()

	r := ring.New(2000)
	runID := symbol + "@" + interval

	if snap, err := checkpoint.Load(store, runID); err != nil {
		log.Error("mdengine: checkpoint warm-start failed", slog.String("run_id", runID), slog.Any("err", err))
	} else if snap != nil {
		for _, c := range snap.Candles {
			r.Upsert(c)
		}
		log.Info("mdengine: checkpoint warm-started", slog.String("run_id", runID), slog.Int("candles", len(snap.Candles)))
	}

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
