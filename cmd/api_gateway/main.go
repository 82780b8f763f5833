// Command api_gateway runs the HTTP+WebSocket façade: broker/strategy
// queries, the two WS stream relays, and the chat endpoint backed by the
// stub task DAG and a Postgres session store.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptotick/config"
	"cryptotick/internal/broker/binance"
	"cryptotick/internal/chat/dag"
	"cryptotick/internal/chat/session"
	"cryptotick/internal/gateway"
	"cryptotick/internal/logger"
	"cryptotick/internal/strategy"
)

func main() {
	log := logger.Init("api_gateway", slog.LevelInfo)
	log.Info("api_gateway: starting")

	cfg := config.Load()

	b := binance.New(binance.Credentials{
		APIKey:    cfg.BinanceAPIKey,
		SecretKey: cfg.BinanceSecretKey,
	}, log)

	chatGraph, err := dag.BuildChatGraph()
	if err != nil {
		log.Error("api_gateway: chat graph build failed", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chatStore, err := session.Open(ctx, cfg.MustDatabaseURL())
	if err != nil {
		log.Error("api_gateway: chat session store init failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer chatStore.Close()

	hub := gateway.NewHub(b, log)
	handlers := &gateway.Handlers{
		Broker:    b,
		Hub:       hub,
		ChatDAG:   chatGraph,
		Chat:      chatStore,
		Log:       log,
		Portfolio: strategy.NewMinimal(log).Portfolio(),
	}
	router := gateway.NewRouter(handlers)

	server := &http.Server{
		Addr:    cfg.GatewayAddr,
		Handler: router,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("api_gateway: listening", slog.String("addr", cfg.GatewayAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api_gateway: server error", slog.Any("err", err))
		}
	}()

	<-sigCh
	log.Info("api_gateway: shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	log.Info("api_gateway: shutdown complete")
}
