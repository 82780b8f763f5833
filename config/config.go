// Package config loads process configuration from the ambient environment:
// a single Load() at process start, getEnv with a fallback for everything
// optional, and an explicit Must* accessor for the one thing that is
// fatal-if-missing but only for the binary that actually needs it.
package config

import (
	"log"
	"os"
	"strings"
)

// Config holds configuration shared by every cryptotick binary. Not every
// field is required by every binary — a field is empty when its env var is
// unset and no fallback applies; callers decide whether that's fatal.
type Config struct {
	// Binance credentials. Optional: absence degrades internal/broker/binance
	// to read-only (public candles/book) rather than failing startup.
	BinanceAPIKey    string
	BinanceSecretKey string

	// OpenRouterAPIKey is loaded from OPENROUTER_API_KEY. No chat DAG node
	// reads it: the nodes are stubs that never call a model.
	OpenRouterAPIKey string

	// DatabaseURL backs the chat session store (internal/chat/session).
	// Required for the api_gateway binary; see MustDatabaseURL.
	DatabaseURL string

	// TeloxideToken is the Telegram bot token for internal/notification.
	// Optional: unset disables Telegram delivery, alerts still log.
	TeloxideToken string

	// SQLitePath backs the indicator checkpoint store
	// (internal/indicator/checkpoint).
	SQLitePath string

	// MetricsAddr is where internal/metrics.Server listens.
	MetricsAddr string

	// GatewayAddr is where the HTTP+WS façade (cmd/api_gateway) listens.
	GatewayAddr string

	// Symbols is the comma-separated list of symbols the live engine
	// (cmd/mdengine) runs a Session for, e.g. "BTCUSDT,ETHUSDT".
	Symbols string

	// Interval is the kline interval every Session in this process uses,
	// e.g. "1m".
	Interval string
}

// Load reads configuration from environment variables with sensible
// defaults. Binance credentials, OPENROUTER_API_KEY, TELOXIDE_TOKEN and
// DATABASE_URL are all intentionally optional here — only the binary that
// needs a given var (MustDatabaseURL for cmd/api_gateway's chat persistence)
// treats its absence as fatal.
func Load() *Config {
	return &Config{
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceSecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		TeloxideToken:    os.Getenv("TELOXIDE_TOKEN"),

		SQLitePath:  getEnv("SQLITE_PATH", "data/cryptotick.db"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr: getEnv("GATEWAY_ADDR", ":8080"),

		Symbols:  getEnv("SYMBOLS", "BTCUSDT"),
		Interval: getEnv("INTERVAL", "1m"),
	}
}

// ParseSymbols splits Symbols into a clean, non-empty slice.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MustDatabaseURL returns DatabaseURL or terminates the process. Only
// cmd/api_gateway calls this — chat session persistence is the one
// capability in the system that has no degraded mode.
func (c *Config) MustDatabaseURL() string {
	if c.DatabaseURL == "" {
		log.Fatal("[config] DATABASE_URL is required for chat session persistence")
	}
	return c.DatabaseURL
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
