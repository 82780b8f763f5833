// Package notification provides alert delivery to external channels
// (Telegram, webhooks, etc.) for emitted TradingActions and stream health
// events. Alert.Symbol/ActionID/Amount carry the TradingAction fields a
// backend wants to render directly rather than re-parse out of Message.
package notification

import (
	"context"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent. Symbol, ActionID and Amount
// are set when the alert originates from an emitted TradingAction and left
// zero for stream-health alerts (reconnects, drops) that have no associated
// symbol.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`

	Symbol   string  `json:"symbol,omitempty"`
	ActionID string  `json:"action_id,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}
