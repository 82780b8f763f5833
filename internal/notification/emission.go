package notification

import (
	"context"
	"fmt"
	"log/slog"

	"cryptotick/internal/runner"
)

// Dispatcher fans a runner's emissions out to every configured Notifier.
// A Session's EmissionObserver must not block, so Notify only hands off;
// callers wanting guaranteed delivery should use a buffered channel and
// a worker goroutine between the runner and the Dispatcher.
type Dispatcher struct {
	notifiers []Notifier
	log       *slog.Logger
}

// NewDispatcher builds a Dispatcher over the given notifiers. A nil or
// empty slice is valid and simply drops every emission.
func NewDispatcher(log *slog.Logger, notifiers ...Notifier) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{notifiers: notifiers, log: log}
}

// Notify converts an emission into an Alert and sends it to every notifier
// from a separate goroutine, so it returns without waiting on delivery.
// Pass results are logged at DEBUG and not otherwise forwarded — only an
// actual emitted action is worth an external alert.
func (d *Dispatcher) Notify(e runner.Emission) {
	if !e.Action.Emitted {
		d.log.Debug("emission: pass", slog.String("symbol", e.Symbol))
		return
	}

	alert := Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("%s: %s", e.Symbol, e.Action.Action.ID),
		Message: fmt.Sprintf("action=%s amount=%.8f at=%s",
			e.Action.Action.ID, e.Action.Action.Amount, e.At.Format("2006-01-02T15:04:05Z07:00")),
		Symbol:   e.Symbol,
		ActionID: e.Action.Action.ID,
		Amount:   e.Action.Action.Amount,
	}

	go func() {
		ctx := context.Background()
		for _, n := range d.notifiers {
			if err := n.Send(ctx, alert); err != nil {
				d.log.Error("emission: notify failed", slog.Any("err", err))
			}
		}
	}()
}
