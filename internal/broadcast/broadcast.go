// Package broadcast provides a bounded, multi-consumer fan-out primitive for
// live broker streams: one producer, any number of attach/detach consumers,
// lag-drop semantics so a slow consumer never blocks the producer.
package broadcast

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultCapacity is the minimum per-consumer channel capacity required
// for broker streams (candle_stream / order_book_stream).
const DefaultCapacity = 1024

// Hub fans out values of type T from a single producer to N subscribers.
// Subscribers that fall behind have messages dropped for them rather than
// blocking the producer or other subscribers.
type Hub[T any] struct {
	mu       sync.RWMutex
	subs     map[int]chan T
	nextID   int
	capacity int
	log      *slog.Logger

	// OnDrop, if set, is called with the subscriber id whenever a message is
	// dropped for a lagging consumer, instead of the default log line.
	OnDrop func(subscriberID int)
}

// NewHub creates a Hub with the given per-subscriber channel capacity. A
// capacity <= 0 is raised to DefaultCapacity.
func NewHub[T any](capacity int, log *slog.Logger) *Hub[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub[T]{
		subs:     make(map[int]chan T),
		capacity: capacity,
		log:      log,
	}
}

// Subscribe attaches a new consumer and returns its receive-only channel plus
// an unsubscribe function. Consumers may attach and detach freely at any
// time, including while Run is active.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan T, h.capacity)
	h.subs[id] = ch

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

// Publish delivers v to every current subscriber, dropping it for any whose
// channel is full rather than blocking.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- v:
		default:
			if h.OnDrop != nil {
				h.OnDrop(id)
			} else {
				h.log.Warn("broadcast: subscriber lagging, dropping message", slog.Int("subscriber_id", id))
			}
		}
	}
}

// Run reads from input and Publishes every value until ctx is cancelled or
// input is closed, then closes every subscriber channel. Run owns the
// subscriber channels' lifetime — subscribers observe a closed channel when
// the producer side shuts down.
func (h *Hub[T]) Run(ctx context.Context, input <-chan T) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-input:
			if !ok {
				return
			}
			h.Publish(v)
		}
	}
}

func (h *Hub[T]) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}

// SubscriberCount reports the number of currently attached consumers.
func (h *Hub[T]) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
