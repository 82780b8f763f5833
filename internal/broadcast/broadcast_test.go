package broadcast

import (
	"context"
	"testing"
	"time"
)

func TestHub_DeliversToAllSubscribers(t *testing.T) {
	h := NewHub[int](4, nil)
	ch1, _ := h.Subscribe()
	ch2, _ := h.Subscribe()

	input := make(chan int, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx, input)

	input <- 42

	select {
	case v := <-ch1:
		if v != 42 {
			t.Fatalf("ch1: got %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on ch1")
	}
	select {
	case v := <-ch2:
		if v != 42 {
			t.Fatalf("ch2: got %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on ch2")
	}
}

func TestHub_DropsForLaggingSubscriber_NeverBlocksProducer(t *testing.T) {
	h := NewHub[int](1, nil)
	slow, _ := h.Subscribe()

	dropped := make(chan int, 8)
	h.OnDrop = func(id int) { dropped <- id }

	input := make(chan int)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx, input)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			input <- i
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer blocked on a lagging subscriber")
	}

	select {
	case <-dropped:
	case <-time.After(time.Second):
		t.Fatal("expected at least one drop notification")
	}
	_ = slow
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub[int](4, nil)
	ch, unsubscribe := h.Subscribe()
	unsubscribe()

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
	if h.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", h.SubscriberCount())
	}
}

func TestHub_RunClosesSubscribersOnInputClose(t *testing.T) {
	h := NewHub[int](4, nil)
	ch, _ := h.Subscribe()

	input := make(chan int)
	ctx := context.Background()
	go h.Run(ctx, input)
	close(input)

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed when input closes")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber channel to close")
	}
}
