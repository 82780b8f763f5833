package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cryptotick/internal/model"
	"cryptotick/internal/ring"
	"cryptotick/internal/store/sqlite"
)

func seedRing(r *ring.Ring, n int) {
	base := int64(1_700_000_000_000)
	price := 100.0
	for i := 0; i < n; i++ {
		price += 1
		r.Upsert(model.Candle{
			Symbol: "BTCUSDT", Open: price - 1, High: price + 1, Low: price - 2,
			Close: price, Volume: 10, Timestamp: base + int64(i)*60_000,
		})
	}
}

func TestServiceTickPersistsSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.Open(filepath.Join(dir, "checkpoint.db"), nil)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	defer store.Close()

	r := ring.New(50)
	seedRing(r, 30)

	params := DefaultParams("BTCUSDT@1m", "BTCUSDT")
	svc := New(params, r, store, nil)
	svc.tick()

	if svc.Last() == nil {
		t.Fatal("expected Last() to be populated after tick")
	}
	if svc.Last().Symbol != "BTCUSDT" {
		t.Fatalf("unexpected symbol: %s", svc.Last().Symbol)
	}

	loaded, err := Load(store, "BTCUSDT@1m")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil || len(loaded.Candles) != 30 {
		t.Fatalf("expected persisted snapshot with 30 candles, got %+v", loaded)
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.Open(filepath.Join(dir, "checkpoint.db"), nil)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	defer store.Close()

	r := ring.New(50)
	seedRing(r, 20)

	params := DefaultParams("ETHUSDT@1m", "ETHUSDT")
	params.Interval = 10 * time.Millisecond
	svc := New(params, r, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { svc.Run(ctx); close(done) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
	if svc.Last() == nil {
		t.Fatal("expected at least one snapshot before cancellation")
	}
}

func TestLoadReturnsNilWhenNoSnapshotExists(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.Open(filepath.Join(dir, "checkpoint.db"), nil)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	defer store.Close()

	loaded, err := Load(store, "UNKNOWN@1m")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil snapshot for unknown run_id, got %+v", loaded)
	}
}
