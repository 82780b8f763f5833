package sqlite

import (
	"path/filepath"
	"testing"
)

func TestSaveAndReadLatestSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "checkpoint.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if got, err := s.ReadLatestSnapshotJSON("BTCUSDT@1m"); err != nil || got != nil {
		t.Fatalf("expected no snapshot yet, got %v err %v", got, err)
	}

	if err := s.SaveSnapshotJSON("BTCUSDT@1m", []byte(`{"seq":1}`)); err != nil {
		t.Fatalf("SaveSnapshotJSON: %v", err)
	}
	if err := s.SaveSnapshotJSON("BTCUSDT@1m", []byte(`{"seq":2}`)); err != nil {
		t.Fatalf("SaveSnapshotJSON: %v", err)
	}

	got, err := s.ReadLatestSnapshotJSON("BTCUSDT@1m")
	if err != nil {
		t.Fatalf("ReadLatestSnapshotJSON: %v", err)
	}
	if string(got) != `{"seq":2}` {
		t.Fatalf("expected latest snapshot, got %s", got)
	}

	if got, err := s.ReadLatestSnapshotJSON("ETHUSDT@1m"); err != nil || got != nil {
		t.Fatalf("expected no snapshot for unrelated run_id, got %v err %v", got, err)
	}
}
