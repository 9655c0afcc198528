package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("gateway:\n  url: ws://localhost:18789\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, err := NewWatcher(writeTestConfig(t))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	w.Stop()
	w.Stop() // second Stop must be a no-op, not a double close
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := NewWatcher(writeTestConfig(t))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
}
