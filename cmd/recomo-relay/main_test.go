package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunStopsOnCancel(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_PATH", filepath.Join(base, "storage"))

	configPath := filepath.Join(base, "config.toml")
	content := "[paths]\ndata_dir = \"" + filepath.Join(base, "data") + "\"\nlog_dir = \"" + filepath.Join(base, "logs") +
		"\"\n\n[relay]\nbind = \"127.0.0.1:0\"\n\n[logging]\nlevel = \"error\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, configPath) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	if _, err := os.Stat(filepath.Join(base, "storage")); err != nil {
		t.Fatalf("expected storage root to be created: %v", err)
	}
}
