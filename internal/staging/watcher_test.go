package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func waitForFiles(t *testing.T, w *Watcher, want int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		files := w.Files()
		if len(files) == want {
			return files
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("watcher never reached %d files, have %v", want, w.Files())
	return nil
}

func TestWatcherInventory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "seed.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(dir, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	files := waitForFiles(t, w, 1)
	if files[0] != "seed.txt" {
		t.Errorf("initial scan = %v", files)
	}

	if err := os.WriteFile(filepath.Join(dir, "added.txt"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForFiles(t, w, 2)

	if err := os.Remove(filepath.Join(dir, "seed.txt")); err != nil {
		t.Fatal(err)
	}
	files = waitForFiles(t, w, 1)
	if files[0] != "added.txt" {
		t.Errorf("after remove = %v", files)
	}
}
