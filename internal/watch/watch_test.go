package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, root string, match func(string) bool) <-chan []string {
	t.Helper()

	w, err := New(root, Options{Debounce: 50 * time.Millisecond, Match: match, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(paths []string) { batches <- paths })
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return batches
}

func waitFor(t *testing.T, batches <-chan []string, want string) []string {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch := <-batches:
			if slices.Contains(batch, want) {
				return batch
			}
		case <-deadline:
			t.Fatalf("no batch containing %s", want)
			return nil
		}
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, nil)

	page := filepath.Join(root, "index.html")
	if err := os.WriteFile(page, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, batches, page)
}

func TestWatcher_DebouncesIntoOneBatch(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, nil)

	a := filepath.Join(root, "a.html")
	b := filepath.Join(root, "b.html")
	_ = os.WriteFile(a, []byte("a"), 0o644)
	_ = os.WriteFile(b, []byte("b"), 0o644)

	batch := waitFor(t, batches, a)
	if !slices.Contains(batch, b) {
		t.Errorf("batch = %v, want both files", batch)
	}
	if !slices.IsSorted(batch) {
		t.Errorf("batch = %v, want sorted", batch)
	}
}

func TestWatcher_NewDirectories(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, nil)

	dir := filepath.Join(root, "nb")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	waitFor(t, batches, dir)

	page := filepath.Join(dir, "page.html")
	if err := os.WriteFile(page, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, batches, page)
}

func TestWatcher_Match(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root, func(p string) bool { return strings.HasSuffix(p, ".html") })

	_ = os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644)
	page := filepath.Join(root, "index.html")
	_ = os.WriteFile(page, []byte("<html></html>"), 0o644)

	batch := waitFor(t, batches, page)
	for _, p := range batch {
		if !strings.HasSuffix(p, ".html") {
			t.Errorf("unmatched path %s reported", p)
		}
	}
}

func TestNew_MissingRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing"), Options{}); err == nil {
		t.Error("New() on a missing directory should fail")
	}
}
