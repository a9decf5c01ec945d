package kernel

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestWatcherReportsDebouncedChange(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	watched := writeKernel(t, dir, "watched.toml", "[[body]]\nid = 399\n")
	writeKernel(t, dir, "other.toml", "")

	w, err := NewWatcher([]string{watched})
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}
	w.Debounce = 150 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(path string) { changes <- path }, nil)
	}()

	writeKernel(t, dir, "other.toml", "[[body]]\nid = 1\n")
	for i := range 3 {
		writeKernel(t, dir, "watched.toml", "[[body]]\nid = 399\nname = \"v"+string(rune('0'+i))+"\"\n")
	}

	select {
	case got := <-changes:
		if got != watched {
			t.Fatalf("change for %q, want %q", got, watched)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no change reported")
	}

	select {
	case extra := <-changes:
		t.Fatalf("burst produced a second notification for %q", extra)
	case <-time.After(500 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestWatcherSetFilesFollowsNewKernels(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	first := writeKernel(t, root, "first.toml", "")
	subdir := filepath.Join(root, "extra")
	if err := os.Mkdir(subdir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	added := writeKernel(t, subdir, "added.toml", "")

	w, err := NewWatcher([]string{first})
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}
	w.Debounce = 100 * time.Millisecond
	if err := w.SetFiles([]string{first, added}); err != nil {
		t.Fatalf("SetFiles error: %v", err)
	}
	if got := w.Files(); !slices.Equal(got, []string{added, first}) {
		t.Fatalf("Files = %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan string, 8)
	go func() { _ = w.Run(ctx, func(path string) { changes <- path }, nil) }()

	writeKernel(t, subdir, "added.toml", "[[body]]\nid = 499\n")
	select {
	case got := <-changes:
		if got != added {
			t.Fatalf("change for %q, want %q", got, added)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no change reported for a file added by SetFiles")
	}
}
