package kernel

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before a change is
// reported.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports changes to furnished kernel files. Editors often write a
// file in several steps, so events are debounced per file and a burst of
// writes yields one notification.
type Watcher struct {
	Debounce time.Duration

	mu      sync.Mutex
	files   map[string]bool
	dirs    map[string]bool
	watcher *fsnotify.Watcher
}

// NewWatcher watches the directories holding files. Only events for the
// listed files are reported.
func NewWatcher(files []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{Debounce: DefaultDebounce, watcher: fw}
	if err := w.SetFiles(files); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// SetFiles replaces the watched file set. Directories no longer holding a
// watched file are dropped. It may be called from onChange, for instance
// after a reload furnished new files through a metakernel.
func (w *Watcher) SetFiles(files []string) error {
	next := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		next[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for dir := range dirs {
		if w.dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	for dir := range w.dirs {
		if !dirs[dir] {
			_ = w.watcher.Remove(dir)
		}
	}
	w.files, w.dirs = next, dirs
	return nil
}

// Files returns the absolute paths currently watched.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

func (w *Watcher) watches(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[name]
}

// Run delivers the paths of changed files to onChange until ctx is done.
// onChange runs on the watcher goroutine. Watch errors go to onError when
// it is non-nil.
func (w *Watcher) Run(ctx context.Context, onChange func(path string), onError func(error)) error {
	defer w.watcher.Close()

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(event.Name)
			if !w.watches(name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending[name] = time.Now()
			}

		case now := <-ticker.C:
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					delete(pending, file)
					onChange(file)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
