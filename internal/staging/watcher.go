package staging

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher keeps a live inventory of the staging directory so the status
// endpoint reflects files dropped in out of band, not only uploads.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu      sync.Mutex
	files   map[string]struct{}
	done    chan struct{}
	started bool
}

// NewWatcher returns a Watcher over dir. Start must be called before Files
// returns live results.
func NewWatcher(dir string, logger *zap.Logger) *Watcher {
	return &Watcher{
		dir:    dir,
		logger: logger,
		files:  make(map[string]struct{}),
		done:   make(chan struct{}),
	}
}

// Start scans the directory and begins watching it. It runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	w.started = true
	w.mu.Unlock()

	if err := w.rescan(); err != nil {
		w.logger.Warn("initial staging scan failed", zap.Error(err))
	}
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("staging watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(ev.Name); err == nil && info.Mode().IsRegular() {
			w.mu.Lock()
			w.files[name] = struct{}{}
			w.mu.Unlock()
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.mu.Lock()
		delete(w.files, name)
		w.mu.Unlock()
	}
}

func (w *Watcher) rescan() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			w.files[e.Name()] = struct{}{}
		}
	}
	return nil
}

// Files returns the current inventory, sorted.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.files))
	for name := range w.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.started = false
	close(w.done)
	_ = w.watcher.Close()
}
