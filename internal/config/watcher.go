package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stlalpha/vision3/internal/logging"
)

// debounceDuration gives enough slack to coalesce an editor's sequence of
// write/rename events into one reload.
const debounceDuration = 500 * time.Millisecond

// reloadTag satisfies logging's modeTagger for watcher log lines, which are
// not associated with a session mode.
type reloadTag struct{}

func (reloadTag) String() string { return "[CONFIG]" }

// Watcher watches a config file for changes and invokes onReload with the
// freshly loaded Config after each debounced change.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	path     string
	onReload func(Config)
	done     chan struct{}
}

// NewWatcher starts watching path's containing directory (fsnotify cannot
// reliably watch a single file across editor-style replace-on-save writes)
// and calls onReload with each successfully parsed update.
func NewWatcher(path string, onReload func(Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		path:     path,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Stop halts the watcher. Safe to call once; a second call is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
		return
	default:
		close(w.done)
	}
	w.fsw.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	target, err := filepath.Abs(w.path)
	if err != nil {
		target = w.path
	}

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			evPath, err := filepath.Abs(ev.Name)
			if err != nil {
				evPath = ev.Name
			}
			if evPath != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDuration, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Errorf(reloadTag{}, "watcher error: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.Errorf(reloadTag{}, "reload of %s failed, keeping previous config: %v", w.path, err)
		return
	}
	logging.Infof(reloadTag{}, "reloaded %s", w.path)
	w.onReload(cfg)
}
