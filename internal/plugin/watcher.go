package plugin

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher observes the plugin directories and triggers a manager refresh
// when new plugins appear. Events are debounced so a plugin being copied
// in file by file produces a single refresh.
type Watcher struct {
	manager  *Manager
	logger   *zap.Logger
	roots    []string
	debounce time.Duration

	fsw *fsnotify.Watcher
}

// NewWatcher creates a watcher over the given plugin roots. Roots that do
// not exist are skipped; a refresh pass will still find them if they are
// created later and the watcher is restarted.
func NewWatcher(m *Manager, roots []string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		manager:  m,
		logger:   logger,
		roots:    roots,
		debounce: 500 * time.Millisecond,
		fsw:      fsw,
	}
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		if err := fsw.Add(root); err != nil {
			logger.Warn("watch plugin dir", zap.String("dir", root), zap.Error(err))
		}
	}
	return w, nil
}

// Run processes filesystem events until ctx is cancelled. Blocks; run it in
// a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				// Drain a fire that raced with this event so Reset
				// arms a full debounce window instead of delivering
				// a stale tick.
				if !timer.Stop() {
					select {
					case <-fire:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("plugin watcher", zap.Error(err))
		case <-fire:
			timer = nil
			fire = nil
			if n := w.manager.Refresh(ctx); n > 0 {
				w.logger.Info("plugins refreshed", zap.Int("loaded", n))
			}
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
