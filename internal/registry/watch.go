package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay is the quiet period after the last file event before
// the directory is reloaded.
const DefaultReloadDelay = 300 * time.Millisecond

type watcher struct {
	fs     *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// Watch reloads the registry whenever a template file in the directory is
// written, created, renamed or removed. onReload, if set, receives the type
// list after each successful reload. A second call replaces the first watch.
func (r *Registry) Watch(delay time.Duration, onReload func(types []string)) error {
	if r.dir == "" {
		return fmt.Errorf("watch templates: no directory configured")
	}
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch templates: %w", err)
	}
	if err := fw.Add(r.dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch templates %s: %w", r.dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{fs: fw, cancel: cancel, done: make(chan struct{})}

	r.watchMu.Lock()
	prev := r.watch
	r.watch = w
	r.watchMu.Unlock()
	prev.stop()

	go r.loop(ctx, w, delay, onReload)
	r.logger.Info("watching templates", "dir", r.dir)
	return nil
}

func (r *Registry) loop(ctx context.Context, w *watcher, delay time.Duration, onReload func([]string)) {
	defer close(w.done)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(delay, func() {
				if ctx.Err() != nil {
					return
				}
				if err := r.Load(); err != nil {
					r.logger.Warn("template reload failed", "err", err)
					return
				}
				r.logger.Info("templates reloaded", "trigger", filepath.Base(event.Name))
				if onReload != nil {
					onReload(r.Types())
				}
			})
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			r.logger.Warn("template watcher error", "err", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	ext := strings.ToLower(filepath.Ext(event.Name))
	if ext != ".toml" && ext != ".json" {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// Close stops watching. The loaded schemas stay available.
func (r *Registry) Close() {
	r.watchMu.Lock()
	w := r.watch
	r.watch = nil
	r.watchMu.Unlock()
	w.stop()
}

func (w *watcher) stop() {
	if w == nil {
		return
	}
	w.cancel()
	w.fs.Close()
	<-w.done
}
