package templates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces bursts of filesystem events into one reload.
const reloadDelay = 300 * time.Millisecond

// Watch reloads the template set whenever a file under the views directory
// changes, until ctx is done or Close is called. Failed reloads are logged and
// the previous set is kept. Watching a missing directory, or one that is
// already being watched, is a no-op.
func (r *Renderer) Watch(ctx context.Context) error {
	r.watchMu.Lock()
	watching := r.stop != nil
	r.watchMu.Unlock()
	if watching {
		return nil
	}
	if _, err := os.Stat(r.dir); err != nil {
		r.log.Infof("templates: not watching %s: %v", r.dir, err)
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("templates: fsnotify: %w", err)
	}
	if err := addDirsRecursive(watcher, r.dir, r.log); err != nil {
		_ = watcher.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.watchMu.Lock()
	if r.stop != nil {
		r.watchMu.Unlock()
		cancel()
		_ = watcher.Close()
		return nil
	}
	r.stop = func() error {
		cancel()
		<-done
		return nil
	}
	r.watchMu.Unlock()

	trigger, stopTimer := r.debouncedReload()
	go func() {
		defer close(done)
		defer stopTimer()
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if shouldIgnore(ev.Name) {
					continue
				}
				if ev.Op&fsnotify.Create == fsnotify.Create {
					if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
						_ = addDirsRecursive(watcher, ev.Name, r.log)
					}
				}
				trigger()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.log.Warnf("templates: watcher error: %v", err)
			}
		}
	}()
	r.log.Infof("templates: watching %s", r.dir)
	return nil
}

// Close stops a running watcher.
func (r *Renderer) Close() error {
	r.watchMu.Lock()
	stop := r.stop
	r.stop = nil
	r.watchMu.Unlock()
	if stop == nil {
		return nil
	}
	return stop()
}

func (r *Renderer) debouncedReload() (trigger func(), stop func()) {
	var mu sync.Mutex
	var timer *time.Timer
	trigger = func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDelay, func() {
			if err := r.Reload(); err != nil {
				r.log.Warnf("templates: reload failed, keeping previous set: %v", err)
				return
			}
			r.log.Infof("templates: reloaded %s", r.dir)
		})
	}
	stop = func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}
	return trigger, stop
}

func addDirsRecursive(w *fsnotify.Watcher, root string, log Logger) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				log.Warnf("templates: watch %s: %v", path, err)
			}
		}
		return nil
	})
}

// shouldIgnore skips hidden files and editor swap or backup files.
func shouldIgnore(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		(strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"))
}
