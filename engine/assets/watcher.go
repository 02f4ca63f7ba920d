package assets

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yumekawa-dev/kanade/engine/core"
)

// Watcher observes asset files on disk and enqueues an event when one is
// rewritten, letting the frame loop pick the change up at a safe point.
type Watcher struct {
	inner *fsnotify.Watcher
	done  chan struct{}

	mu      sync.Mutex
	watched map[string]struct{}
}

func NewWatcher() (*Watcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create asset watcher: %w", err)
	}
	w := &Watcher{
		inner:   inner,
		watched: make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch registers a file for change notifications. The parent directory is
// watched because editors typically replace files by rename, which drops
// a direct file watch.
func (w *Watcher) Watch(path string) error {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	w.mu.Lock()
	w.watched[absolute] = struct{}{}
	w.mu.Unlock()
	if err := w.inner.Add(filepath.Dir(absolute)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	core.LogDebug("watching %s for changes", absolute)
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.inner.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			absolute, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			w.mu.Lock()
			_, tracked := w.watched[absolute]
			w.mu.Unlock()
			if !tracked {
				continue
			}
			core.EventEnqueue(core.EventContext{
				Type: core.EVENT_CODE_ASSET_CHANGED,
				Data: &core.AssetChangedEvent{Path: absolute},
			})
		case err, ok := <-w.inner.Errors:
			if !ok {
				return
			}
			core.LogWarn("asset watcher: %v", err)
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.inner.Close()
}
