package portfind

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDir is where device nodes appear and disappear on Linux.
const DefaultWatchDir = "/dev"

// removalWatch records removals of candidate device nodes in a directory.
type removalWatch struct {
	watcher    *fsnotify.Watcher
	candidates map[string]bool

	mu      sync.Mutex
	removed []string
	done    chan struct{}
}

func startRemovalWatch(dir string, candidates []string) (*removalWatch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	rw := &removalWatch{
		watcher:    w,
		candidates: make(map[string]bool, len(candidates)),
		done:       make(chan struct{}),
	}
	for _, c := range candidates {
		rw.candidates[filepath.Clean(c)] = true
	}

	go rw.loop()
	return rw, nil
}

func (rw *removalWatch) loop() {
	defer close(rw.done)
	for {
		select {
		case ev, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Clean(ev.Name)
			if !rw.candidates[name] {
				continue
			}
			rw.mu.Lock()
			rw.removed = append(rw.removed, name)
			rw.mu.Unlock()
		case _, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Removed returns the candidate paths removed so far, in event order.
func (rw *removalWatch) Removed() []string {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return append([]string(nil), rw.removed...)
}

func (rw *removalWatch) Close() error {
	err := rw.watcher.Close()
	<-rw.done
	return err
}
