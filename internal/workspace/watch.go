package workspace

import (
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watcher short-circuits *when* the Sync Engine re-scans a repo root: the
// invariant-bearing sync pass itself stays poll-on-demand (spec.md §4.2),
// fsnotify only decides when to trigger it, mirroring how the teacher's
// internal/turso/daemon/watcher.go uses fsnotify to decide when to re-read
// jj's operation log rather than polling it on a timer.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// NewWatcher starts watching root (non-recursive; callers add
// subdirectories discovered during a sync pass via Add).
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw}, nil
}

// Add watches an additional directory discovered under the repo root.
func (w *Watcher) Add(dir string) error {
	return w.fsw.Add(dir)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run blocks, invoking onChange every time a write/create/remove/rename
// event fires under a watched directory, until the watcher is closed.
func (w *Watcher) Run(onChange func()) {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				onChange()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[watch] %v", err)
		}
	}
}
