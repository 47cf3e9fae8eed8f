package settings

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports external edits to the settings file. It never blocks:
// Changed drains whatever events fsnotify has queued.
type Watcher struct {
	w    *fsnotify.Watcher
	path string
}

// NewWatcher watches the directory holding path. The directory is watched
// rather than the file because saves replace the file by rename.
func NewWatcher(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{w: w, path: filepath.Clean(path)}, nil
}

// Changed reports whether the settings file was written, created, or
// replaced since the last call. Watch errors are returned after draining.
func (w *Watcher) Changed() (bool, error) {
	changed := false
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return changed, nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				changed = true
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return changed, nil
			}
			if err != nil {
				return changed, fmt.Errorf("watch %s: %w", w.path, err)
			}
		default:
			return changed, nil
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.w.Close()
}
