package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher notifies on writes to mutaforge.yaml while a run is in progress.
// Mirrors the debounced single-file variant of the teacher corpus's
// filesystem change detectors (giantswarm/muster's FilesystemDetector):
// mutaforge does not hot-reload an in-flight run's Config (the Planner
// Agent treats it as an immutable, once-loaded value per spec.md §9), so
// the Watcher's only job is to warn an operator that a restart is needed to
// pick up edits.
type Watcher struct {
	path     string
	debounce time.Duration
}

// NewWatcher constructs a Watcher over configDir's mutaforge.yaml.
func NewWatcher(configDir string) *Watcher {
	return &Watcher{path: filepath.Join(configDir, "mutaforge.yaml"), debounce: 500 * time.Millisecond}
}

// Start watches until ctx is cancelled, logging a warning once per
// debounce window whenever the file is written.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return err
	}

	go func() {
		defer fw.Close()
		var pending *time.Timer
		for {
			select {
			case <-ctx.Done():
				if pending != nil {
					pending.Stop()
				}
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(w.debounce, func() {
					slog.Warn("configuration file changed on disk; restart to apply", "path", w.path)
				})
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				slog.Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
