package skills

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Loader whenever a SKILL.md under one of its directories
// changes, so skill CRUD tools and manual edits take effect without a
// restart.
type Watcher struct {
	loader *Loader
	fsw    *fsnotify.Watcher
}

func NewWatcher(loader *Loader) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{loader: loader, fsw: fsw}
	for _, dir := range []string{loader.personalDir(), loader.globalDir, loader.extraDir} {
		if dir == "" {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			slog.Debug("skills watcher: directory not watchable yet", "dir", dir, "error", err)
		}
	}
	return w, nil
}

// Start reloads the skill set on every filesystem event, debounced by
// 500ms so a burst of writes (e.g. an editor save) triggers one reload.
func (w *Watcher) Start(ctx context.Context) error {
	go func() {
		var timer *time.Timer
		reload := func() {
			w.loader.Reload()
			slog.Debug("skills: reloaded after filesystem change")
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(500*time.Millisecond, reload)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				slog.Warn("skills watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (w *Watcher) Stop() {
	w.fsw.Close()
}
