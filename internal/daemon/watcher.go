package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"seqwatch/internal/config"
	"seqwatch/internal/logging"
)

const defaultDebounce = 2 * time.Second

// rootWatcher turns filesystem activity under the watched roots into
// debounced nudges. Each root and its immediate run directories are watched
// so both new directories and marker files such as CopyComplete.txt count.
type rootWatcher struct {
	watcher  *fsnotify.Watcher
	roots    map[string]struct{}
	debounce time.Duration
	nudge    func()
	logger   *slog.Logger
}

func newRootWatcher(roots []config.WatchedRoot, debounce time.Duration, nudge func(), logger *slog.Logger) (*rootWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	w := &rootWatcher{
		watcher:  fsWatcher,
		roots:    make(map[string]struct{}, len(roots)),
		debounce: debounce,
		nudge:    nudge,
		logger:   logger,
	}

	watched := 0
	for _, root := range roots {
		path := filepath.Clean(root.Path)
		if err := fsWatcher.Add(path); err != nil {
			logger.Debug("skip watch on root", logging.String(logging.FieldWatchRoot, path), logging.Error(err))
			continue
		}
		w.roots[path] = struct{}{}
		watched++
		entries, err := os.ReadDir(path)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				w.add(filepath.Join(path, entry.Name()))
			}
		}
	}
	if watched == 0 {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("no watched root could be added")
	}
	return w, nil
}

func (w *rootWatcher) add(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Debug("skip watch on directory", logging.String(logging.FieldPath, dir), logging.Error(err))
	}
}

func (w *rootWatcher) close() error {
	return w.watcher.Close()
}

func (w *rootWatcher) run(ctx context.Context) {
	var pending time.Time
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if _, isRoot := w.roots[filepath.Dir(event.Name)]; isRoot {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						w.add(event.Name)
					}
				}
			}
			pending = time.Now()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "filesystem watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches if this repeats"),
				logging.String(logging.FieldImpact, "some changes are only seen on the next interval poll"),
			)

		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= w.debounce {
				pending = time.Time{}
				w.nudge()
			}
		}
	}
}
