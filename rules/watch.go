package rules

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/liamcoop/charges/internal/logger"
)

// WatchRulesFile reloads the rules file at path into en each time it is
// written, until ctx is cancelled. A file that fails to load or compile is
// logged and the previous rule set stays active.
func WatchRulesFile(ctx context.Context, en *Engine, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rules watcher: %w", err)
	}

	// Editors often replace the file, so watch its directory.
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloadRules(en, path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Rules watcher error", "error", err)
			}
		}
	}()

	return nil
}

func reloadRules(en *Engine, path string) {
	loaded, err := LoadRules(path)
	if err != nil {
		logger.Warn("Keeping previous rules", "path", path, "error", err)
		return
	}
	if err := en.ReplaceRules(loaded); err != nil {
		logger.Warn("Keeping previous rules", "path", path, "error", err)
		return
	}
	logger.Info("Reloaded risk factor rules", "path", path, "count", len(loaded))
}
