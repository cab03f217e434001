package view

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

const watchedOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// Watch clears the source cache whenever a file in the views directory
// changes. It blocks until ctx is done. Rendering never triggers it, so a
// process that does not call Watch keeps its sources for its lifetime.
func (engine *Engine) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("view: creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(engine.dir); err != nil {
		return fmt.Errorf("view: watching %s: %w", engine.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&watchedOps == 0 {
				continue
			}

			engine.ClearCache()
			engine.logger.Debug("view cache cleared", "path", event.Name, "op", event.Op.String())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			engine.logger.Warn("view watcher error", "error", err)
		}
	}
}
