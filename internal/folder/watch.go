package folder

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"ttshist/internal/history"
)

// Watch calls onChange after files matching filter are created, written,
// removed or renamed under dir. Bursts of events within debounce collapse
// into one call. Watch blocks until ctx is done.
func Watch(ctx context.Context, dir string, filter func(name string) bool, debounce time.Duration, logger history.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	logger.Info("watching folder", "dir", dir)

	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&relevant == 0 {
				continue
			}
			if filter != nil && !filter(filepath.Base(event.Name)) {
				continue
			}
			logger.Debug("folder event", "file", event.Name, "event", event.Op.String())
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("folder watch error", "dir", dir, "error", err)
		case <-timer.C:
			onChange()
		}
	}
}
