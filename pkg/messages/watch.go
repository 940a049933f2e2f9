package messages

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/marmos91/authkeep/internal/logger"
)

// Watch reloads the catalogue whenever its file is written or replaced,
// until ctx is cancelled. The directory is watched rather than the file so
// editors that save by rename are picked up.
func (m *Messages) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(m.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch messages directory: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(m.File()) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := m.Reload(); err != nil {
					logger.Warn("Failed to reload messages", logger.Err(err))
					continue
				}
				logger.Info("Messages reloaded", logger.KeyPath, event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Messages watcher error", logger.Err(err))
			}
		}
	}()
	return nil
}
