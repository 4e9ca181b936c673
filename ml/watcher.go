package ml

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchArtifact watches the model artifact on disk and logs when it changes.
// The loaded model stays immutable for the life of the process; the watcher
// only tells operators a restart is needed to pick up a new artifact.
// The returned func stops the watcher.
func WatchArtifact(path string, logger *zap.Logger) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors and atomic renames replace the file
	// rather than writing it in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					logger.Warn("model artifact changed on disk; restart to load it",
						zap.String("path", path),
						zap.String("op", event.Op.String()))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("model artifact watcher error", zap.Error(err))
			}
		}
	}()
	return watcher.Close, nil
}
