package llmroute

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 250 * time.Millisecond

// WatchConfig watches the config file and republishes the catalog on
// change. A broken config is logged and skipped; the previous snapshot
// stays active. Blocks until the context is cancelled or the watcher
// fails.
func (r *Router) WatchConfig(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors and config managers
	// replace files via rename, which drops a direct file watch.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	base := filepath.Base(path)
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce bursts of events for one save.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			cfg, err := LoadConfig(path)
			if err != nil {
				r.logger.Warn("config reload skipped", zap.String("path", path), zap.Error(err))
				continue
			}
			if err := r.Reload(cfg); err != nil {
				r.logger.Warn("config reload rejected", zap.String("path", path), zap.Error(err))
			}

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("config watcher error", zap.Error(werr))
		}
	}
}
