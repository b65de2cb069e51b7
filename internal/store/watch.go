package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultReloadDebounce = 50 * time.Millisecond

// startWatchLocked must be called with s.mu held.
func (s *Store) startWatchLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	path := s.backend.WatchPath(s.key)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("store watcher failed", zap.Error(err))
		return
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Warn("store watcher dir failed", zap.String("path", dir), zap.Error(err))
		_ = watcher.Close()
		return
	}
	// Watch the directory: writes replace the file through a rename.
	if err := watcher.Add(dir); err != nil {
		s.logger.Warn("store watcher add failed", zap.String("path", dir), zap.Error(err))
		_ = watcher.Close()
		return
	}
	go s.runWatcher(ctx, watcher, path)
}

func (s *Store) runWatcher(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer watcher.Close()

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				s.logger.Warn("store watcher error", zap.Error(err))
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(defaultReloadDebounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(defaultReloadDebounce)
		case <-timerChan(timer):
			timer = nil
			s.reload(ctx)
		}
	}
}

func (s *Store) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	data, _, err := s.backend.Get(s.key)
	if err != nil {
		s.logger.Warn("store reload failed", zap.Error(err))
		return
	}
	if !s.remember(data) {
		return
	}
	tools, err := decode(data)
	if err != nil {
		s.logger.Warn("store reload decode failed", zap.Error(err))
		return
	}
	s.logger.Debug("user tools changed externally", zap.Int("count", len(tools)))
	s.deliver(tools)
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
