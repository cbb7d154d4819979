package introspect

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceTime = 100 * time.Millisecond

// startWatcher watches refs/ (recursively, since branch names nest into
// subdirectories) and objects/ (two levels deep: the fan-out directory plus
// its loose-object children) for writes from another process sharing this
// repository, debouncing bursts into a single stats recomputation.
func (s *Server) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			s.logger.Error("failed to close watcher", "err", err)
		}
	}()

	refsDir := filepath.Join(s.repoRoot, "refs")
	walkAndWatch(watcher, refsDir, s.logger)

	objectsDir := filepath.Join(s.repoRoot, "objects")
	if err := watcher.Add(objectsDir); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to watch objects dir", "err", err)
	}
	if entries, err := os.ReadDir(objectsDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				_ = watcher.Add(filepath.Join(objectsDir, e.Name()))
			}
		}
	}

	s.logger.Info("watching repository for external changes", "root", s.repoRoot)

	var debounceTimer *time.Timer
	for {
		select {
		case <-s.ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldIgnoreEvent(event) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceTime, func() {
				if s.ctx.Err() != nil {
					return
				}
				s.invalidateAndBroadcastStats()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "err", err)
		}
	}
}

// walkAndWatch adds fsnotify watches to dir and all its subdirectories.
// Missing directories are silently skipped.
func walkAndWatch(watcher *fsnotify.Watcher, dir string, logger interface {
	Warn(msg string, args ...any)
}) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}
	err = filepath.Walk(dir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if fi.IsDir() {
			if addErr := watcher.Add(path); addErr != nil {
				logger.Warn("failed to watch directory", "dir", path, "err", addErr)
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("failed to walk directory", "dir", dir, "err", err)
	}
}

func shouldIgnoreEvent(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	path := event.Name

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}
	if strings.HasSuffix(base, ".lock") || strings.HasPrefix(base, ".staging-lock-") {
		return true
	}
	if strings.Contains(path, "/tmp/") {
		return true
	}
	if base == "config" {
		return true
	}
	return false
}
