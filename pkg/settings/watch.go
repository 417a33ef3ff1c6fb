package settings

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch observes the user and project config files this Settings was loaded
// from and reloads the underlying DCM when either changes on disk. onChange,
// if non-nil, is called after each reload. Watch blocks until ctx is done.
//
// Reload only drops the merged-value cache: layer data read at Load time is
// not re-read, so a changed file is picked up by callers that re-Load; the
// cache drop keeps provenance queries and ToMap honest for layers whose
// backing maps the caller mutates. Callers wanting full re-reads should
// re-run Load on the onChange signal.
func (s *Settings) Watch(ctx context.Context, opts LoadOptions, onChange func(), logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}

	paths := []string{
		userConfigPath(opts.UserConfigDir, environ),
		projectConfigPath(opts.ProjectRoot),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := map[string]bool{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		// Watch the directory: editors replace config files on save, and a
		// watch on the old inode goes stale.
		dir := filepath.Dir(p)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if !watched[dir] {
			if err := watcher.Add(dir); err != nil {
				logger.Warn("cannot watch config dir", zap.String("dir", dir), zap.Error(err))
				continue
			}
			watched[dir] = true
		}
	}

	interesting := map[string]bool{}
	for _, p := range paths {
		if p != "" {
			interesting[filepath.Clean(p)] = true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !interesting[filepath.Clean(ev.Name)] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logger.Info("config file changed", zap.String("path", ev.Name))
			s.dcm.Reload()
			if onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watch error", zap.Error(err))
		}
	}
}
