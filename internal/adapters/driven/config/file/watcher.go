package file

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arbor-labs/arborsync/internal/logger"
)

// debounce collapses editor write bursts into one reload.
const debounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the config file and calls onChange
// with the freshly loaded config after each on-disk change, until ctx is
// cancelled. The parent directory is watched rather than the file itself so
// atomic rename-into-place saves are caught too.
//
// A change that fails to load or validate is logged and skipped; the
// previously applied config stays in effect.
func Watch(ctx context.Context, path string, onChange func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	logger.Info("config watcher: started on %s", target)

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(debounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("config watcher: stopped")
			return nil

		case <-reloadCh:
			cfg, err := Load(target)
			if err != nil {
				logger.Warn("config watcher: reload skipped: %v", err)
				continue
			}
			logger.Info("config watcher: applied %s", target)
			onChange(cfg)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher: %v", err)
		}
	}
}
