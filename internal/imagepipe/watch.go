package imagepipe

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchPolicy watches the config file at path and swaps the pipeline's
// policy when it changes, until ctx is cancelled. load re-reads and
// validates the policy from disk; a failed reload keeps the previous
// policy active.
//
// Editors commonly replace files via rename, so the watch is placed on
// the parent directory and events are matched by base name, with a
// short debounce to coalesce write bursts.
func WatchPolicy(ctx context.Context, path string, load func() (Policy, error), p *Pipeline, logger *slog.Logger) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("policy watcher: started", slog.String("config", abs))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("policy watcher: stopped")
			return nil

		case <-reloadCh:
			policy, loadErr := load()
			if loadErr != nil {
				logger.Warn("policy watcher: reload failed, keeping previous policy",
					slog.String("error", loadErr.Error()))
				continue
			}
			p.SetPolicy(policy)
			logger.Info("policy watcher: policy reloaded",
				slog.String("target_format", policy.TargetFormat),
				slog.Int("max_dimension", policy.MaxDimension))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != filepath.Base(abs) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("policy watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
