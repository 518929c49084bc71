package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vango-dev/cells/internal/errors"
)

// reloadDebounce groups the bursts of events editors produce on save.
const reloadDebounce = 50 * time.Millisecond

// Watch calls fn with the reloaded configuration every time the file at
// path changes, until ctx is done. A file that fails to load or validate
// is reported through fn's error; the previous configuration stays in
// effect for the caller.
//
// The parent directory is watched rather than the file itself so that
// editors replacing the file by rename are followed.
func Watch(ctx context.Context, path string, fn func(*Config, error)) error {
	path = filepath.Clean(path)

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New("C104").Wrap(err)
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return errors.New("C104").Wrap(err)
	}

	go func() {
		defer fsWatcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				cfg, err := LoadFile(path)
				fn(cfg, err)

			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				fn(nil, errors.New("C104").Wrap(err))
			}
		}
	}()

	return nil
}
