package prefs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 150 * time.Millisecond

// Watch calls fn with freshly loaded preferences whenever the file at path is
// written, created or renamed into place. Bursts of events are coalesced.
// The parent directory is watched so editors that replace the file are
// noticed. Watcher errors are passed to onError, which may be nil, and do not
// stop the watch. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, fn func(Prefs), onError func(error)) error {
	resolved, err := ResolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	watchLoop(ctx, resolved, w.Events, w.Errors, fn, onError)
	return nil
}

func watchLoop(ctx context.Context, resolved string, events <-chan fsnotify.Event, errs <-chan error, fn func(Prefs), onError func(error)) {
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			if onError != nil {
				onError(fmt.Errorf("watch prefs: %w", err))
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != resolved {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case <-timer.C:
			p, _ := Load(resolved)
			fn(p)
		}
	}
}
