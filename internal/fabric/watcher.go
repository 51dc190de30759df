package fabric

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow batches rapid file events into one refresh.
const debounceWindow = 500 * time.Millisecond

// Watch monitors the backing files of file-based sources and recatalogs
// the fabric whenever one changes. Writes arrive in bursts (SQLite
// touches the database and its journal), so events are debounced before
// a refresh is triggered.
//
// Only Recatalog runs on change: vertex values are hot-swapped with
// refreshed sources, and catalog rows are left alone. Reflect is never
// re-run here because reflecting twice appends duplicate catalog rows.
//
// onRefresh, if non-nil, is called after each successful recatalog.
// Watch blocks until the context is cancelled.
func Watch(ctx context.Context, f *Fabric, paths []string, onRefresh func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
	}

	debounce := time.NewTimer(debounceWindow)
	debounce.Stop() // Don't start yet
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if !pending {
				pending = true
				debounce.Reset(debounceWindow)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)

		case <-debounce.C:
			pending = false
			if err := f.Recatalog(ctx); err != nil {
				return fmt.Errorf("refreshing sources: %w", err)
			}
			if onRefresh != nil {
				onRefresh()
			}
		}
	}
}
