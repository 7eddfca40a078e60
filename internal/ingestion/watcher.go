package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Benny93/typegraph-go/internal/storage"
	"github.com/Benny93/typegraph-go/internal/validator"
)

// DefaultDebounce is the quiet period after the last write before the
// schema is rebuilt.
const DefaultDebounce = 500 * time.Millisecond

// WatchEvent is the outcome of one rebuild.
type WatchEvent struct {
	Path   string
	Result *PipelineResult

	// Report compares the previously stored schema with the new one. It is
	// nil when nothing was stored before.
	Report *validator.EvolutionReport

	// Err is set when the new version could not be loaded, converted or
	// stored. The store keeps the previous version.
	Err error
}

// WatchSchema monitors the schema file at path and rebuilds the stored graph
// after every change. onEvent is called after each rebuild. Blocks until the
// context is cancelled.
func WatchSchema(ctx context.Context, path string, store storage.Backend, opts Options, onEvent func(*WatchEvent)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files by rename, which drops a watch on the file
	// itself.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	timer.Stop()

	log := opts.logger()
	log.Infof("watching %s for changes", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debugf("%s: %s", event.Op, event.Name)
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watch error: %v", err)

		case <-timer.C:
			ev := Reindex(ctx, path, store, opts)
			if ev.Err != nil {
				log.Errorf("rebuilding %s: %v", path, ev.Err)
			}
			if onEvent != nil {
				onEvent(ev)
			}
		}
	}
}

// Reindex rebuilds the graph of the schema at path and checks the new
// version against the snapshot held by store.
func Reindex(ctx context.Context, path string, store storage.Backend, opts Options) *WatchEvent {
	ev := &WatchEvent{Path: path}

	loaded, err := LoadSchemaFile(path)
	if err != nil {
		ev.Err = err
		return ev
	}

	prev, err := store.LoadSchema(ctx)
	if err != nil {
		ev.Err = err
		return ev
	}
	if prev != nil {
		older, err := ParseSchema(prev.Path, prev.Content)
		if err != nil {
			opts.logger().Warnf("stored snapshot unreadable, skipping evolution check: %v", err)
		} else {
			report, err := validator.CheckEvolution(older.Schema, loaded.Schema)
			if err != nil {
				opts.logger().Warnf("evolution check failed: %v", err)
			}
			ev.Report = report
		}
	}

	_, ev.Result, ev.Err = runLoaded(ctx, loaded, store, opts, nil)
	return ev
}
