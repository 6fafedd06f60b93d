package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/thisisjab/eventsearch/search"
)

// CompilerHolder hands out the current compiler and lets the schema
// watcher swap it while requests are in flight.
type CompilerHolder struct {
	current atomic.Pointer[search.Compiler]
}

func NewCompilerHolder(c *search.Compiler) *CompilerHolder {
	h := &CompilerHolder{}
	h.current.Store(c)
	return h
}

func (h *CompilerHolder) Compiler() *search.Compiler {
	return h.current.Load()
}

func (h *CompilerHolder) Store(c *search.Compiler) {
	h.current.Store(c)
}

// SchemaWatcher reloads the schema file whenever it changes and swaps in a
// compiler built from the new schema. A schema that fails to load is
// logged and the previous compiler stays in place.
type SchemaWatcher struct {
	path   string
	holder *CompilerHolder
	build  func(*search.Schema) *search.Compiler
	logger *slog.Logger
}

func NewSchemaWatcher(logger *slog.Logger, path string, holder *CompilerHolder, build func(*search.Schema) *search.Compiler) *SchemaWatcher {
	return &SchemaWatcher{
		path:   filepath.Clean(path),
		holder: holder,
		build:  build,
		logger: logger,
	}
}

// Run watches until ctx is done.
func (w *SchemaWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file instead of writing to it, which drops
	// a watch on the file itself. Watching the directory survives that.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("cannot add schema directory to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				w.logger.Debug("fsnotify watcher channel is closed.")
				return nil
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				w.logger.Debug("Received unhandled event from fsnotify.", "event", event.String())
				continue
			}

			w.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (w *SchemaWatcher) reload() {
	schema, err := LoadSchema(w.path)
	if err != nil {
		w.logger.Error("schema reload failed, keeping previous schema", "path", w.path, "error", err)
		return
	}

	w.holder.Store(w.build(schema))
	w.logger.Info("schema reloaded", "path", w.path)
}
