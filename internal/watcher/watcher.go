// Package watcher monitors a workspace for source file changes and batches
// them so downstream reindexing runs once per burst of edits.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"symgraph/internal/scanner"
)

// Watcher watches a workspace root recursively and reports changed source
// files through the onChange callback after a debounce interval.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	onChange func(paths []string)
	debounce func(func())
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// New creates a Watcher for root. onChange receives the batch of changed file
// paths after interval of quiet.
func New(root string, interval time.Duration, onChange func(paths []string), log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		root:     root,
		onChange: onChange,
		debounce: debounce.New(interval),
		log:      log,
		pending:  make(map[string]struct{}),
	}, nil
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.log.Info().Str("root", w.root).Msg("watching workspace")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories need their own watch.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skippedDir(filepath.Base(event.Name)) {
				if err := w.addRecursive(event.Name); err != nil {
					w.log.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
				}
			}
			return
		}
	}

	if !scanner.SupportedFile(event.Name) {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = struct{}{}
	w.mu.Unlock()

	w.debounce(w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	w.log.Debug().Int("files", len(paths)).Msg("flushing changed files")
	w.onChange(paths)
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skippedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func skippedDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return name == "node_modules" || name == "vendor"
}
