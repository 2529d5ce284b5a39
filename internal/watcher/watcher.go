// Package watcher keeps the index in sync with PDF directories on disk.
//
// New and modified PDFs are re-ingested once they have been quiet for the
// debounce interval, so a file that is still being copied is only indexed
// after its last write. Deleted or renamed PDFs have their chunks removed.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/docrag/internal/extractor"
	"github.com/dshills/docrag/internal/indexer"
)

const (
	// DefaultDebounce is how long a file must stay unchanged before it is ingested
	DefaultDebounce = 2 * time.Second
	// DefaultRetryDelay is the wait before retrying a file while another run holds the lock
	DefaultRetryDelay = 5 * time.Second
)

// Indexer is the part of the ingestion pipeline the watcher drives
type Indexer interface {
	VectorizeFile(ctx context.Context, path string) (*indexer.Statistics, error)
	RemoveFile(ctx context.Context, path string) (int, error)
}

// Options configures a Watcher
type Options struct {
	Debounce   time.Duration
	RetryDelay time.Duration
	Logger     *slog.Logger
}

type action int

const (
	actionNone action = iota
	actionIndex
	actionRemove
	actionWatchDir
)

// Watcher re-ingests PDFs when they change on disk
type Watcher struct {
	idx        Indexer
	dirs       []string
	debounce   time.Duration
	retryDelay time.Duration
	logger     *slog.Logger

	fsw     *fsnotify.Watcher
	pending map[string]time.Time // path -> earliest ingestion time
}

// New creates a Watcher for dirs. Nothing is watched until Run is called.
func New(idx Indexer, dirs []string, opts Options) *Watcher {
	w := &Watcher{
		idx:        idx,
		dirs:       dirs,
		debounce:   opts.Debounce,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
		pending:    make(map[string]time.Time),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.retryDelay <= 0 {
		w.retryDelay = DefaultRetryDelay
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Run watches the directories until ctx is cancelled. Directories that do
// not exist are skipped; Run fails if none of them can be watched.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()
	w.fsw = fsw

	watched := 0
	for _, dir := range w.dirs {
		if err := w.addTree(dir); err != nil {
			w.logger.Warn("cannot watch directory", "dir", dir, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("no watchable directories in %v", w.dirs)
	}
	w.logger.Info("watching for document changes", "dirs", w.dirs, "debounce", w.debounce)

	ticker := time.NewTicker(w.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) tickInterval() time.Duration {
	return max(w.debounce/4, 10*time.Millisecond)
}

// addTree watches root and every non-hidden directory below it
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	switch classify(event) {
	case actionIndex:
		w.schedule(event.Name, time.Now().Add(w.debounce))
	case actionRemove:
		delete(w.pending, event.Name)
		removed, err := w.idx.RemoveFile(ctx, event.Name)
		if err != nil {
			w.logger.Warn("failed to remove document", "path", event.Name, "error", err)
			return
		}
		w.logger.Debug("document removed", "path", event.Name, "chunks", removed)
	case actionWatchDir:
		if err := w.addTree(event.Name); err != nil {
			w.logger.Warn("cannot watch directory", "dir", event.Name, "error", err)
			return
		}
		// Files moved in together with the directory produce no events of their own
		w.scheduleTree(event.Name)
	}
}

func (w *Watcher) schedule(path string, at time.Time) {
	w.pending[path] = at
}

func (w *Watcher) scheduleTree(root string) {
	at := time.Now().Add(w.debounce)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && isHidden(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isHidden(path) && extractor.IsPDF(path) {
			w.schedule(path, at)
		}
		return nil
	})
}

// flush ingests every pending file whose debounce interval has passed
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	for path, at := range w.pending {
		if at.After(now) {
			continue
		}
		delete(w.pending, path)

		if _, err := os.Stat(path); err != nil {
			continue
		}

		stats, err := w.idx.VectorizeFile(ctx, path)
		switch {
		case errors.Is(err, indexer.ErrIngestionInProgress):
			w.schedule(path, now.Add(w.retryDelay))
			w.logger.Debug("ingestion busy, retrying later", "path", path, "retry_in", w.retryDelay)
		case err != nil:
			w.logger.Warn("failed to ingest changed document", "path", path, "error", err)
		default:
			w.logger.Info("document updated", "path", path, "chunks", stats.ChunksCreated)
		}
	}
}

// classify decides what a filesystem event means for the index
func classify(event fsnotify.Event) action {
	if isHidden(event.Name) {
		return actionNone
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if extractor.IsPDF(event.Name) {
			return actionRemove
		}
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return actionNone
		}
		if info.IsDir() {
			return actionWatchDir
		}
		if extractor.IsPDF(event.Name) {
			return actionIndex
		}
	case event.Has(fsnotify.Write):
		if extractor.IsPDF(event.Name) {
			return actionIndex
		}
	}
	return actionNone
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
