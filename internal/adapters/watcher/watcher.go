// Package watcher watches a local storage tree and reports raster file
// changes in debounced batches.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jobrunner/byoc/internal/domain"
)

// DefaultDebounce is the quiet period after the last event before a batch
// is handed to the handler.
const DefaultDebounce = 2 * time.Second

// Event represents a file system event.
type Event struct {
	Path      string
	Operation Operation
}

// Operation represents the type of file operation.
type Operation int

// File operation types.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// BatchHandler receives the raster file events collected during one quiet
// period, sorted by path.
type BatchHandler func(ctx context.Context, events []Event) error

// Config holds watcher configuration.
type Config struct {
	Root     string // Directory tree to watch
	Debounce time.Duration
}

// Watcher watches a directory tree for raster file changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	handler   BatchHandler
	logger    *slog.Logger
	root      string
	debounce  time.Duration

	mu        sync.Mutex
	pending   map[string]Operation
	lastEvent time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new file watcher.
func New(cfg Config, handler BatchHandler, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		handler:   handler,
		logger:    logger,
		root:      root,
		debounce:  cfg.Debounce,
		pending:   make(map[string]Operation),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start watches the root and every directory below it.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root, false); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.eventLoop(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher and waits for its goroutines.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.fsWatcher.Close()
		w.wg.Wait()
	})
	return err
}

// addTree watches dir and its subdirectories. With queueExisting set, raster
// files already present are queued as created; they may have been written
// before the watch was in place.
func (w *Watcher) addTree(dir string, queueExisting bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("failed to walk watch path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if err := w.fsWatcher.Add(path); err != nil {
				w.logger.Warn("failed to watch directory", "path", path, "error", err)
				return nil
			}
			w.logger.Debug("watching directory", "path", path)
			return nil
		}

		if queueExisting && domain.IsRasterKey(path) {
			w.record(path, OpCreate)
		}
		return nil
	})
}

// eventLoop processes fsnotify events.
func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// handleFsEvent processes a single fsnotify event.
func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name, true); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !domain.IsRasterKey(event.Name) {
		return
	}

	w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())
	w.record(event.Name, fsnotifyOpToOperation(event.Op))
}

// record adds an event to the pending batch.
func (w *Watcher) record(path string, op Operation) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastEvent = time.Now()

	existing, exists := w.pending[path]
	if !exists {
		w.pending[path] = op
		return
	}
	w.pending[path] = mergeOperation(existing, op)
}

// mergeOperation combines two operations on the same path within a batch.
func mergeOperation(existing, next Operation) Operation {
	switch {
	case existing == OpDelete && next == OpCreate:
		// Deleted then recreated
		return OpCreate
	case next == OpDelete:
		return OpDelete
	case existing == OpCreate:
		// Writes after a create belong to the create
		return OpCreate
	default:
		return next
	}
}

// debounceLoop flushes the pending batch once the tree has been quiet.
func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// flush hands the pending batch to the handler if no event arrived within
// the debounce period before now.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	batch := w.takeBatch(now)
	if len(batch) == 0 {
		return
	}

	w.logger.Info("processing file events", "count", len(batch))

	if err := w.handler(ctx, batch); err != nil {
		w.logger.Error("handler error", "count", len(batch), "error", err)
	}
}

func (w *Watcher) takeBatch(now time.Time) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 || now.Sub(w.lastEvent) < w.debounce {
		return nil
	}

	batch := make([]Event, 0, len(w.pending))
	for path, op := range w.pending {
		batch = append(batch, Event{Path: path, Operation: op})
	}
	w.pending = make(map[string]Operation)

	sort.Slice(batch, func(i, j int) bool {
		return batch[i].Path < batch[j].Path
	})
	return batch
}

// fsnotifyOpToOperation converts fsnotify.Op to our Operation type.
func fsnotifyOpToOperation(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove):
		return OpDelete
	case op.Has(fsnotify.Rename):
		// The file is gone from its original location
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}
