// Package watch turns a directory into an upload inbox: PDFs dropped
// into it are picked up and offered to the upload queue.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/immodoc/immodoc/pkg/logging"
	"github.com/immodoc/immodoc/pkg/upload"
)

// DefaultSettleDelay is how long a file must stay quiet after its last
// write before it is considered fully copied.
const DefaultSettleDelay = 500 * time.Millisecond

// Watcher observes one directory and emits settled PDF files.
type Watcher struct {
	dir         string
	settleDelay time.Duration
	logger      *logging.Logger

	files   chan upload.File
	settled chan string

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher for dir. The directory must exist.
func New(dir string, logger *logging.Logger) (*Watcher, error) {
	return &Watcher{
		dir:         dir,
		settleDelay: DefaultSettleDelay,
		logger:      logger,
		files:       make(chan upload.File, 16),
		settled:     make(chan string, 16),
		pending:     make(map[string]*time.Timer),
	}, nil
}

// Files delivers settled PDFs. The channel closes when Run returns.
func (w *Watcher) Files() <-chan upload.File {
	return w.files
}

// Run watches until the context is cancelled. Files that are still being
// written restart their settle timer on every write event. Only Run
// writes to the Files channel, so closing it on exit is safe.
func (w *Watcher) Run(ctx context.Context) error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer notifier.Close()
	defer close(w.files)
	defer w.cancelPending()

	if err := notifier.Add(w.dir); err != nil {
		return err
	}
	w.logInfo("watch_started", map[string]any{"dir": w.dir})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path := <-w.settled:
			w.emit(ctx, path)
		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
				continue
			}
			w.scheduleSettle(ctx, event.Name)
		case err, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			w.logError("watch_error", err)
		}
	}
}

// scheduleSettle (re)starts the settle timer for one path. The fired
// timer hands the path back to Run instead of touching shared state.
func (w *Watcher) scheduleSettle(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.settled <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) emit(ctx context.Context, path string) {
	file, err := upload.FromPath(path)
	if err != nil {
		// The file may have been removed before it settled
		w.logError("watch_stat_failed", err)
		return
	}
	valid, rejected := upload.ValidateFiles([]upload.File{file})
	for _, r := range rejected {
		w.logInfo("watch_rejected", map[string]any{"file": r.Name, "reason": r.Reason})
	}
	for _, f := range valid {
		select {
		case w.files <- f:
			w.logInfo("watch_picked_up", map[string]any{"file": f.Name, "size": f.Size})
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) logInfo(eventType string, details map[string]any) {
	if w.logger != nil {
		w.logger.Info(logging.CategoryWatch, eventType, "", details)
	}
}

func (w *Watcher) logError(eventType string, err error) {
	if w.logger != nil {
		w.logger.Error(logging.CategoryWatch, eventType, err.Error(), nil)
	}
}
