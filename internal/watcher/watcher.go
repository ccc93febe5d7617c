// Package watcher delivers raw recursive filesystem notifications for a
// workspace root. It wraps fsnotify, translating its events into a small
// operation enum and root-relative paths. Classification and index
// bookkeeping are the consumer's business; the watcher only reports what
// the filesystem did.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of filesystem operation observed.
type Op int

const (
	// OpCreate indicates a new file or directory appeared. A directory
	// moved into the watched tree also surfaces as a single create for
	// its top-level path.
	OpCreate Op = iota
	// OpWrite indicates file content was written.
	OpWrite
	// OpRemove indicates a file or directory was deleted.
	OpRemove
	// OpRename indicates a file or directory left its path. The
	// destination, if inside the root, arrives as a separate OpCreate.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is a single raw filesystem notification.
type Event struct {
	// Path is root-relative with forward slashes.
	Path string

	// Op is the observed operation.
	Op Op

	// IsDir reports whether the path is a directory. For OpRemove and
	// OpRename the path no longer exists, so IsDir is false and the
	// consumer resolves directory-ness from its own records.
	IsDir bool

	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// EventBufferSize is the capacity of the event channel. Emission is
	// non-blocking; events beyond a full buffer are dropped.
	// Default: 1024.
	EventBufferSize int
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.EventBufferSize == 0 {
		o.EventBufferSize = 1024
	}
	return o
}

// Watcher watches a directory tree recursively via fsnotify.
type Watcher struct {
	fsw    *fsnotify.Watcher
	events chan Event
	errs   chan error
	stopCh chan struct{}
	doneCh chan struct{}

	root    string
	dropped atomic.Uint64

	mu      sync.Mutex
	stopped bool
}

// New creates a watcher. Start must be called before events flow.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsw:    fsw,
		events: make(chan Event, opts.EventBufferSize),
		errs:   make(chan error, 10),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start begins watching root recursively and runs the event loop in a
// background goroutine until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.root = absRoot

	if err := w.addRecursive(absRoot); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

// handle converts one fsnotify event and emits it.
func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, statErr := os.Stat(ev.Name); statErr == nil {
		isDir = info.IsDir()
	}

	var op Op
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
		// New directories must join the watch set, including anything
		// already inside them (a directory moved into the tree arrives
		// as one create).
		if isDir {
			if err := w.addRecursive(ev.Name); err != nil {
				w.emitError(err)
			}
		}
	case ev.Op&fsnotify.Write != 0:
		op = OpWrite
	case ev.Op&fsnotify.Remove != 0:
		op = OpRemove
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and unknown ops carry no index-relevant information.
		return
	}

	w.emit(Event{Path: rel, Op: op, IsDir: isDir, Timestamp: time.Now()})
}

// addRecursive registers dir and every directory beneath it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) emit(ev Event) {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}
	select {
	case w.events <- ev:
	default:
		count := w.dropped.Add(1)
		slog.Warn("watcher buffer full, dropping event",
			slog.String("path", ev.Path),
			slog.String("op", ev.Op.String()),
			slog.Uint64("total_dropped", count))
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}
	select {
	case w.errs <- err:
	default:
	}
}

// Events returns the channel of filesystem events. Closed on Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors. Closed on Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Dropped returns the number of events dropped due to a full buffer.
func (w *Watcher) Dropped() uint64 {
	return w.dropped.Load()
}

// Stop shuts the watcher down and waits briefly for the event loop to
// exit. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	err := w.fsw.Close()

	select {
	case <-w.doneCh:
	case <-time.After(2 * time.Second):
		slog.Warn("watcher loop did not exit in time")
	}

	close(w.events)
	close(w.errs)
	return err
}
