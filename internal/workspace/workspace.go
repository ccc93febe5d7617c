// Package workspace provides the real-time file index service: an
// in-memory, LRU-bounded picture of a project tree that answers
// prefix/name/path queries while a filesystem watcher keeps it
// synchronized.
//
// All mutation of the index data flows through a single mutex; writers
// are the event consumer and fallback scans, readers are search calls.
// The index is eventually consistent with disk: a bounded event queue may
// drop notifications under load, and search misses repair the gap through
// on-demand fallback scans.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fsindex/fsindex/internal/index"
	"github.com/fsindex/fsindex/internal/rules"
	"github.com/fsindex/fsindex/internal/watcher"
)

// state tracks the one-time initialization lifecycle.
type state int32

const (
	stateNew state = iota
	stateInitializing
	stateReady
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateInitializing:
		return "initializing"
	case stateReady:
		return "ready"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures an Index.
type Options struct {
	// CorePatterns name the permanently retained paths (gitignore
	// syntax). Core paths are exempt from LRU eviction and from
	// ignore-rule rescans.
	CorePatterns []string

	// IgnorePatterns are static exclusion rules (gitignore syntax).
	IgnorePatterns []string

	// UseIgnoreFiles enables scanning per-directory ignore files and
	// composing their rules into the exclusion set.
	UseIgnoreFiles bool

	// IgnoreFileName overrides the per-directory ignore file name.
	// Default: ".gitignore".
	IgnoreFileName string

	// DynamicLimit bounds the non-core working set. Default: 10000.
	DynamicLimit int

	// QueueSize is the capacity of the event queue between the watcher
	// and the consumer. Enqueueing never blocks; overflow is dropped.
	// Default: 1024.
	QueueSize int

	// InitWaitTimeout bounds how long a search waits for an in-flight
	// initialization before degrading to memory-only results.
	// Default: 30s.
	InitWaitTimeout time.Duration
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.IgnoreFileName == "" {
		o.IgnoreFileName = rules.DefaultIgnoreFileName
	}
	if o.DynamicLimit == 0 {
		o.DynamicLimit = index.DefaultDynamicLimit
	}
	if o.QueueSize == 0 {
		o.QueueSize = 1024
	}
	if o.InitWaitTimeout == 0 {
		o.InitWaitTimeout = 30 * time.Second
	}
	return o
}

// Index is the workspace file index service.
type Index struct {
	root   string
	opts   Options
	engine *rules.Engine

	// mu guards data. Parent/child links and trie entries must change
	// together, so the whole aggregate is serialized coarsely.
	mu   sync.Mutex
	data *index.Data

	st    atomic.Int32
	ready chan struct{} // closed when initialization succeeds

	initMu sync.Mutex // serializes the one-time initialization sequence
	scanMu sync.Mutex // serializes fallback disk scans

	queue        chan event
	queueDropped atomic.Uint64

	w      *watcher.Watcher
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New validates the root and builds an Index. The root must exist and be
// a directory; the service cannot exist without it. Initialize must be
// called before the watcher and consumer run.
func New(root string, opts Options) (*Index, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("root path does not exist: %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", root)
	}

	opts = opts.WithDefaults()
	ignoreFile := ""
	if opts.UseIgnoreFiles {
		ignoreFile = opts.IgnoreFileName
	}

	return &Index{
		root:   absRoot,
		opts:   opts,
		engine: rules.NewEngine(absRoot, opts.CorePatterns, opts.IgnorePatterns, ignoreFile),
		data:   index.NewData(opts.DynamicLimit),
		ready:  make(chan struct{}),
		queue:  make(chan event, opts.QueueSize),
	}, nil
}

// Root returns the absolute root path being indexed.
func (ix *Index) Root() string {
	return ix.root
}

// Initialize runs the one-time startup sequence: compile composed ignore
// rules, seed the index with a full recursive scan, then start the
// watcher and the event consumer. It is idempotent and safe under
// concurrency; concurrent callers either wait for the in-flight attempt
// or return immediately once initialized. A failed attempt may be
// retried by calling Initialize again.
func (ix *Index) Initialize(ctx context.Context) error {
	ix.initMu.Lock()
	defer ix.initMu.Unlock()

	if state(ix.st.Load()) == stateReady {
		return nil
	}
	ix.st.Store(int32(stateInitializing))

	if err := ix.initialize(ctx); err != nil {
		ix.st.Store(int32(stateFailed))
		slog.Error("workspace index initialization failed",
			slog.String("root", ix.root),
			slog.String("error", err.Error()))
		return err
	}

	ix.st.Store(int32(stateReady))
	close(ix.ready)
	return nil
}

func (ix *Index) initialize(ctx context.Context) error {
	start := time.Now()

	if ix.opts.UseIgnoreFiles {
		ix.engine.Recompile()
	}

	if err := ix.seedScan(ctx); err != nil {
		return fmt.Errorf("seed scan: %w", err)
	}

	w, err := watcher.New(watcher.Options{EventBufferSize: ix.opts.QueueSize})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := w.Start(runCtx, ix.root); err != nil {
		cancel()
		_ = w.Stop()
		return fmt.Errorf("start watcher: %w", err)
	}
	ix.w = w
	ix.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return ix.forward(gctx) })
	g.Go(func() error { return ix.consume(gctx) })
	ix.group = g

	ix.mu.Lock()
	nodes := ix.data.Len()
	ix.mu.Unlock()
	slog.Info("workspace index initialized",
		slog.String("root", ix.root),
		slog.Int("nodes", nodes),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// Close stops the watcher, cancels the consumer, and waits briefly for
// background goroutines to exit. Safe to call multiple times.
func (ix *Index) Close() error {
	if ix.cancel != nil {
		ix.cancel()
	}
	var err error
	if ix.w != nil {
		err = ix.w.Stop()
	}
	if ix.group != nil {
		done := make(chan struct{})
		go func() {
			_ = ix.group.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			slog.Warn("index background tasks did not exit in time")
		}
	}
	return err
}

// waitReady blocks until initialization completes, the configured wait
// timeout elapses, or ctx is cancelled.
func (ix *Index) waitReady(ctx context.Context) {
	t := time.NewTimer(ix.opts.InitWaitTimeout)
	defer t.Stop()
	select {
	case <-ix.ready:
	case <-t.C:
	case <-ctx.Done():
	}
}

// Stats is a point-in-time snapshot of index health.
type Stats struct {
	State          string
	Nodes          int
	CoreNodes      int
	DynamicNodes   int
	QueueDropped   uint64
	WatcherDropped uint64
}

// Stats returns a snapshot of the index state.
func (ix *Index) Stats() Stats {
	ix.mu.Lock()
	nodes := ix.data.Len()
	dynamic := ix.data.DynamicLen()
	ix.mu.Unlock()

	st := Stats{
		State:        state(ix.st.Load()).String(),
		Nodes:        nodes,
		DynamicNodes: dynamic,
		CoreNodes:    nodes - dynamic,
		QueueDropped: ix.queueDropped.Load(),
	}
	if ix.w != nil {
		st.WatcherDropped = ix.w.Dropped()
	}
	return st
}

// abs maps a root-relative forward-slash path onto the filesystem.
func (ix *Index) abs(rel string) string {
	return filepath.Join(ix.root, filepath.FromSlash(rel))
}
