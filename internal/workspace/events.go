package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/fsindex/fsindex/internal/watcher"
)

// eventKind is the closed set of typed index mutations.
type eventKind int

const (
	evFileCreated eventKind = iota
	evFileModified
	evFileDeleted
	evFileMoved
	evDirCreated
	evDirDeleted
	evDirMoved
	evIgnoreRulesChanged
)

func (k eventKind) String() string {
	switch k {
	case evFileCreated:
		return "file_created"
	case evFileModified:
		return "file_modified"
	case evFileDeleted:
		return "file_deleted"
	case evFileMoved:
		return "file_moved"
	case evDirCreated:
		return "dir_created"
	case evDirDeleted:
		return "dir_deleted"
	case evDirMoved:
		return "dir_moved"
	case evIgnoreRulesChanged:
		return "ignore_rules_changed"
	default:
		return "unknown"
	}
}

// event carries a typed mutation through the queue. path and dest are
// root-relative; dest is set only for moves.
type event struct {
	kind eventKind
	path string
	dest string
}

// enqueue pushes an event without blocking. A full queue drops the event:
// index freshness degrades gracefully instead of stalling the watcher,
// and the gap is repaired later by a fallback scan.
func (ix *Index) enqueue(ev event) {
	select {
	case ix.queue <- ev:
	default:
		count := ix.queueDropped.Add(1)
		slog.Warn("event queue full, dropping event",
			slog.String("event", ev.kind.String()),
			slog.String("path", ev.path),
			slog.Uint64("total_dropped", count))
	}
}

// forward reads raw watcher notifications and translates them into typed
// events until cancellation.
func (ix *Index) forward(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ix.w.Events():
			if !ok {
				return nil
			}
			ix.translate(ev)
		case err, ok := <-ix.w.Errors():
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// translate maps one raw notification onto typed events. Deleted paths
// cannot be stat'ed, so directory-ness falls back to the index's own
// records. An event touching the reserved ignore file, or deleting a
// directory with an indexed ignore file beneath it, additionally raises
// the synthetic ignore-rules-changed event.
func (ix *Index) translate(ev watcher.Event) {
	rel := ev.Path
	isDir := ev.IsDir
	if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
		ix.mu.Lock()
		if node, ok := ix.data.Get(rel); ok {
			isDir = node.IsDir
		}
		ix.mu.Unlock()
	}

	if name := ix.engine.IgnoreFileName(); name != "" {
		trigger := path.Base(rel) == name
		if !trigger && isDir && (ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename) {
			trigger = ix.indexedIgnoreFileUnder(rel, name)
		}
		if trigger {
			ix.enqueue(event{kind: evIgnoreRulesChanged})
		}
	}

	switch ev.Op {
	case watcher.OpCreate:
		if isDir {
			ix.enqueue(event{kind: evDirCreated, path: rel})
		} else {
			ix.enqueue(event{kind: evFileCreated, path: rel})
		}
	case watcher.OpWrite:
		if !isDir {
			ix.enqueue(event{kind: evFileModified, path: rel})
		}
	case watcher.OpRemove, watcher.OpRename:
		// The watcher reports a rename as the source leaving its path;
		// the destination, if still inside the root, arrives as a
		// separate create.
		if isDir {
			ix.enqueue(event{kind: evDirDeleted, path: rel})
		} else {
			ix.enqueue(event{kind: evFileDeleted, path: rel})
		}
	}
}

// indexedIgnoreFileUnder reports whether any indexed path under dir is an
// ignore file. Answered from the index, not the disk: the directory may
// already be gone.
func (ix *Index) indexedIgnoreFileUnder(dir, ignoreName string) bool {
	prefix := dir + "/"
	suffix := "/" + ignoreName
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, p := range ix.data.Paths() {
		if strings.HasPrefix(p, prefix) && strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

// consume drains the event queue, applying one mutation at a time, until
// cancellation. A handler error never stops the loop.
func (ix *Index) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ix.queue:
			ix.apply(ev)
		}
	}
}

// apply dispatches one typed event. Any single-event failure is contained
// and logged; losing one incremental update is preferred over crashing
// the index.
func (ix *Index) apply(ev event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("panic while applying index event",
				slog.String("event", ev.kind.String()),
				slog.String("path", ev.path),
				slog.Any("panic", r))
		}
	}()

	var err error
	switch ev.kind {
	case evFileCreated:
		err = ix.applyCreated(ev.path, false)
	case evFileModified:
		err = ix.applyFileModified(ev.path)
	case evFileDeleted:
		ix.applyDeleted(ev.path, false)
	case evFileMoved:
		err = ix.applyMoved(ev.path, ev.dest, false)
	case evDirCreated:
		err = ix.applyCreated(ev.path, true)
	case evDirDeleted:
		ix.applyDeleted(ev.path, true)
	case evDirMoved:
		err = ix.applyMoved(ev.path, ev.dest, true)
	case evIgnoreRulesChanged:
		ix.applyIgnoreRulesChanged()
	}
	if err != nil {
		slog.Debug("index event discarded",
			slog.String("event", ev.kind.String()),
			slog.String("path", ev.path),
			slog.String("error", err.Error()))
	}
}

// applyCreated indexes a new file or directory. For directories a
// single-level scan follows, so a directory moved into the tree (seen
// only as one create) gets its immediate children indexed; deeper levels
// surface via further events or fallback scans.
func (ix *Index) applyCreated(rel string, isDir bool) error {
	shouldIndex, isCore := ix.engine.Classify(rel, isDir)
	if !shouldIndex {
		return nil
	}

	var mtime time.Time
	if !isDir {
		info, err := os.Stat(ix.abs(rel))
		if err != nil {
			return fmt.Errorf("stat created file: %w", err)
		}
		mtime = info.ModTime()
	}

	ix.mu.Lock()
	node := ix.data.CreateNode(path.Base(rel), rel, isDir, mtime, isCore, ix.engine.Classify)
	ix.data.Add(node)
	ix.mu.Unlock()

	if isDir {
		return ix.scanDirOneLevel(rel)
	}
	return nil
}

// applyFileModified refreshes the recorded mtime of an indexed file.
func (ix *Index) applyFileModified(rel string) error {
	info, err := os.Stat(ix.abs(rel))
	if err != nil {
		return fmt.Errorf("stat modified file: %w", err)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if node, ok := ix.data.Get(rel); ok && !node.IsDir {
		node.MTime = info.ModTime()
	}
	return nil
}

// applyDeleted removes a path; directories take their whole subtree,
// deepest entries first.
func (ix *Index) applyDeleted(rel string, isDir bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if isDir {
		ix.data.RemoveSubtree(rel)
	} else {
		ix.data.Remove(rel)
	}
}

// applyMoved handles a move reported with both endpoints: remove at the
// source, then index the destination if it classifies as indexable. Moved
// directories get a single-level scan of the destination to repopulate
// children, since child moves are not separately reported.
func (ix *Index) applyMoved(src, dest string, isDir bool) error {
	ix.mu.Lock()
	_, known := ix.data.Get(src)
	if known {
		if isDir {
			ix.data.RemoveSubtree(src)
		} else {
			ix.data.Remove(src)
		}
	}
	ix.mu.Unlock()
	if !known {
		return nil
	}
	return ix.applyCreated(dest, isDir)
}

// applyIgnoreRulesChanged recompiles the composed ignore rules from disk,
// then removes every non-core node that the new rules exclude. Newly
// un-ignored paths are not proactively re-added; they resurface lazily on
// the next search miss.
func (ix *Index) applyIgnoreRulesChanged() {
	ix.engine.Recompile()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	var doomed []string
	for _, p := range ix.data.Paths() {
		if p == "" {
			continue
		}
		node, ok := ix.data.Get(p)
		if !ok || node.IsCore {
			continue
		}
		if ix.engine.Ignored(p, node.IsDir) {
			doomed = append(doomed, p)
		}
	}
	sort.Slice(doomed, func(i, j int) bool {
		return strings.Count(doomed[i], "/") > strings.Count(doomed[j], "/")
	})
	for _, p := range doomed {
		ix.data.Remove(p)
	}
	if len(doomed) > 0 {
		slog.Debug("removed newly-ignored nodes", slog.Int("count", len(doomed)))
	}
}
