package workspace

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// seedScan walks the whole root and indexes every entry the rule engine
// accepts. Each entry is added under its own short lock hold, so searches
// arriving mid-scan see a consistent partial index instead of blocking
// for the duration of the walk.
func (ix *Index) seedScan(ctx context.Context) error {
	return filepath.WalkDir(ix.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, rerr := filepath.Rel(ix.root, p)
		if rerr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		isDir := d.IsDir()
		shouldIndex, isCore := ix.engine.Classify(rel, isDir)
		if !shouldIndex {
			if isDir {
				return fs.SkipDir
			}
			return nil
		}

		var mtime time.Time
		if !isDir {
			if info, ierr := d.Info(); ierr == nil {
				mtime = info.ModTime()
			}
		}

		ix.mu.Lock()
		node := ix.data.CreateNode(path.Base(rel), rel, isDir, mtime, isCore, ix.engine.Classify)
		ix.data.Add(node)
		ix.mu.Unlock()
		return nil
	})
}

// scanDirOneLevel reads a single directory level from disk and indexes any
// accepted entries not already present. dirRel "" means the root itself.
func (ix *Index) scanDirOneLevel(dirRel string) error {
	entries, err := os.ReadDir(ix.abs(dirRel))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		rel := entry.Name()
		if dirRel != "" {
			rel = dirRel + "/" + entry.Name()
		}
		isDir := entry.IsDir()
		shouldIndex, isCore := ix.engine.Classify(rel, isDir)
		if !shouldIndex {
			continue
		}

		var mtime time.Time
		if !isDir {
			if info, ierr := entry.Info(); ierr == nil {
				mtime = info.ModTime()
			}
		}

		ix.mu.Lock()
		if !ix.data.Has(rel) {
			node := ix.data.CreateNode(entry.Name(), rel, isDir, mtime, isCore, ix.engine.Classify)
			ix.data.Add(node)
		}
		ix.mu.Unlock()
	}
	return nil
}

// scanGlobalByName walks the whole root looking for entries whose name
// starts with q, case-insensitively, and backfills any that are missing
// from the index. This is the expensive fallback for bare-name misses.
func (ix *Index) scanGlobalByName(ctx context.Context, q string) {
	prefix := strings.ToLower(q)
	err := filepath.WalkDir(ix.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		rel, rerr := filepath.Rel(ix.root, p)
		if rerr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		isDir := d.IsDir()
		shouldIndex, isCore := ix.engine.Classify(rel, isDir)
		if !shouldIndex {
			if isDir {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasPrefix(strings.ToLower(d.Name()), prefix) {
			return nil
		}

		var mtime time.Time
		if !isDir {
			if info, ierr := d.Info(); ierr == nil {
				mtime = info.ModTime()
			}
		}

		ix.mu.Lock()
		if !ix.data.Has(rel) {
			node := ix.data.CreateNode(d.Name(), rel, isDir, mtime, isCore, ix.engine.Classify)
			ix.data.Add(node)
		}
		ix.mu.Unlock()
		return nil
	})
	if err != nil {
		slog.Debug("global name scan aborted", slog.String("error", err.Error()))
	}
}
