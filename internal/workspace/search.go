package workspace

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/fsindex/fsindex/internal/index"
)

// queryMode is how a normalized query dispatches.
type queryMode int

const (
	// modeName is a bare-name two-phase search.
	modeName queryMode = iota
	// modePath is a path-prefix search on the resolved path.
	modePath
	// modeList lists the resolved directory's direct children.
	modeList
)

// Search answers a query against the index. Both arguments are untrusted
// root-relative strings; inputs that are absolute or that resolve outside
// the root yield an empty result, never an error.
//
// A query ending in a separator lists a directory's direct children. A
// query containing a separator is a path-prefix search, resolved against
// contextualBasePath; a bare name is a two-phase name-prefix search
// scoped first to contextualBasePath.
//
// During initialization, search serves whatever has been seeded so far,
// waiting a bounded time for completion on a miss. After the index is
// ready, a full in-memory miss triggers a lock-guarded fallback disk scan
// that backfills the index. Results are detached copies; every matched
// non-core node has its LRU recency refreshed.
func (ix *Index) Search(ctx context.Context, query, contextualBasePath string) []*index.Node {
	q, cp, mode, ok := ix.normalize(query, contextualBasePath)
	if !ok || (q == "" && mode != modeList) {
		return nil
	}

	switch state(ix.st.Load()) {
	case stateReady:
	case stateInitializing:
		if res := ix.searchMemory(q, cp, mode); len(res) > 0 {
			return ix.finish(res)
		}
		ix.waitReady(ctx)
		if state(ix.st.Load()) != stateReady {
			return ix.finish(ix.searchMemory(q, cp, mode))
		}
	default:
		// Never initialized, or initialization failed: serve memory
		// only. Disk fallbacks need compiled rules and a running
		// pipeline behind them.
		return ix.finish(ix.searchMemory(q, cp, mode))
	}

	res := ix.searchMemory(q, cp, mode)
	if len(res) == 0 {
		res = ix.fallback(ctx, q, cp, mode)
	}
	return ix.finish(res)
}

// normalize performs the two-stage input validation. Stage one rejects
// absolute inputs outright. Stage two resolves the context path against
// the root and the query against that context, verifying containment in
// the root at each step; this is what blocks ".." traversal.
//
// Path and listing queries dispatch on the resolved root-relative path,
// so ".." segments that stay inside the root work and escaping ones
// cannot survive into lookups or fallback scans. Bare names stay as
// written, since they must remain name searches. The listing flag is
// detected from the original query before any resolution.
func (ix *Index) normalize(query, base string) (q, ctxPath string, mode queryMode, ok bool) {
	query = strings.TrimSpace(query)
	base = strings.TrimSpace(base)

	listing := strings.HasSuffix(query, "/") || strings.HasSuffix(query, `\`)

	if strings.HasPrefix(query, "/") || strings.HasPrefix(query, `\`) {
		return "", "", modeName, false
	}
	if strings.HasPrefix(base, "/") || strings.HasPrefix(base, `\`) {
		return "", "", modeName, false
	}

	query = strings.ReplaceAll(query, `\`, "/")
	base = strings.ReplaceAll(base, `\`, "/")

	ctxPath, ok = ix.resolveInsideRoot(base)
	if !ok {
		return "", "", modeName, false
	}
	resolved, ok := ix.resolveInsideRoot(ctxPath + "/" + query)
	if !ok {
		return "", "", modeName, false
	}

	switch {
	case listing:
		mode = modeList
	case strings.Contains(strings.Trim(query, "/"), "/"):
		mode = modePath
	default:
		mode = modeName
	}

	if mode == modeName {
		q = path.Clean(query)
		if q == "." || q == ".." {
			return "", "", mode, false
		}
	} else {
		q = strings.Trim(resolved, "/")
	}
	return q, strings.Trim(ctxPath, "/"), mode, true
}

// resolveInsideRoot resolves a relative path against the root and verifies
// the result stays inside it. Returns the canonical root-relative form
// ("" for the root itself).
func (ix *Index) resolveInsideRoot(rel string) (string, bool) {
	target := filepath.Join(ix.root, filepath.FromSlash(rel))
	back, err := filepath.Rel(ix.root, target)
	if err != nil {
		return "", false
	}
	back = filepath.ToSlash(back)
	if back == "." {
		return "", true
	}
	if back == ".." || strings.HasPrefix(back, "../") {
		return "", false
	}
	return back, true
}

// searchMemory dispatches an in-memory lookup by query mode.
func (ix *Index) searchMemory(q, cp string, mode queryMode) []*index.Node {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	switch mode {
	case modeList:
		return ix.data.ListDir(q)
	case modePath:
		return ix.data.SearchPathPrefix(q)
	default:
		return ix.data.SearchNamePrefix(q, cp)
	}
}

// fallback performs the on-miss disk scan. The scan lock is double
// checked: a concurrent caller may have already repaired the miss while
// this one waited, in which case no disk work happens. Afterwards exactly
// one restricted re-search runs, with no further fallback.
func (ix *Index) fallback(ctx context.Context, q, cp string, mode queryMode) []*index.Node {
	ix.scanMu.Lock()
	defer ix.scanMu.Unlock()

	if res := ix.searchMemory(q, cp, mode); len(res) > 0 {
		return res
	}

	switch mode {
	case modeList:
		_ = ix.scanDirOneLevel(q)
	case modePath:
		// Path-prefix miss: one non-recursive listing of the query's
		// parent directory.
		parent := ""
		if i := strings.LastIndex(q, "/"); i >= 0 {
			parent = q[:i]
		}
		_ = ix.scanDirOneLevel(parent)
	default:
		ix.scanGlobalByName(ctx, q)
	}

	return ix.searchMemory(q, cp, mode)
}

// finish refreshes LRU recency for res and returns detached copies, so
// callers never share memory with nodes the consumer keeps mutating.
func (ix *Index) finish(res []*index.Node) []*index.Node {
	if len(res) == 0 {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.data.Touch(res)
	out := make([]*index.Node, len(res))
	for i, n := range res {
		c := *n
		c.Parent = nil
		c.Children = nil
		out[i] = &c
	}
	return out
}
