// Package index holds the in-memory data model of the workspace index:
// the node tree, the path and name tries, and the LRU-bounded dynamic
// working set. Data performs no locking of its own; the owning service
// serializes every access, because parent/child and trie bookkeeping must
// update atomically together.
package index

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/fsindex/fsindex/internal/trie"
)

// DefaultDynamicLimit bounds the dynamic (non-core) working set.
const DefaultDynamicLimit = 10_000

// evictSlack is the fraction of extra entries evicted beyond the overflow,
// amortizing the cost of eviction passes.
const evictSlack = 1.1

// Classifier decides whether a root-relative path should be indexed and
// whether it is core. It is supplied by the rule engine.
type Classifier func(relPath string, isDir bool) (shouldIndex, isCore bool)

// Data aggregates every index structure. The path map is the sole owner of
// nodes; the tries and the LRU tracker store only path keys.
type Data struct {
	limit int

	nodes    map[string]*Node
	pathTrie *trie.Trie[string]
	// nameTrie keys are lowercased names; values are the paths of every
	// node bearing that name (names are not unique).
	nameTrie *trie.Trie[[]string]

	// dynamic tracks exactly the non-core nodes, ordered by recency.
	// Its capacity is a ceiling far above limit: eviction is driven by
	// evictOverflow so the 110%-of-overflow policy applies, not by the
	// structure's own size bound.
	dynamic *simplelru.LRU[string, time.Time]
}

// NewData creates the aggregate with the given dynamic-set limit (<=0
// selects DefaultDynamicLimit) and installs the permanent root node.
func NewData(limit int) *Data {
	if limit <= 0 {
		limit = DefaultDynamicLimit
	}
	dynamic, _ := simplelru.NewLRU[string, time.Time](math.MaxInt32, nil)
	d := &Data{
		limit:    limit,
		nodes:    make(map[string]*Node),
		pathTrie: trie.New[string](),
		nameTrie: trie.New[[]string](),
		dynamic:  dynamic,
	}
	d.Add(newNode("", "", true, time.Time{}, true))
	return d
}

// Root returns the permanent root node.
func (d *Data) Root() *Node {
	return d.nodes[""]
}

// Get returns the node stored under path.
func (d *Data) Get(path string) (*Node, bool) {
	n, ok := d.nodes[path]
	return n, ok
}

// Has reports whether path is indexed.
func (d *Data) Has(path string) bool {
	_, ok := d.nodes[path]
	return ok
}

// Len returns the total number of indexed nodes, including the root.
func (d *Data) Len() int {
	return len(d.nodes)
}

// DynamicLen returns the size of the dynamic working set.
func (d *Data) DynamicLen() int {
	return d.dynamic.Len()
}

// DynamicContains reports membership of path in the dynamic working set.
func (d *Data) DynamicContains(path string) bool {
	return d.dynamic.Contains(path)
}

// Paths returns every indexed path. The slice is a copy.
func (d *Data) Paths() []string {
	out := make([]string, 0, len(d.nodes))
	for p := range d.nodes {
		out = append(out, p)
	}
	return out
}

// CreateNode returns the node for path, materializing it and any missing
// ancestor directories. An existing node is promoted to core when isCore
// is set. Missing ancestors of a core node become core themselves; other
// missing ancestors are classified by classify.
//
// The returned node (and any materialized ancestors) are already wired
// into their parents; the caller still calls Add for the returned node.
func (d *Data) CreateNode(name, path string, isDir bool, mtime time.Time, isCore bool, classify Classifier) *Node {
	if existing, ok := d.nodes[path]; ok {
		if isCore && !existing.IsCore {
			d.promote(existing)
		}
		return existing
	}

	n := newNode(name, path, isDir, mtime, isCore)
	if path == "" {
		return n
	}

	parentPath, _ := splitPath(path)
	parent, ok := d.nodes[parentPath]
	if ok {
		if isCore && !parent.IsCore {
			d.promote(parent)
		}
	} else {
		_, parentName := splitPath(parentPath)
		parentCore := isCore
		if !parentCore && classify != nil {
			_, parentCore = classify(parentPath, true)
		}
		parent = d.CreateNode(parentName, parentPath, true, time.Time{}, parentCore, classify)
		d.Add(parent)
	}

	n.Parent = parent
	parent.Children[name] = n
	return n
}

// Add inserts node into every index structure. Re-adding an indexed node
// only refreshes its recency. Non-core nodes enter the dynamic set, which
// may trigger an eviction pass.
func (d *Data) Add(node *Node) {
	if _, ok := d.nodes[node.Path]; !ok {
		d.nodes[node.Path] = node
		d.pathTrie.Insert(node.Path, node.Path)
		key := strings.ToLower(node.Name)
		paths, _ := d.nameTrie.Get(key)
		d.nameTrie.Insert(key, append(paths, node.Path))
	}
	if !node.IsCore {
		d.dynamic.Add(node.Path, time.Now())
		d.evictOverflow()
	}
}

// Remove deletes path from every index structure and unlinks it from its
// parent. Descendants are not touched; use RemoveSubtree for directories.
func (d *Data) Remove(path string) {
	node, ok := d.nodes[path]
	if !ok {
		return
	}
	delete(d.nodes, path)
	d.pathTrie.Delete(path)

	key := strings.ToLower(node.Name)
	if paths, ok := d.nameTrie.Get(key); ok {
		filtered := paths[:0]
		for _, p := range paths {
			if p != path {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			d.nameTrie.Delete(key)
		} else {
			d.nameTrie.Insert(key, filtered)
		}
	}

	d.dynamic.Remove(path)

	if node.Parent != nil {
		delete(node.Parent.Children, node.Name)
	}
}

// RemoveSubtree deletes path and every descendant, deepest paths first so
// parent/child bookkeeping stays consistent throughout.
func (d *Data) RemoveSubtree(path string) {
	if _, ok := d.nodes[path]; !ok {
		return
	}
	doomed := []string{path}
	prefix := path + "/"
	for p := range d.nodes {
		if p != path && strings.HasPrefix(p, prefix) {
			doomed = append(doomed, p)
		}
	}
	sort.Slice(doomed, func(i, j int) bool {
		return strings.Count(doomed[i], "/") > strings.Count(doomed[j], "/")
	})
	for _, p := range doomed {
		d.Remove(p)
	}
}

// Touch refreshes the recency of every non-core node in nodes. Called for
// every result set handed to a search caller.
func (d *Data) Touch(nodes []*Node) {
	now := time.Now()
	for _, n := range nodes {
		if !n.IsCore {
			d.dynamic.Add(n.Path, now)
		}
	}
}

// promote flips a node to core and drops it from the dynamic set, keeping
// the containment invariant: dynamic membership equals non-core indexed.
// Ancestors of a core node are core, so the promotion walks up.
func (d *Data) promote(node *Node) {
	for n := node; n != nil && !n.IsCore; n = n.Parent {
		n.IsCore = true
		d.dynamic.Remove(n.Path)
	}
}

// evictOverflow evicts least-recently-used dynamic nodes once the set
// exceeds the limit. It removes 110% of the overflow so the pass does not
// rerun on every subsequent insertion.
func (d *Data) evictOverflow() {
	overflow := d.dynamic.Len() - d.limit
	if overflow <= 0 {
		return
	}
	evict := int(float64(overflow) * evictSlack)
	if evict < overflow {
		evict = overflow
	}
	for i := 0; i < evict; i++ {
		path, _, ok := d.dynamic.GetOldest()
		if !ok {
			return
		}
		d.Remove(path)
	}
}
