package index

import (
	"sort"
	"strings"
)

// ListDir returns the direct children of the directory stored at path,
// sorted by name. Missing paths and file nodes yield nil.
func (d *Data) ListDir(path string) []*Node {
	node, ok := d.nodes[path]
	if !ok || !node.IsDir {
		return nil
	}
	out := childrenOf(node)
	sortByName(out)
	return out
}

// SearchPathPrefix answers a query containing a path separator.
//
// A query exactly matching an indexed directory expands to that
// directory's children. Otherwise the path trie supplies every indexed
// path under the prefix; only file nodes are returned. If the trie yields
// nothing, a linear scan of the path map covers any trie/index
// divergence. Results are sorted by path.
func (d *Data) SearchPathPrefix(query string) []*Node {
	if node, ok := d.nodes[query]; ok && node.IsDir {
		out := childrenOf(node)
		sortByPath(out)
		return out
	}

	var out []*Node
	for _, path := range d.pathTrie.StartsWith(query) {
		node, ok := d.nodes[path]
		if !ok {
			continue
		}
		if node.IsDir {
			if node.Path == query {
				out = append(out, childrenOf(node)...)
			}
			continue
		}
		out = append(out, node)
	}
	if len(out) > 0 {
		sortByPath(out)
		return out
	}

	// Robustness fallback: the trie and the path map should agree, but a
	// divergence must not make indexed files unfindable.
	for path, node := range d.nodes {
		if path != query && strings.HasPrefix(path, query) && !node.IsDir {
			out = append(out, node)
		}
	}
	sortByPath(out)
	return out
}

// SearchNamePrefix answers a bare-name query in two phases.
//
// Phase one matches the query case-insensitively against the direct
// children of the contextual directory; an exact-name match that is a
// directory expands to its children. Phase two searches globally: a
// directory indexed under a path equal to the query expands to its
// children, otherwise the name trie yields every node whose name starts
// with the query, deduplicated and sorted by path.
func (d *Data) SearchNamePrefix(query, contextPath string) []*Node {
	queryLower := strings.ToLower(query)

	if ctx, ok := d.nodes[contextPath]; ok && ctx.IsDir {
		var out []*Node
		for _, child := range ctx.Children {
			nameLower := strings.ToLower(child.Name)
			if !strings.HasPrefix(nameLower, queryLower) {
				continue
			}
			if child.IsDir && nameLower == queryLower {
				out = append(out, childrenOf(child)...)
			} else {
				out = append(out, child)
			}
		}
		if len(out) > 0 {
			sortByName(out)
			return out
		}
	}

	if node, ok := d.nodes[query]; ok && node.IsDir {
		out := childrenOf(node)
		sortByPath(out)
		return out
	}

	seen := make(map[string]struct{})
	var out []*Node
	for _, paths := range d.nameTrie.StartsWith(queryLower) {
		for _, path := range paths {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			if node, ok := d.nodes[path]; ok {
				out = append(out, node)
			}
		}
	}
	sortByPath(out)
	return out
}

func childrenOf(node *Node) []*Node {
	out := make([]*Node, 0, len(node.Children))
	for _, c := range node.Children {
		out = append(out, c)
	}
	return out
}

func sortByPath(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })
}

func sortByName(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
}
