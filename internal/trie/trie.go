// Package trie implements a generic prefix tree over string keys.
// It backs the path and name lookup indices of the workspace index.
package trie

// node is a single trie node. A node with terminal set holds the value
// associated with the key spelled by the path from the root.
type node[V any] struct {
	children map[byte]*node[V]
	terminal bool
	value    V
}

func newNode[V any]() *node[V] {
	return &node[V]{children: make(map[byte]*node[V])}
}

// Trie maps arbitrary string keys to values of type V. Keys are treated
// as byte sequences; no normalization is performed. The zero value is not
// usable, call New.
type Trie[V any] struct {
	root *node[V]
	size int
}

// New creates an empty Trie.
func New[V any]() *Trie[V] {
	return &Trie[V]{root: newNode[V]()}
}

// Len returns the number of keys stored.
func (t *Trie[V]) Len() int {
	return t.size
}

// Insert stores value under key, replacing any previous value.
func (t *Trie[V]) Insert(key string, value V) {
	n := t.root
	for i := 0; i < len(key); i++ {
		c := key[i]
		child, ok := n.children[c]
		if !ok {
			child = newNode[V]()
			n.children[c] = child
		}
		n = child
	}
	if !n.terminal {
		t.size++
	}
	n.terminal = true
	n.value = value
}

// Get returns the value stored under key, if any. Only exact matches count.
func (t *Trie[V]) Get(key string) (V, bool) {
	var zero V
	n := t.root
	for i := 0; i < len(key); i++ {
		child, ok := n.children[key[i]]
		if !ok {
			return zero, false
		}
		n = child
	}
	if n.terminal {
		return n.value, true
	}
	return zero, false
}

// StartsWith returns the values of every key that begins with prefix,
// collected depth-first. Collection order is traversal order, not sorted.
func (t *Trie[V]) StartsWith(prefix string) []V {
	n := t.root
	for i := 0; i < len(prefix); i++ {
		child, ok := n.children[prefix[i]]
		if !ok {
			return nil
		}
		n = child
	}
	var out []V
	collect(n, &out)
	return out
}

func collect[V any](n *node[V], out *[]V) {
	if n.terminal {
		*out = append(*out, n.value)
	}
	for _, child := range n.children {
		collect(child, out)
	}
}

// Delete removes key and prunes any ancestor chain left without children
// and without a terminal marker. Returns whether the key was present.
func (t *Trie[V]) Delete(key string) bool {
	deleted := false
	t.remove(t.root, key, 0, &deleted)
	if deleted {
		t.size--
	}
	return deleted
}

// remove reports whether the child subtree rooted at the next byte of key
// became empty and should be unlinked from its parent.
func (t *Trie[V]) remove(n *node[V], key string, depth int, deleted *bool) bool {
	if depth == len(key) {
		if !n.terminal {
			return false
		}
		*deleted = true
		n.terminal = false
		var zero V
		n.value = zero
		return len(n.children) == 0
	}
	c := key[depth]
	child, ok := n.children[c]
	if !ok {
		return false
	}
	if t.remove(child, key, depth+1, deleted) {
		delete(n.children, c)
		return !n.terminal && len(n.children) == 0
	}
	return false
}
