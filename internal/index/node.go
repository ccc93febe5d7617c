package index

import "time"

// Node represents one entity (file or directory) of the workspace tree.
//
// Nodes are owned exclusively by the Data aggregate's path map; Parent is
// a navigational back-reference only and confers no ownership, while
// Children is owned by the directory node holding it.
type Node struct {
	// Name is the final path segment ("" for the root).
	Name string

	// Path is the canonical root-relative path using forward slashes
	// ("" for the root).
	Path string

	// IsDir marks directory nodes.
	IsDir bool

	// MTime is the last file modification time. Zero for directories.
	MTime time.Time

	// Parent points at the containing directory node, nil for the root.
	Parent *Node

	// Children maps a child's name to its node. Nil for files.
	Children map[string]*Node

	// IsCore marks permanently retained nodes. The flag only ever
	// transitions false to true; it is cleared only by node removal.
	IsCore bool
}

// newNode builds a detached node. Directory nodes get an empty child map.
func newNode(name, path string, isDir bool, mtime time.Time, isCore bool) *Node {
	n := &Node{Name: name, Path: path, IsDir: isDir, MTime: mtime, IsCore: isCore}
	if isDir {
		n.Children = make(map[string]*Node)
	}
	return n
}

// splitPath returns the path of the containing directory ("" for
// top-level entries) and the final segment of path.
func splitPath(path string) (parent, name string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return "", path
}
