package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Event handlers are exercised directly here; the watcher-driven path is
// covered by the lifecycle tests.

func TestApplyFileMoved(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "x")

	ix, err := New(root, Options{})
	require.NoError(t, err)

	ix.apply(event{kind: evFileCreated, path: "a.txt"})
	require.True(t, ix.has("a.txt"))

	require.NoError(t, os.Rename(filepath.Join(root, "a.txt"), filepath.Join(root, "b.txt")))
	ix.apply(event{kind: evFileMoved, path: "a.txt", dest: "b.txt"})

	assert.False(t, ix.has("a.txt"))
	assert.True(t, ix.has("b.txt"))
}

func TestApplyFileMovedUnknownSource(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.txt", "x")

	ix, err := New(root, Options{})
	require.NoError(t, err)

	// A move whose source was never indexed is dropped whole; the
	// destination surfaces later through its own events or a scan.
	ix.apply(event{kind: evFileMoved, path: "never-seen.txt", dest: "b.txt"})
	assert.False(t, ix.has("b.txt"))
}

func TestApplyDirMovedRepopulatesChildren(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "d1/f.txt", "x")

	ix, err := New(root, Options{})
	require.NoError(t, err)

	ix.apply(event{kind: evDirCreated, path: "d1"})
	require.True(t, ix.has("d1"))
	require.True(t, ix.has("d1/f.txt"))

	require.NoError(t, os.Rename(filepath.Join(root, "d1"), filepath.Join(root, "d2")))
	ix.apply(event{kind: evDirMoved, path: "d1", dest: "d2"})

	assert.False(t, ix.has("d1"))
	assert.False(t, ix.has("d1/f.txt"))
	assert.True(t, ix.has("d2"))
	assert.True(t, ix.has("d2/f.txt"))
}

func TestApplyDeletedSubtree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "d/sub/f.txt", "x")

	ix, err := New(root, Options{})
	require.NoError(t, err)

	ix.apply(event{kind: evDirCreated, path: "d"})
	ix.apply(event{kind: evDirCreated, path: "d/sub"})
	require.True(t, ix.has("d/sub/f.txt"))

	ix.apply(event{kind: evDirDeleted, path: "d"})
	assert.False(t, ix.has("d"))
	assert.False(t, ix.has("d/sub"))
	assert.False(t, ix.has("d/sub/f.txt"))
}

func TestApplyIgnoreRulesChanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "tmp.log", "x")
	writeFile(t, root, "keep.txt", "x")

	ix, err := New(root, Options{UseIgnoreFiles: true})
	require.NoError(t, err)

	ix.apply(event{kind: evFileCreated, path: "tmp.log"})
	ix.apply(event{kind: evFileCreated, path: "keep.txt"})
	require.True(t, ix.has("tmp.log"))
	require.True(t, ix.has("keep.txt"))

	writeFile(t, root, ".gitignore", "*.log\n")
	ix.apply(event{kind: evIgnoreRulesChanged})

	assert.False(t, ix.has("tmp.log"))
	assert.True(t, ix.has("keep.txt"))
}

func TestIgnoreRulesSpareCoreNodes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pinned.log", "x")

	ix, err := New(root, Options{
		UseIgnoreFiles: true,
		CorePatterns:   []string{"pinned.log"},
	})
	require.NoError(t, err)

	ix.apply(event{kind: evFileCreated, path: "pinned.log"})
	require.True(t, ix.has("pinned.log"))

	writeFile(t, root, ".gitignore", "*.log\n")
	ix.apply(event{kind: evIgnoreRulesChanged})

	assert.True(t, ix.has("pinned.log"), "core nodes survive rule changes")
}

func TestApplySurvivesHandlerErrors(t *testing.T) {
	ix, err := New(t.TempDir(), Options{})
	require.NoError(t, err)

	// The file does not exist on disk; stat fails and the event is
	// discarded without panicking.
	ix.apply(event{kind: evFileCreated, path: "ghost.txt"})
	assert.False(t, ix.has("ghost.txt"))
}
