package index

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexAll classifies everything as indexed, non-core.
func indexAll(string, bool) (bool, bool) { return true, false }

func addFile(d *Data, path string, core bool) *Node {
	_, name := splitPath(path)
	n := d.CreateNode(name, path, false, time.Now(), core, indexAll)
	d.Add(n)
	return n
}

func addDir(d *Data, path string, core bool) *Node {
	_, name := splitPath(path)
	n := d.CreateNode(name, path, true, time.Time{}, core, indexAll)
	d.Add(n)
	return n
}

// checkContainment asserts the invariant: a path is in the dynamic set
// exactly when it is indexed and non-core.
func checkContainment(t *testing.T, d *Data) {
	t.Helper()
	dynamic := 0
	for _, p := range d.Paths() {
		n, ok := d.Get(p)
		require.True(t, ok)
		if n.IsCore {
			assert.False(t, d.DynamicContains(p), "core node %q must not be in the dynamic set", p)
		} else {
			dynamic++
			assert.True(t, d.DynamicContains(p), "non-core node %q must be in the dynamic set", p)
		}
	}
	assert.Equal(t, dynamic, d.DynamicLen())
}

func TestNewData_RootNode(t *testing.T) {
	d := NewData(0)

	root := d.Root()
	require.NotNil(t, root)
	assert.Equal(t, "", root.Path)
	assert.True(t, root.IsDir)
	assert.True(t, root.IsCore)
	assert.Equal(t, 1, d.Len())
	assert.Equal(t, 0, d.DynamicLen())
}

func TestCreateNode_MaterializesAncestors(t *testing.T) {
	d := NewData(0)

	n := addFile(d, "a/b/c.txt", false)

	assert.Equal(t, "c.txt", n.Name)
	require.NotNil(t, n.Parent)
	assert.Equal(t, "a/b", n.Parent.Path)

	b, ok := d.Get("a/b")
	require.True(t, ok)
	assert.True(t, b.IsDir)
	assert.Same(t, n, b.Children["c.txt"])

	a, ok := d.Get("a")
	require.True(t, ok)
	assert.Same(t, b, a.Children["b"])
	assert.Same(t, d.Root(), a.Parent)
	assert.Same(t, a, d.Root().Children["a"])

	checkContainment(t, d)
}

func TestCreateNode_CorePromotesAncestors(t *testing.T) {
	d := NewData(0)
	addFile(d, "pkg/util.go", false)

	addFile(d, "pkg/core.go", true)

	pkg, ok := d.Get("pkg")
	require.True(t, ok)
	assert.True(t, pkg.IsCore, "ancestor of a core node becomes core")
	assert.False(t, d.DynamicContains("pkg"), "promotion leaves the dynamic set")
	checkContainment(t, d)
}

func TestCreateNode_ExistingPromotion(t *testing.T) {
	d := NewData(0)
	n := addFile(d, "x.txt", false)
	require.True(t, d.DynamicContains("x.txt"))

	again := d.CreateNode("x.txt", "x.txt", false, time.Now(), true, indexAll)
	assert.Same(t, n, again)
	assert.True(t, n.IsCore)
	checkContainment(t, d)
}

func TestRemove_UnlinksEverywhere(t *testing.T) {
	d := NewData(0)
	addFile(d, "a/b.txt", false)

	d.Remove("a/b.txt")

	assert.False(t, d.Has("a/b.txt"))
	a, ok := d.Get("a")
	require.True(t, ok)
	assert.NotContains(t, a.Children, "b.txt")
	assert.False(t, d.DynamicContains("a/b.txt"))
	assert.Empty(t, d.SearchPathPrefix("a/b"))
	assert.Empty(t, d.SearchNamePrefix("b.txt", ""))
	checkContainment(t, d)
}

func TestRemove_KeepsNamesakes(t *testing.T) {
	d := NewData(0)
	addFile(d, "a/main.go", false)
	addFile(d, "b/main.go", false)

	d.Remove("a/main.go")

	res := d.SearchNamePrefix("main", "")
	require.Len(t, res, 1)
	assert.Equal(t, "b/main.go", res[0].Path)
}

func TestRemoveSubtree(t *testing.T) {
	d := NewData(0)
	addFile(d, "src/a/deep/file.txt", false)
	addFile(d, "src/a/other.txt", false)
	addFile(d, "src/keep.txt", false)

	d.RemoveSubtree("src/a")

	for _, p := range []string{"src/a", "src/a/deep", "src/a/deep/file.txt", "src/a/other.txt"} {
		assert.False(t, d.Has(p), "%q should be gone", p)
	}
	assert.True(t, d.Has("src/keep.txt"))
	assert.True(t, d.Has("src"))
	checkContainment(t, d)
}

func TestEviction_LimitThree(t *testing.T) {
	d := NewData(3)

	for i := 1; i <= 3; i++ {
		addFile(d, fmt.Sprintf("f%d.txt", i), false)
	}
	assert.Equal(t, 3, d.DynamicLen())

	addFile(d, "f4.txt", false)

	// One over the limit: the single least-recently-touched node is
	// fully removed from every structure.
	assert.Equal(t, 3, d.DynamicLen())
	assert.False(t, d.Has("f1.txt"))
	assert.Empty(t, d.SearchNamePrefix("f1", ""))
	for _, p := range []string{"f2.txt", "f3.txt", "f4.txt"} {
		assert.True(t, d.Has(p))
	}
	checkContainment(t, d)
}

func TestEviction_TouchProtectsRecent(t *testing.T) {
	d := NewData(3)
	a := addFile(d, "a.txt", false)
	addFile(d, "b.txt", false)
	addFile(d, "c.txt", false)

	// Refresh a.txt so b.txt is now the oldest.
	d.Touch([]*Node{a})
	addFile(d, "d.txt", false)

	assert.True(t, d.Has("a.txt"))
	assert.False(t, d.Has("b.txt"))
	checkContainment(t, d)
}

func TestEviction_SparesCoreNodes(t *testing.T) {
	d := NewData(2)
	addFile(d, "core1.py", true)
	addFile(d, "core2.py", true)
	addFile(d, "d1.txt", false)
	addFile(d, "d2.txt", false)
	addFile(d, "d3.txt", false)

	assert.True(t, d.Has("core1.py"))
	assert.True(t, d.Has("core2.py"))
	assert.LessOrEqual(t, d.DynamicLen(), 2)
	checkContainment(t, d)
}

func TestTouch_RefreshesOnlyNonCore(t *testing.T) {
	d := NewData(0)
	core := addFile(d, "core.py", true)
	dyn := addFile(d, "dyn.txt", false)

	d.Touch([]*Node{core, dyn})

	assert.False(t, d.DynamicContains("core.py"))
	assert.True(t, d.DynamicContains("dyn.txt"))
}
