package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T) *Data {
	t.Helper()
	d := NewData(0)
	addFile(d, "src/main.py", false)
	addFile(d, "src/utils.py", false)
	addFile(d, "src/sub/helper.py", false)
	addFile(d, "docs/readme.md", false)
	addFile(d, "Makefile", false)
	return d
}

func paths(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Path)
	}
	return out
}

func TestListDir(t *testing.T) {
	d := buildSample(t)

	got := paths(d.ListDir("src"))
	assert.Equal(t, []string{"src/main.py", "src/sub", "src/utils.py"}, got)

	assert.Nil(t, d.ListDir("missing"))
	assert.Nil(t, d.ListDir("src/main.py"), "files do not list")

	rootNames := make(map[string]bool)
	for _, n := range d.ListDir("") {
		rootNames[n.Name] = true
	}
	assert.True(t, rootNames["src"])
	assert.True(t, rootNames["Makefile"])
}

func TestSearchPathPrefix_ExactDirExpands(t *testing.T) {
	d := buildSample(t)

	got := paths(d.SearchPathPrefix("src"))
	assert.Equal(t, []string{"src/main.py", "src/sub", "src/utils.py"}, got)
}

func TestSearchPathPrefix_FilesOnly(t *testing.T) {
	d := buildSample(t)

	got := paths(d.SearchPathPrefix("src/"))
	// Directory nodes under the prefix are filtered out, files kept.
	assert.Equal(t, []string{"src/main.py", "src/sub/helper.py", "src/utils.py"}, got)

	got = paths(d.SearchPathPrefix("src/ma"))
	assert.Equal(t, []string{"src/main.py"}, got)

	assert.Empty(t, d.SearchPathPrefix("src/zzz"))
}

func TestSearchPathPrefix_LinearFallback(t *testing.T) {
	d := buildSample(t)
	// Simulate trie/index divergence: drop a key from the trie only.
	d.pathTrie.Delete("src/main.py")

	got := paths(d.SearchPathPrefix("src/ma"))
	assert.Equal(t, []string{"src/main.py"}, got)
}

func TestSearchNamePrefix_ContextPhase(t *testing.T) {
	d := buildSample(t)

	got := paths(d.SearchNamePrefix("ma", "src"))
	assert.Equal(t, []string{"src/main.py"}, got)

	// Case-insensitive against children of the context directory.
	got = paths(d.SearchNamePrefix("MAIN", "src"))
	assert.Equal(t, []string{"src/main.py"}, got)
}

func TestSearchNamePrefix_ExactDirNameExpands(t *testing.T) {
	d := buildSample(t)

	// "sub" exactly names a child directory of the context: expands.
	got := paths(d.SearchNamePrefix("sub", "src"))
	assert.Equal(t, []string{"src/sub/helper.py"}, got)
}

func TestSearchNamePrefix_GlobalPhase(t *testing.T) {
	d := buildSample(t)

	// No match under the context directory: falls to the global phase.
	got := paths(d.SearchNamePrefix("readme", "src"))
	assert.Equal(t, []string{"docs/readme.md"}, got)

	// Global phase is case-insensitive too.
	got = paths(d.SearchNamePrefix("README", "src"))
	assert.Equal(t, []string{"docs/readme.md"}, got)
}

func TestSearchNamePrefix_GlobalDirExpansion(t *testing.T) {
	d := buildSample(t)

	// A top-level directory whose path equals the bare name expands.
	got := paths(d.SearchNamePrefix("docs", ""))
	assert.Equal(t, []string{"docs/readme.md"}, got)
}

func TestSearchNamePrefix_Dedup(t *testing.T) {
	d := NewData(0)
	addFile(d, "a/main.go", false)
	addFile(d, "b/main.go", false)

	got := paths(d.SearchNamePrefix("main", ""))
	require.Equal(t, []string{"a/main.go", "b/main.go"}, got)
}

func TestSearchNamePrefix_NoMatch(t *testing.T) {
	d := buildSample(t)
	assert.Empty(t, d.SearchNamePrefix("nothing", ""))
}
