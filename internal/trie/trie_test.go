package trie

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrie_InsertAndGet(t *testing.T) {
	tr := New[string]()
	tr.Insert("app", "A")
	tr.Insert("apple", "B")
	tr.Insert("apply", "C")

	got, ok := tr.Get("app")
	require.True(t, ok)
	assert.Equal(t, "A", got)

	got, ok = tr.Get("apple")
	require.True(t, ok)
	assert.Equal(t, "B", got)

	_, ok = tr.Get("ap")
	assert.False(t, ok, "non-terminal prefix must not match")

	_, ok = tr.Get("apples")
	assert.False(t, ok)

	assert.Equal(t, 3, tr.Len())
}

func TestTrie_InsertReplaces(t *testing.T) {
	tr := New[int]()
	tr.Insert("key", 1)
	tr.Insert("key", 2)

	got, ok := tr.Get("key")
	require.True(t, ok)
	assert.Equal(t, 2, got)
	assert.Equal(t, 1, tr.Len())
}

func TestTrie_StartsWith(t *testing.T) {
	tr := New[string]()
	tr.Insert("app", "A")
	tr.Insert("apple", "B")
	tr.Insert("apply", "C")
	tr.Insert("banana", "D")

	got := tr.StartsWith("app")
	sort.Strings(got)
	assert.Equal(t, []string{"A", "B", "C"}, got)

	assert.Empty(t, tr.StartsWith("appliance"))
	assert.Len(t, tr.StartsWith(""), 4, "empty prefix collects everything")
}

func TestTrie_Delete(t *testing.T) {
	tr := New[string]()
	tr.Insert("app", "A")
	tr.Insert("apple", "B")
	tr.Insert("apply", "C")

	assert.True(t, tr.Delete("app"))
	assert.False(t, tr.Delete("app"), "double delete reports absence")
	assert.False(t, tr.Delete("missing"))

	_, ok := tr.Get("app")
	assert.False(t, ok)

	// Other keys are untouched.
	got, ok := tr.Get("apple")
	require.True(t, ok)
	assert.Equal(t, "B", got)
	got, ok = tr.Get("apply")
	require.True(t, ok)
	assert.Equal(t, "C", got)
	assert.Equal(t, 2, tr.Len())
}

func TestTrie_DeletePrunesEmptyChain(t *testing.T) {
	tr := New[string]()
	tr.Insert("abc", "X")
	tr.Insert("abcdef", "Y")

	require.True(t, tr.Delete("abcdef"))
	// The d-e-f chain is pruned but "abc" survives.
	got, ok := tr.Get("abc")
	require.True(t, ok)
	assert.Equal(t, "X", got)
	assert.Empty(t, tr.StartsWith("abcd"))

	require.True(t, tr.Delete("abc"))
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.StartsWith(""))
}

func TestTrie_EmptyKey(t *testing.T) {
	tr := New[string]()
	tr.Insert("", "root")

	got, ok := tr.Get("")
	require.True(t, ok)
	assert.Equal(t, "root", got)

	assert.True(t, tr.Delete(""))
	_, ok = tr.Get("")
	assert.False(t, ok)
}
