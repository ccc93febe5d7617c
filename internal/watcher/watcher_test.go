package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectUntil(t *testing.T, w *Watcher, match func(Event) bool, timeout time.Duration) (Event, bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return Event{}, false
			}
			if match(ev) {
				return ev, true
			}
		case <-deadline:
			return Event{}, false
		}
	}
}

func TestWatcher_FileCreate(t *testing.T) {
	root := t.TempDir()
	w, err := New(Options{})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	require.NoError(t, w.Start(context.Background(), root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0o644))

	ev, ok := collectUntil(t, w, func(ev Event) bool {
		return ev.Path == "hello.txt" && ev.Op == OpCreate
	}, 3*time.Second)
	require.True(t, ok, "expected create event for hello.txt")
	assert.False(t, ev.IsDir)
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	w, err := New(Options{})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	require.NoError(t, w.Start(context.Background(), root))

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	_, ok := collectUntil(t, w, func(ev Event) bool {
		return ev.Path == "sub" && ev.Op == OpCreate && ev.IsDir
	}, 3*time.Second)
	require.True(t, ok, "expected create event for sub")

	// Events inside the new directory must flow, proving it joined the
	// watch set.
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.txt"), nil, 0o644))
	_, ok = collectUntil(t, w, func(ev Event) bool {
		return ev.Path == "sub/inner.txt" && ev.Op == OpCreate
	}, 3*time.Second)
	assert.True(t, ok, "expected create event for sub/inner.txt")
}

func TestWatcher_Remove(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "gone.txt")
	require.NoError(t, os.WriteFile(target, nil, 0o644))

	w, err := New(Options{})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()
	require.NoError(t, w.Start(context.Background(), root))

	require.NoError(t, os.Remove(target))

	_, ok := collectUntil(t, w, func(ev Event) bool {
		return ev.Path == "gone.txt" && ev.Op == OpRemove
	}, 3*time.Second)
	assert.True(t, ok, "expected remove event")
}

func TestWatcher_StopClosesChannels(t *testing.T) {
	root := t.TempDir()
	w, err := New(Options{})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), root))

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop(), "stop is idempotent")

	_, ok := <-w.Events()
	assert.False(t, ok, "events channel closes on stop")
	_, ok = <-w.Errors()
	assert.False(t, ok, "errors channel closes on stop")
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	assert.Equal(t, 1024, opts.EventBufferSize)

	opts = Options{EventBufferSize: 9}.WithDefaults()
	assert.Equal(t, 9, opts.EventBufferSize)
}
