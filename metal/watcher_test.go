package metal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLibraryWatcherWatchAndUnwatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shader.metallib")
	require.NoError(t, os.WriteFile(path, []byte("MTLB"), 0o644))

	lw, err := NewLibraryWatcher(nil)
	require.NoError(t, err)
	defer lw.Close()

	require.NoError(t, lw.Watch(path, func(string, *Library, error) {}))

	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	lw.mu.Lock()
	_, ok := lw.handlers[abs]
	lw.mu.Unlock()
	require.True(t, ok, "handler should be registered under the absolute path")

	require.NoError(t, lw.Unwatch(path))
	lw.mu.Lock()
	_, ok = lw.handlers[abs]
	lw.mu.Unlock()
	require.False(t, ok, "handler should be removed after Unwatch")
}
