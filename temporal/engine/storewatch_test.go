package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWatcher(t *testing.T) (*StoreWatcher, string, *atomic.Int32) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tempo.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("seed"), 0o644))

	var reloads atomic.Int32
	w, err := NewStoreWatcher(dbPath, func(context.Context) error {
		reloads.Add(1)
		return nil
	}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond
	w.Start()
	t.Cleanup(func() { _ = w.Stop() })
	return w, dir, &reloads
}

func TestStoreWatcher_ReloadsOnWrite(t *testing.T) {
	_, dir, reloads := newTestWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tempo.db-wal"), []byte("frame"), 0o644))
	assert.Eventually(t, func() bool { return reloads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestStoreWatcher_DebouncesBursts(t *testing.T) {
	_, dir, reloads := newTestWatcher(t)

	path := filepath.Join(dir, "tempo.db")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
	}
	assert.Eventually(t, func() bool { return reloads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), reloads.Load())
}

func TestStoreWatcher_IgnoresOtherFiles(t *testing.T) {
	_, dir, reloads := newTestWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tempo.db.bak"), []byte("x"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, reloads.Load())
}

func TestStoreWatcher_IsStoreFile(t *testing.T) {
	w := &StoreWatcher{dbPath: "/var/lib/tempo/tempo.db"}
	assert.True(t, w.isStoreFile("/var/lib/tempo/tempo.db"))
	assert.True(t, w.isStoreFile("/var/lib/tempo/tempo.db-wal"))
	assert.True(t, w.isStoreFile("/var/lib/tempo/tempo.db-journal"))
	assert.False(t, w.isStoreFile("/var/lib/tempo/tempo.db-shm"))
	assert.False(t, w.isStoreFile("/var/lib/tempo/other.db"))
}

func TestStoreWatcher_StopIdempotent(t *testing.T) {
	w, dir, reloads := newTestWatcher(t)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tempo.db"), []byte("late"), 0o644))
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, reloads.Load())
}
