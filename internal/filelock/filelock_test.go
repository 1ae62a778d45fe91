package filelock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestFile(t *testing.T) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lock.dat")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestExclusiveNestsWithoutDeadlock(t *testing.T) {
	f := openTestFile(t)
	l := New(int(f.Fd()))

	require.NoError(t, l.Lock())
	require.NoError(t, l.Lock()) // nested, simulates Sync() inside a structural op
	require.Equal(t, Exclusive, l.Mode())

	require.NoError(t, l.Unlock())
	require.Equal(t, Exclusive, l.Mode()) // still held, outer scope
	require.NoError(t, l.Unlock())
	require.Equal(t, None, l.Mode())
}

func TestSharedNestsIndependently(t *testing.T) {
	f := openTestFile(t)
	l := New(int(f.Fd()))

	require.NoError(t, l.RLock())
	require.NoError(t, l.RLock())
	require.Equal(t, Shared, l.Mode())
	require.NoError(t, l.RUnlock())
	require.Equal(t, Shared, l.Mode())
	require.NoError(t, l.RUnlock())
	require.Equal(t, None, l.Mode())
}

func TestUnbalancedUnlockErrors(t *testing.T) {
	f := openTestFile(t)
	l := New(int(f.Fd()))
	require.Error(t, l.Unlock())
	require.Error(t, l.RUnlock())
}

func TestCannotAcquireExclusiveWhileSharedHeld(t *testing.T) {
	f := openTestFile(t)
	l := New(int(f.Fd()))
	require.NoError(t, l.RLock())
	require.Error(t, l.Lock())
	require.NoError(t, l.RUnlock())
}

func TestSharedNestsInsideExclusiveWithoutChangingMode(t *testing.T) {
	f := openTestFile(t)
	l := New(int(f.Fd()))

	require.NoError(t, l.Lock())
	require.NoError(t, l.RLock()) // a reader helper called from inside a mutator that already holds Exclusive
	require.Equal(t, Exclusive, l.Mode())
	require.NoError(t, l.RUnlock())
	require.Equal(t, Exclusive, l.Mode())
	require.NoError(t, l.Unlock())
	require.Equal(t, None, l.Mode())
}
