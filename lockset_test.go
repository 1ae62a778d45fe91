package mmkv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockSetSingleProcessSkipsFileLock(t *testing.T) {
	ls := newLockSet(0, false)
	require.Nil(t, ls.file)

	var ran bool
	require.NoError(t, ls.withExclusive(func() error { ran = true; return nil }))
	require.True(t, ran)
	require.NoError(t, ls.rLock())
	require.NoError(t, ls.rUnlock())
}

func TestLockSetMultiProcessUsesFileLock(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "lock.dat"))
	require.NoError(t, err)
	defer f.Close()

	ls := newLockSet(int(f.Fd()), true)
	require.NotNil(t, ls.file)

	var ran bool
	require.NoError(t, ls.withExclusive(func() error { ran = true; return nil }))
	require.True(t, ran)
	require.NoError(t, ls.rLock())
	require.NoError(t, ls.rUnlock())
}
