package mmkv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func freshTestPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "corrupt.mmkv")
}

func openAt(t *testing.T, path string, opts StoreOptions) *Store {
	t.Helper()
	opts = resolveOptions(opts)
	file, err := openStoreFile(path, opts.Size)
	require.NoError(t, err)
	side, err := openSidecar(path + ".crc")
	require.NoError(t, err)
	s, err := newStore("corrupt", "", file, side, opts)
	require.NoError(t, err)
	return s
}

func TestColdLoadRollsBackToLastConfirmedOnTornTip(t *testing.T) {
	path := freshTestPath(t)

	s := openAt(t, path, StoreOptions{})
	require.True(t, s.SetString("a", "1"))
	require.True(t, s.Compact()) // captures a clean last_confirmed checkpoint
	checkpointSize := s.ActualSize()

	require.True(t, s.SetString("b", "2")) // fast-path append, no new checkpoint
	require.NoError(t, s.file.close())

	// Simulate a torn write: the sidecar's current crc_digest no longer
	// matches the log, but last_confirmed from the Compact still does.
	side, err := openSidecar(path + ".crc")
	require.NoError(t, err)
	m := side.read()
	m.CRCDigest ^= 0xffffffff
	side.writeFull(m)
	require.NoError(t, side.msync())
	require.NoError(t, side.close())

	reopened := openAt(t, path, StoreOptions{})
	defer func() { reopened.file.close(); reopened.side.close() }()

	require.True(t, reopened.ContainsKey("a"))
	require.False(t, reopened.ContainsKey("b"))
	require.Equal(t, checkpointSize, reopened.ActualSize())
}

func TestColdLoadDiscardsOnUnrecoverableCorruptionWithDiscardHook(t *testing.T) {
	path := freshTestPath(t)

	s := openAt(t, path, StoreOptions{})
	require.True(t, s.SetString("a", "1"))
	require.NoError(t, s.file.close())

	side, err := openSidecar(path + ".crc")
	require.NoError(t, err)
	m := side.read()
	m.CRCDigest ^= 0xffffffff
	m.LastConfirmed.CRCDigest ^= 0xffffffff
	side.writeFull(m)
	require.NoError(t, side.msync())
	require.NoError(t, side.close())

	var askedHook bool
	reopened := openAt(t, path, StoreOptions{Recovery: RecoveryHooks{
		OnCRCCheckFail: func(string) RecoveryAction { askedHook = true; return Discard },
	}})
	defer func() { reopened.file.close(); reopened.side.close() }()

	require.False(t, reopened.ContainsKey("a"))
	require.Equal(t, 0, reopened.Count())
	require.True(t, askedHook)
}

func TestColdLoadSalvagesCleanPrefixByDefault(t *testing.T) {
	path := freshTestPath(t)

	s := openAt(t, path, StoreOptions{})
	require.True(t, s.SetString("a", "1"))
	require.NoError(t, s.file.close())

	side, err := openSidecar(path + ".crc")
	require.NoError(t, err)
	m := side.read()
	m.CRCDigest ^= 0xffffffff
	m.LastConfirmed.CRCDigest ^= 0xffffffff
	side.writeFull(m)
	require.NoError(t, side.msync())
	require.NoError(t, side.close())

	reopened := openAt(t, path, StoreOptions{}) // default RecoveryHooks{} always Recovers
	defer func() { reopened.file.close(); reopened.side.close() }()

	require.True(t, reopened.ContainsKey("a"))
}

func TestColdLoadRejectsOutOfRangeActualSize(t *testing.T) {
	path := freshTestPath(t)

	s := openAt(t, path, StoreOptions{})
	require.True(t, s.SetString("a", "1"))
	require.NoError(t, s.file.close())

	side, err := openSidecar(path + ".crc")
	require.NoError(t, err)
	m := side.read()
	m.ActualSize = 1 << 30 // far past the mapped file
	m.Version = V4ActualSizeInMeta
	side.writeFull(m)
	require.NoError(t, side.msync())
	require.NoError(t, side.close())

	var askedHook bool
	reopened := openAt(t, path, StoreOptions{Recovery: RecoveryHooks{
		OnFileLengthError: func(string) RecoveryAction { askedHook = true; return Discard },
	}})
	defer func() { reopened.file.close(); reopened.side.close() }()

	require.Equal(t, 0, reopened.Count())
	require.True(t, askedHook)
}
