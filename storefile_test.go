package mmkv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderMirrorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.mmkv")
	sf, err := openStoreFile(path, 0)
	require.NoError(t, err)
	defer sf.close()

	sf.writeHeaderMirror(1234)
	require.Equal(t, uint32(1234), sf.readHeaderMirror())
}

func TestLogRegionAndWriteAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.mmkv")
	sf, err := openStoreFile(path, 0)
	require.NoError(t, err)
	defer sf.close()

	sf.writeAt(0, []byte("hello"))
	require.Equal(t, []byte("hello"), sf.logRegion(5))
}

func TestGrowThenShrink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.mmkv")
	sf, err := openStoreFile(path, 0)
	require.NoError(t, err)
	defer sf.close()

	initial := sf.size()
	require.NoError(t, sf.grow(initial*4))
	require.Greater(t, sf.size(), initial)

	require.NoError(t, sf.shrink(initial))
	require.Equal(t, initial, sf.size())
}
