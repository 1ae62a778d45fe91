package mmkv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryOpenCachesByIdentity(t *testing.T) {
	r := &Registry{stores: make(map[string]*Store)}
	r.initialize(t.TempDir())

	a := r.open("same-id", StoreOptions{})
	require.NotNil(t, a)
	b := r.open("same-id", StoreOptions{})
	require.Same(t, a, b)
}

func TestRegistryOpenRejectsEmptyMmapID(t *testing.T) {
	r := &Registry{stores: make(map[string]*Store)}
	r.initialize(t.TempDir())
	require.Nil(t, r.open("", StoreOptions{}))
}

func TestRegistryRedirectsReservedCharactersToSpecialDirectory(t *testing.T) {
	root := t.TempDir()
	r := &Registry{stores: make(map[string]*Store)}
	r.initialize(root)

	s := r.open("weird/name:with*chars", StoreOptions{})
	require.NotNil(t, s)

	entries, err := os.ReadDir(filepath.Join(root, "specialCharacter"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestRegistrySameMmapIDUnderDifferentRelativePathsDoNotCollide(t *testing.T) {
	r := &Registry{stores: make(map[string]*Store)}
	r.initialize(t.TempDir())

	a := r.open("shared-name", StoreOptions{RelativePath: "tenant-a"})
	b := r.open("shared-name", StoreOptions{RelativePath: "tenant-b"})
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotSame(t, a, b)
}

func TestRegistryForgetAllowsReopenOfFreshStore(t *testing.T) {
	r := &Registry{stores: make(map[string]*Store)}
	r.initialize(t.TempDir())

	a := r.open("id", StoreOptions{})
	require.True(t, a.SetString("k", "v"))
	require.NoError(t, a.Close()) // Close calls defaultRegistry.forget, not r.forget

	r.forget(a)
	b := r.open("id", StoreOptions{})
	require.NotSame(t, a, b)
	v, ok := b.GetString("k", "")
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestIdentityDependsOnRelativePath(t *testing.T) {
	require.Equal(t, "id", identity("", "id"))
	require.NotEqual(t, identity("a", "id"), identity("b", "id"))
}
