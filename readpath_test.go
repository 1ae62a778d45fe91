package mmkv

import (
	"testing"

	"github.com/IFLYmingchen7/mmkv/internal/mmapfile"
	"github.com/stretchr/testify/require"
)

func TestTypedGettersReturnDefaultWhenAbsent(t *testing.T) {
	s := openTestStore(t, StoreOptions{})

	v1, ok1 := s.GetInt32("missing", -1)
	require.False(t, ok1)
	require.Equal(t, int32(-1), v1)

	v2, ok2 := s.GetUint64("missing", 7)
	require.False(t, ok2)
	require.Equal(t, uint64(7), v2)

	v3, ok3 := s.GetBool("missing", true)
	require.False(t, ok3)
	require.True(t, v3)

	v4, ok4 := s.GetFloat64("missing", 1.5)
	require.False(t, ok4)
	require.Equal(t, 1.5, v4)
}

func TestTypedSettersRoundTrip(t *testing.T) {
	s := openTestStore(t, StoreOptions{})

	require.True(t, s.SetInt32("i32", -42))
	require.True(t, s.SetUint32("u32", 42))
	require.True(t, s.SetInt64("i64", -42000000000))
	require.True(t, s.SetUint64("u64", 42000000000))
	require.True(t, s.SetFloat64("f64", 3.14159))
	require.True(t, s.SetBool("b", true))

	i32, ok := s.GetInt32("i32", 0)
	require.True(t, ok)
	require.Equal(t, int32(-42), i32)

	u32, ok := s.GetUint32("u32", 0)
	require.True(t, ok)
	require.Equal(t, uint32(42), u32)

	i64, ok := s.GetInt64("i64", 0)
	require.True(t, ok)
	require.Equal(t, int64(-42000000000), i64)

	u64, ok := s.GetUint64("u64", 0)
	require.True(t, ok)
	require.Equal(t, uint64(42000000000), u64)

	f64, ok := s.GetFloat64("f64", 0)
	require.True(t, ok)
	require.Equal(t, 3.14159, f64)

	b, ok := s.GetBool("b", false)
	require.True(t, ok)
	require.True(t, b)
}

func TestOverwriteReplacesValue(t *testing.T) {
	s := openTestStore(t, StoreOptions{})
	require.True(t, s.SetString("k", "first"))
	require.True(t, s.SetString("k", "second"))

	v, ok := s.GetString("k", "")
	require.True(t, ok)
	require.Equal(t, "second", v)
	require.Equal(t, 1, s.Count())
}

func TestAllKeysMatchesCount(t *testing.T) {
	s := openTestStore(t, StoreOptions{})
	require.True(t, s.SetString("a", "1"))
	require.True(t, s.SetString("b", "2"))
	require.True(t, s.SetString("c", "3"))

	keys := s.AllKeys()
	require.Len(t, keys, 3)
	require.Equal(t, s.Count(), len(keys))
	require.ElementsMatch(t, []string{"a", "b", "c"}, keys)
}

func TestTotalSizeIsAlwaysPageMultiple(t *testing.T) {
	s := openTestStore(t, StoreOptions{})
	require.Equal(t, int64(0), s.TotalSize()%int64(mmapfile.PageSize()))
}

func TestCRCDigestChangesOnMutation(t *testing.T) {
	s := openTestStore(t, StoreOptions{})
	before := s.CRCDigest()
	require.True(t, s.SetString("a", "1"))
	require.NotEqual(t, before, s.CRCDigest())
}
