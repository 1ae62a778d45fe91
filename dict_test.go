package mmkv

import (
	"testing"

	"github.com/IFLYmingchen7/mmkv/internal/varint"
	"github.com/stretchr/testify/require"
)

func TestDecodeDictLastWriteWinsAndTombstones(t *testing.T) {
	var log []byte
	log = varint.AppendEntry(log, []byte("a"), []byte("1"))
	log = varint.AppendEntry(log, []byte("b"), []byte("2"))
	log = varint.AppendEntry(log, []byte("a"), []byte("overwritten"))
	log = varint.AppendEntry(log, []byte("b"), nil) // tombstone

	dict := make(map[string][]byte)
	require.NoError(t, decodeDict(log, dict))
	require.Equal(t, map[string][]byte{"a": []byte("overwritten")}, dict)
}

func TestDecodeDictPropagatesMalformedEntryError(t *testing.T) {
	log := []byte{0xff, 0xff, 0xff, 0xff, 0xff} // an unterminated varint
	dict := make(map[string][]byte)
	require.Error(t, decodeDict(log, dict))
}

func TestSortedKeysIsDeterministic(t *testing.T) {
	dict := map[string][]byte{"z": nil, "a": nil, "m": nil}
	require.Equal(t, []string{"a", "m", "z"}, sortedKeys(dict))
}
