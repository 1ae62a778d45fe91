package mmkv

import (
	"sort"

	"github.com/IFLYmingchen7/mmkv/internal/varint"
)

// decodeDict replays every entry in log, last-write-wins, into dst. A
// zero-length value deletes the key, matching append_entry's own deletion
// encoding.
func decodeDict(log []byte, dst map[string][]byte) error {
	return varint.DecodeAll(log, func(key, value []byte) error {
		if len(value) == 0 {
			delete(dst, string(key))
			return nil
		}
		dst[string(key)] = append([]byte(nil), value...)
		return nil
	})
}

// sortedKeys returns dict's keys in a stable order, used only to make
// full-writeback output deterministic across repeated calls.
func sortedKeys(dict map[string][]byte) []string {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
