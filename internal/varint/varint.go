// Package varint implements the length-delimited entry codec the mmkv core
// builds its log on: each entry on disk is a varint-prefixed key followed by
// a varint-prefixed value, and a full map encoding is a concatenation of
// such entries.
package varint

import (
	"encoding/binary"
	"fmt"
)

// Len returns the exact encoded size of an entry for the given key/value
// lengths.
func Len(keyLen, valueLen int) int {
	return uvarintLen(uint64(keyLen)) + keyLen + uvarintLen(uint64(valueLen)) + valueLen
}

func uvarintLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// AppendEntry appends the varint-delimited encoding of key and value to dst
// and returns the extended slice. A deletion is encoded by passing a
// zero-length value.
func AppendEntry(dst []byte, key, value []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(key)))
	dst = append(dst, key...)
	dst = binary.AppendUvarint(dst, uint64(len(value)))
	dst = append(dst, value...)
	return dst
}

// DecodeEntry decodes a single entry from the front of data, returning the
// key, the value, and the number of bytes consumed. It returns an error if
// data does not hold a complete, well-formed entry.
func DecodeEntry(data []byte) (key, value []byte, n int, err error) {
	keyLen, off := binary.Uvarint(data)
	if off <= 0 {
		return nil, nil, 0, fmt.Errorf("varint: bad key length header")
	}
	if off+int(keyLen) > len(data) {
		return nil, nil, 0, fmt.Errorf("varint: truncated key (want %d bytes)", keyLen)
	}
	key = data[off : off+int(keyLen)]
	off += int(keyLen)

	valueLen, n2 := binary.Uvarint(data[off:])
	if n2 <= 0 {
		return nil, nil, 0, fmt.Errorf("varint: bad value length header")
	}
	off += n2
	if off+int(valueLen) > len(data) {
		return nil, nil, 0, fmt.Errorf("varint: truncated value (want %d bytes)", valueLen)
	}
	value = data[off : off+int(valueLen)]
	off += int(valueLen)

	return key, value, off, nil
}

// Visitor is called once per decoded entry, in on-disk order.
type Visitor func(key, value []byte) error

// DecodeAll walks every entry in data, in order, calling visit for each one.
// It returns an error as soon as a malformed entry or a short visitor error
// is encountered; bytes already visited are not rolled back.
func DecodeAll(data []byte, visit Visitor) error {
	off := 0
	for off < len(data) {
		key, value, n, err := DecodeEntry(data[off:])
		if err != nil {
			return fmt.Errorf("varint: entry at offset %d: %w", off, err)
		}
		if err := visit(key, value); err != nil {
			return err
		}
		off += n
	}
	return nil
}

// EncodeMap concatenates the varint encoding of every key/value pair in m,
// in the iteration order given by keys. This is the full map encoding a
// full-writeback compaction produces.
func EncodeMap(m map[string][]byte, keys []string) []byte {
	size := 0
	for _, k := range keys {
		size += Len(len(k), len(m[k]))
	}
	dst := make([]byte, 0, size)
	for _, k := range keys {
		dst = AppendEntry(dst, []byte(k), m[k])
	}
	return dst
}
