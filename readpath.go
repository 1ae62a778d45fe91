package mmkv

import (
	"encoding/binary"
	"math"
)

// SetBytes stores value under key verbatim. An empty key or an empty value
// is rejected: a zero-length value is indistinguishable on disk from
// append_entry's own deletion marker, so the raw-bytes API refuses it
// outright rather than silently deleting.
func (s *Store) SetBytes(key string, value []byte) bool {
	if key == "" || len(value) == 0 {
		return false
	}
	return s.mutate(func() error {
		return s.doAppendEntry(key, value)
	})
}

// GetBytes returns the raw bytes stored under key, or (nil, false) if key
// is absent. The returned slice is only valid until the next mutating call
// on this Store.
func (s *Store) GetBytes(key string) ([]byte, bool) {
	var value []byte
	var ok bool
	s.read(func() {
		value, ok = s.dict[key]
	})
	return value, ok
}

// read runs fn under check_load_data with only the shared/in-process lock a
// pure reader needs: in-process mutex always, file lock only
// when the store already has one.
func (s *Store) read(fn func()) {
	s.locks.mu.Lock()
	defer s.locks.mu.Unlock()
	if err := s.checkLoadData(); err != nil {
		log.WithError(err).WithField("mmap_id", s.mmapID).Warn("mmkv: check_load_data failed")
	}
	fn()
}

// encodeString wraps s in its own varint length prefix before it is handed
// to append_entry, so that an empty string still produces a non-empty
// stored value.
func encodeString(s string) []byte {
	buf := make([]byte, 0, binary.MaxVarintLen64+len(s))
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	buf = append(buf, s...)
	return buf
}

func decodeString(buf []byte) (string, bool) {
	n, off := binary.Uvarint(buf)
	if off <= 0 || off+int(n) > len(buf) {
		return "", false
	}
	return string(buf[off : off+int(n)]), true
}

// SetString stores key's value as a length-prefixed string.
func (s *Store) SetString(key, value string) bool {
	if key == "" {
		return false
	}
	return s.mutate(func() error {
		return s.doAppendEntry(key, encodeString(value))
	})
}

// GetString returns key's string value and true, or def and false if key is
// absent or the stored value is not a well-formed encoded string.
func (s *Store) GetString(key, def string) (string, bool) {
	raw, ok := s.GetBytes(key)
	if !ok {
		return def, false
	}
	v, ok := decodeString(raw)
	if !ok {
		return def, false
	}
	return v, true
}

// SetInt32 stores a fixed 4-byte little-endian encoding of value.
func (s *Store) SetInt32(key string, value int32) bool {
	return s.setFixed(key, func(buf []byte) { binary.LittleEndian.PutUint32(buf, uint32(value)) }, 4)
}

// GetInt32 returns key's int32 value and true, or def and false if absent or
// malformed.
func (s *Store) GetInt32(key string, def int32) (int32, bool) {
	raw, ok := s.GetBytes(key)
	if !ok || len(raw) != 4 {
		return def, false
	}
	return int32(binary.LittleEndian.Uint32(raw)), true
}

// SetUint32 stores a fixed 4-byte little-endian encoding of value.
func (s *Store) SetUint32(key string, value uint32) bool {
	return s.setFixed(key, func(buf []byte) { binary.LittleEndian.PutUint32(buf, value) }, 4)
}

// GetUint32 returns key's uint32 value and true, or def and false if absent
// or malformed.
func (s *Store) GetUint32(key string, def uint32) (uint32, bool) {
	raw, ok := s.GetBytes(key)
	if !ok || len(raw) != 4 {
		return def, false
	}
	return binary.LittleEndian.Uint32(raw), true
}

// SetInt64 stores a fixed 8-byte little-endian encoding of value.
func (s *Store) SetInt64(key string, value int64) bool {
	return s.setFixed(key, func(buf []byte) { binary.LittleEndian.PutUint64(buf, uint64(value)) }, 8)
}

// GetInt64 returns key's int64 value and true, or def and false if absent or
// malformed.
func (s *Store) GetInt64(key string, def int64) (int64, bool) {
	raw, ok := s.GetBytes(key)
	if !ok || len(raw) != 8 {
		return def, false
	}
	return int64(binary.LittleEndian.Uint64(raw)), true
}

// SetUint64 stores a fixed 8-byte little-endian encoding of value.
func (s *Store) SetUint64(key string, value uint64) bool {
	return s.setFixed(key, func(buf []byte) { binary.LittleEndian.PutUint64(buf, value) }, 8)
}

// GetUint64 returns key's uint64 value and true, or def and false if absent
// or malformed.
func (s *Store) GetUint64(key string, def uint64) (uint64, bool) {
	raw, ok := s.GetBytes(key)
	if !ok || len(raw) != 8 {
		return def, false
	}
	return binary.LittleEndian.Uint64(raw), true
}

// SetFloat64 stores value as its raw IEEE-754 bit pattern, 8 bytes
// little-endian.
func (s *Store) SetFloat64(key string, value float64) bool {
	return s.setFixed(key, func(buf []byte) { binary.LittleEndian.PutUint64(buf, math.Float64bits(value)) }, 8)
}

// GetFloat64 returns key's float64 value and true, or def and false if
// absent or malformed.
func (s *Store) GetFloat64(key string, def float64) (float64, bool) {
	raw, ok := s.GetBytes(key)
	if !ok || len(raw) != 8 {
		return def, false
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(raw)), true
}

// SetBool stores value as a single byte, 1 for true and 0 for false.
func (s *Store) SetBool(key string, value bool) bool {
	b := byte(0)
	if value {
		b = 1
	}
	return s.setFixed(key, func(buf []byte) { buf[0] = b }, 1)
}

// GetBool returns key's bool value and true, or def and false if absent or
// malformed.
func (s *Store) GetBool(key string, def bool) (bool, bool) {
	raw, ok := s.GetBytes(key)
	if !ok || len(raw) != 1 {
		return def, false
	}
	return raw[0] != 0, true
}

func (s *Store) setFixed(key string, fill func(buf []byte), width int) bool {
	if key == "" {
		return false
	}
	buf := make([]byte, width)
	fill(buf)
	return s.mutate(func() error {
		return s.doAppendEntry(key, buf)
	})
}

// ContainsKey reports whether key is currently present.
func (s *Store) ContainsKey(key string) bool {
	_, ok := s.GetBytes(key)
	return ok
}

// Count returns the number of live keys.
func (s *Store) Count() int {
	var n int
	s.read(func() { n = len(s.dict) })
	return n
}

// AllKeys returns every live key, in no particular order.
func (s *Store) AllKeys() []string {
	var keys []string
	s.read(func() {
		keys = make([]string, 0, len(s.dict))
		for k := range s.dict {
			keys = append(keys, k)
		}
	})
	return keys
}

// TotalSize returns the primary file's current mapped size in bytes,
// always a multiple of the system page size.
func (s *Store) TotalSize() int64 {
	var n int64
	s.read(func() { n = s.file.size() })
	return n
}

// ActualSize returns the number of live log bytes, i.e. the output cursor.
func (s *Store) ActualSize() uint32 {
	var n uint32
	s.read(func() { n = s.outputSize })
	return n
}

// CRCDigest returns the sidecar's current crc_digest field.
func (s *Store) CRCDigest() uint32 {
	var c uint32
	s.read(func() { c = s.meta.CRCDigest })
	return c
}
