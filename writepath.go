package mmkv

import (
	"bytes"

	"github.com/IFLYmingchen7/mmkv/internal/mmapfile"
	"github.com/IFLYmingchen7/mmkv/internal/streamcipher"
	"github.com/IFLYmingchen7/mmkv/internal/varint"
	"github.com/pkg/errors"
)

// errCapacityExceeded is returned by ensureCapacity when a
// SharedMemoryBacked store cannot grow past
// its initial size.
var errCapacityExceeded = errors.New("mmkv: capacity exceeded on shared-memory-backed store")

// mutate runs fn under the lock order every mutator needs: in-process
// mutex, then exclusive file lock, then
// check_load_data -- and turns a returned error into the boolean the public
// API surfaces.
func (s *Store) mutate(fn func() error) bool {
	err := s.locks.withExclusive(func() error {
		if err := s.checkLoadData(); err != nil {
			return err
		}
		return fn()
	})
	if err != nil {
		log.WithError(err).WithField("mmap_id", s.mmapID).Warn("mmkv: mutation failed")
		return false
	}
	return true
}

// doAppendEntry implements append_entry. It assumes the
// caller already holds the exclusive lock and has run check_load_data. A
// zero-length value deletes key from the in-memory dictionary instead of
// storing it -- the same encoding remove() uses for its deletion marker.
func (s *Store) doAppendEntry(key string, value []byte) error {
	size := int64(varint.Len(len(key), len(value)))
	if err := s.ensureCapacity(size); err != nil {
		return err
	}

	entry := varint.AppendEntry(nil, []byte(key), value)
	if s.crypted {
		enc := make([]byte, len(entry))
		s.cipher.Encrypt(enc, entry)
		entry = enc
	}

	s.file.writeAt(s.outputSize, entry)
	s.outputSize += uint32(len(entry))
	s.file.writeHeaderMirror(s.outputSize)

	s.meta.CRCDigest = crcAppend(s.meta.CRCDigest, entry)
	s.meta.ActualSize = s.outputSize
	s.side.writeFast(s.meta.CRCDigest, s.meta.ActualSize)

	if len(value) == 0 {
		delete(s.dict, key)
	} else {
		s.dict[key] = append([]byte(nil), value...)
	}
	s.hasFullWriteback = false
	return nil
}

// ensureCapacity implements the growth policy: append in place if there is
// room, otherwise compact, first doubling the file until it exceeds the
// compacted form plus headroom for future appends. incoming is the
// number of additional log bytes the caller is about to write.
func (s *Store) ensureCapacity(incoming int64) error {
	if headerSize+int64(s.outputSize)+incoming <= s.file.size() {
		return nil
	}

	keys := sortedKeys(s.dict)
	compacted := varint.EncodeMap(s.dict, keys)

	n := int64(len(s.dict))
	if n == 0 {
		n = 1
	}
	needed := int64(len(compacted)) + headerSize + incoming
	headroom := (n + 1) / 2
	if headroom < 8 {
		headroom = 8
	}
	future := (needed / n) * headroom

	fileSize := s.file.size()
	if needed+future >= fileSize {
		if s.opts.Mode.Has(SharedMemoryBacked) {
			return errCapacityExceeded
		}
		newSize := fileSize
		for newSize <= needed+future {
			newSize *= 2
		}
		if err := s.file.grow(newSize); err != nil {
			return err
		}
	}

	return s.doFullWriteback(compacted)
}

// fullWriteback is a no-op if the
// region already reflects a full rewrite, clear_all() if the dictionary is
// now empty, otherwise a compaction. Callers must already hold the
// exclusive lock (raw, depth-counted -- see lockset.go) since this also
// runs from the load path (load.go), which manages the file lock itself.
func (s *Store) fullWriteback() error {
	if s.hasFullWriteback {
		return nil
	}
	if len(s.dict) == 0 {
		return s.clearAllLocked()
	}

	all := varint.EncodeMap(s.dict, sortedKeys(s.dict))
	if int64(len(all))+headerSize <= s.file.size() {
		return s.doFullWriteback(all)
	}
	return s.ensureCapacity(int64(len(all)) + headerSize - s.file.size())
}

// fullWritebackLocked is fullWriteback entered from outside an existing
// mutate() call -- the load path's recovery branch (load.go), which only
// holds ls.mu by the time it gets here and must take the exclusive file
// lock itself.
func (s *Store) fullWritebackLocked() error {
	if err := s.locks.xLock(); err != nil {
		return err
	}
	defer s.locks.xUnlock()
	return s.fullWriteback()
}

// doFullWriteback replaces the entire log region with all, drawing a fresh IV first if
// encryption is on, and recording the rewrite as a structural event
// (sequence bump, last_confirmed snapshot, synchronous flush).
func (s *Store) doFullWriteback(all []byte) error {
	oldOutputSize := s.outputSize

	if s.crypted {
		var iv [streamcipher.IVSize]byte
		if err := streamcipher.FillRandomIV(iv[:]); err != nil {
			return errors.Wrap(err, "mmkv: draw iv")
		}
		s.cipher.Reset(iv, 0)
		enc := make([]byte, len(all))
		s.cipher.Encrypt(enc, all)
		all = enc
		s.meta.IV = iv
	}

	s.file.writeAt(0, all)
	if uint32(len(all)) < oldOutputSize {
		tail := s.file.logRegion(oldOutputSize)[len(all):]
		for i := range tail {
			tail[i] = 0
		}
	}
	s.outputSize = uint32(len(all))
	s.file.writeHeaderMirror(s.outputSize)

	crc := crcOf(s.file.logRegion(s.outputSize))
	s.meta.ActualSize = s.outputSize
	s.meta.CRCDigest = crc
	s.meta.Sequence++
	s.meta.LastConfirmed = LastConfirmed{ActualSize: s.outputSize, CRCDigest: crc}
	s.meta.Version = requiredVersion(s.meta.Version, s.crypted, true)
	s.side.writeFull(s.meta)

	if err := s.side.msync(); err != nil {
		return err
	}
	if err := s.file.msync(); err != nil {
		return err
	}
	s.hasFullWriteback = true
	return nil
}

// clearAllLocked resets the store to empty in place. Callers must
// already hold the exclusive lock.
func (s *Store) clearAllLocked() error {
	ps := int64(mmapfile.PageSize())
	data := s.file.data()
	zeroLen := ps
	if int64(len(data)) < zeroLen {
		zeroLen = int64(len(data))
	}
	for i := range data[:zeroLen] {
		data[i] = 0
	}
	if err := s.file.msync(); err != nil {
		return err
	}
	if s.file.size() > ps {
		if err := s.file.shrink(ps); err != nil {
			return err
		}
	}

	var iv [streamcipher.IVSize]byte
	if s.crypted {
		if err := streamcipher.FillRandomIV(iv[:]); err != nil {
			return errors.Wrap(err, "mmkv: draw iv")
		}
		s.cipher.Reset(iv, 0)
		s.meta.IV = iv
	}

	s.meta.ActualSize = 0
	s.meta.CRCDigest = 0
	s.meta.Sequence++
	s.meta.LastConfirmed = LastConfirmed{}
	s.meta.Version = requiredVersion(s.meta.Version, s.crypted, true)
	s.side.writeFull(s.meta)
	if err := s.side.msync(); err != nil {
		return err
	}

	s.outputSize = 0
	s.dict = make(map[string][]byte)
	s.hasFullWriteback = true
	s.loaded = true
	return nil
}

// Remove appends a deletion marker for key only if it was actually
// present, otherwise it is a no-op.
func (s *Store) Remove(key string) bool {
	return s.mutate(func() error {
		if _, ok := s.dict[key]; !ok {
			return nil
		}
		return s.doAppendEntry(key, nil)
	})
}

// ClearAll drops every key and resets the primary file back to one page.
// It runs even on an already-empty store, bumping sequence each time.
func (s *Store) ClearAll() bool {
	return s.mutate(func() error {
		s.hasFullWriteback = false
		return s.clearAllLocked()
	})
}

// RemoveMany erases every key in memory first and compacts once, instead
// of emitting one deletion entry per key.
func (s *Store) RemoveMany(keys []string) bool {
	return s.mutate(func() error {
		for _, k := range keys {
			delete(s.dict, k)
		}
		s.hasFullWriteback = false
		return s.fullWriteback()
	})
}

// Compact forces a full rewrite of the log region, dropping any obsolete
// overwritten or deleted entries.
func (s *Store) Compact() bool {
	return s.mutate(func() error {
		s.hasFullWriteback = false
		return s.fullWriteback()
	})
}

// Trim compacts, then halves file_size while
// it stays more than twice the occupied region. A SharedMemoryBacked store
// cannot resize its backing file at all, so trim is documented as a no-op
// there rather than an error.
func (s *Store) Trim() bool {
	return s.mutate(func() error {
		if s.opts.Mode.Has(SharedMemoryBacked) {
			return nil
		}
		if s.file.size() <= int64(mmapfile.PageSize()) {
			return nil
		}
		s.hasFullWriteback = false
		if err := s.fullWriteback(); err != nil {
			return err
		}
		ps := int64(mmapfile.PageSize())
		newSize := s.file.size()
		for newSize > 2*(int64(s.outputSize)+headerSize) && newSize/2 >= ps {
			newSize /= 2
		}
		if newSize < s.file.size() {
			return s.file.shrink(newSize)
		}
		return nil
	})
}

// Rekey changes (or removes) the store's encryption key. newKey empty means
// "encrypted -> plain"; a non-empty key equal to the current one is a
// no-op; any other non-empty key installs a fresh cipher (drawing a new IV
// on the full-writeback that follows).
func (s *Store) Rekey(newKey []byte) bool {
	return s.mutate(func() error {
		switch {
		case !s.crypted && len(newKey) == 0:
			return nil
		case s.crypted && len(newKey) > 0 && bytes.Equal(newKey, s.opts.CryptKey):
			return nil
		case len(newKey) == 0:
			s.cipher = nil
			s.crypted = false
			s.opts.CryptKey = nil
		default:
			c, err := streamcipher.New(newKey)
			if err != nil {
				return errors.Wrap(err, "mmkv: rekey")
			}
			s.cipher = c
			s.crypted = true
			s.opts.CryptKey = append([]byte(nil), newKey...)
		}
		s.hasFullWriteback = false
		return s.fullWriteback()
	})
}
