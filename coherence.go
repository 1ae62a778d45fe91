package mmkv

// checkLoadData is the hook every public Store operation runs first, under
// ls.mu. It is what lets a multi-process Store observe
// writes made by another process holding the same primary/sidecar files
// without itself re-reading from disk on every call.
func (s *Store) checkLoadData() error {
	if !s.loaded {
		return s.coldLoad()
	}
	if !s.IsMultiProcess() {
		return nil
	}
	return s.reconcileWithDisk()
}

// reconcileWithDisk compares the cached (sequence, crc_digest) against a
// fresh sidecar read. A sequence mismatch means a structural operation
// (full_writeback, clear_all, rekey) ran elsewhere and forces a full reload.
// A crc-only mismatch means an ordinary append grew the tail; reconcile
// decodes just the new bytes instead of the whole log, unless the primary
// file's on-disk size no longer matches what is mapped, in which case the
// mapping itself is stale and a full reload is the only safe option.
func (s *Store) reconcileWithDisk() error {
	if err := s.locks.rLock(); err != nil {
		return err
	}
	fresh := s.side.read()
	diskSize, statErr := s.file.statSize()
	if err := s.locks.rUnlock(); err != nil {
		return err
	}
	if statErr != nil {
		return statErr
	}

	if fresh.Sequence != s.meta.Sequence {
		return s.fullReload()
	}
	if fresh.CRCDigest == s.meta.CRCDigest {
		return nil
	}

	if diskSize != s.file.size() {
		if err := s.locks.xLock(); err != nil {
			return err
		}
		err := s.file.remap()
		if unlockErr := s.locks.xUnlock(); err == nil {
			err = unlockErr
		}
		if err != nil {
			return err
		}
		return s.fullReload()
	}

	if fresh.ActualSize < s.outputSize {
		return s.fullReload()
	}

	full := s.file.logRegion(fresh.ActualSize)
	if crcOf(full) != fresh.CRCDigest {
		return s.fullReload()
	}

	tail := full[s.outputSize:]
	plain := tail
	if s.crypted {
		decoded := make([]byte, len(tail))
		s.cipher.Reset(s.meta.IV, uint64(s.outputSize))
		s.cipher.Decrypt(decoded, tail)
		plain = decoded
	}
	if err := decodeDict(plain, s.dict); err != nil {
		return s.fullReload()
	}

	s.outputSize = fresh.ActualSize
	s.meta.CRCDigest = fresh.CRCDigest
	s.meta.ActualSize = fresh.ActualSize
	if s.crypted {
		s.cipher.Reset(s.meta.IV, uint64(s.outputSize))
	}
	s.notify()
	return nil
}

// fullReload re-runs coldLoad from scratch and, unlike the very first load,
// tells the caller's change-notification hook about it: this path only runs
// when a prior load already existed and something else changed the store
// out from under it.
func (s *Store) fullReload() error {
	s.loaded = false
	if err := s.coldLoad(); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Store) notify() {
	if s.notifyEnabled && s.opts.OnContentChanged != nil {
		s.opts.OnContentChanged(s.mmapID)
	}
}
