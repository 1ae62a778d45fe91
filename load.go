package mmkv

// coldLoad runs a Store's first load. The caller must already
// hold ls.mu; coldLoad manages the file lock itself, starting shared and
// escalating to exclusive only for the three steps that mutate the sidecar
// (checkpoint rewrite, reset-to-empty, and full_writeback).
func (s *Store) coldLoad() error {
	if err := s.locks.rLock(); err != nil {
		return err
	}
	unlockShared := true
	defer func() {
		if unlockShared {
			s.locks.rUnlock()
		}
	}()

	meta := s.side.read()
	s.meta = meta

	fileSize := s.file.size()
	var candidateActualSize uint32
	if meta.Version >= V4ActualSizeInMeta {
		candidateActualSize = meta.ActualSize
	} else {
		candidateActualSize = s.file.readHeaderMirror()
	}

	hadData := candidateActualSize > 0
	outcome := validateOnLoad(candidateActualSize, meta, fileSize, s.file.logRegion, s.opts.Recovery, s.mmapID)

	if outcome.discard {
		unlockShared = false
		if err := s.locks.rUnlock(); err != nil {
			return err
		}
		return s.resetToEmpty(hadData)
	}

	s.outputSize = outcome.actualSize
	s.meta.ActualSize = outcome.actualSize
	s.meta.CRCDigest = outcome.crcDigest

	if outcome.recoveredFromCheckpoint {
		unlockShared = false
		if err := s.locks.rUnlock(); err != nil {
			return err
		}
		if err := s.locks.xLock(); err != nil {
			return err
		}
		s.side.writeFast(outcome.crcDigest, outcome.actualSize)
		if err := s.side.msync(); err != nil {
			s.locks.xUnlock()
			return err
		}
		if err := s.locks.xUnlock(); err != nil {
			return err
		}
	}

	logBytes := s.file.logRegion(s.outputSize)
	plain := logBytes
	if s.crypted {
		s.cipher.Reset(meta.IV, 0)
		decoded := make([]byte, len(logBytes))
		s.cipher.Decrypt(decoded, logBytes)
		plain = decoded
		s.cipher.Reset(meta.IV, uint64(s.outputSize))
	}

	dict := make(map[string][]byte)
	if err := decodeDict(plain, dict); err != nil {
		log.WithError(err).WithField("mmap_id", s.mmapID).Warn("mmkv: log decoded clean CRC but malformed entries, discarding")
		if unlockShared {
			unlockShared = false
			if err := s.locks.rUnlock(); err != nil {
				return err
			}
		}
		return s.resetToEmpty(true)
	}
	s.dict = dict
	s.loaded = true

	if outcome.needFullWriteback {
		if unlockShared {
			unlockShared = false
			if err := s.locks.rUnlock(); err != nil {
				return err
			}
		}
		return s.fullWritebackLocked()
	}

	return nil
}

// resetToEmpty handles an empty or discarded store: acquire the exclusive file lock, zero the logical state, and write
// a fresh meta record, bumping sequence only if there was ever data to lose.
func (s *Store) resetToEmpty(hadData bool) error {
	if err := s.locks.xLock(); err != nil {
		return err
	}
	defer s.locks.xUnlock()

	s.outputSize = 0
	s.dict = make(map[string][]byte)
	s.file.writeHeaderMirror(0)

	newMeta := s.meta
	newMeta.ActualSize = 0
	newMeta.CRCDigest = 0
	if hadData {
		newMeta.Sequence++
		newMeta.LastConfirmed = LastConfirmed{}
	}
	newMeta.Version = requiredVersion(newMeta.Version, s.crypted, hadData)
	s.side.writeFull(newMeta)
	s.meta = newMeta
	s.loaded = true

	if hadData {
		if err := s.side.msync(); err != nil {
			return err
		}
	}
	return nil
}
