package mmkv

import (
	"hash/crc32"

	"github.com/IFLYmingchen7/mmkv/internal/varint"
)

// crcOf is the CRC-32 routine used throughout the integrity protocol;
// hash/crc32 is the direct stdlib expression of it.
func crcOf(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// crcAppend continues a CRC-32 computation that left off at prev, over
// newly-appended bytes: the CRC over the just-written post-encryption
// bytes is folded into the running digest rather than recomputed. CRC-32 is linear in its
// input stream, so this is exactly crcOf(oldBytes+newBytes) without
// re-reading oldBytes.
func crcAppend(prev uint32, newBytes []byte) uint32 {
	return crc32.Update(prev, crc32.IEEETable, newBytes)
}

// loadOutcome is the result of validateOnLoad.
type loadOutcome struct {
	actualSize uint32
	crcDigest  uint32

	// recoveredFromCheckpoint is true when last_confirmed, not the current
	// tip, is what validated -- the checkpoint rollback branch below.
	recoveredFromCheckpoint bool
	// needFullWriteback is true when a recovery hook salvaged a
	// best-effort prefix and the store must rewrite the log region on its
	// next full_writeback.
	needFullWriteback bool
	// discard is true when the logical store should reset to empty.
	discard bool
}

// validateOnLoad runs the four-step validation protocol: check the
// current tip, fall back to the last confirmed checkpoint, then consult
// the recovery hooks. candidateActualSize is whichever actual_size the
// caller resolved from the sidecar or the primary file's header mirror (meta.ActualSize for version >=
// V4, else the primary file's header mirror). logAt(n) must return the log
// bytes [4, 4+n) as currently on disk; it is only called with in-range n.
func validateOnLoad(candidateActualSize uint32, meta MetaRecord, fileSize int64, logAt func(n uint32) []byte, hooks RecoveryHooks, mmapID string) loadOutcome {
	maxLog := uint32(0)
	if fileSize > headerSize {
		maxLog = uint32(fileSize - headerSize)
	}

	if candidateActualSize > maxLog {
		// actual_size itself is out of range of the primary file.
		switch hooks.fileLengthError(mmapID) {
		case Discard:
			return loadOutcome{discard: true}
		default: // Recover
			candidateActualSize = maxLog
			return salvage(candidateActualSize, logAt)
		}
	}

	if crcOf(logAt(candidateActualSize)) == meta.CRCDigest {
		return loadOutcome{actualSize: candidateActualSize, crcDigest: meta.CRCDigest}
	}

	// Step 2: last_confirmed fallback.
	lc := meta.LastConfirmed
	if lc.ActualSize <= maxLog && lc.ActualSize <= candidateActualSize {
		if crcOf(logAt(lc.ActualSize)) == lc.CRCDigest {
			return loadOutcome{
				actualSize:              lc.ActualSize,
				crcDigest:               lc.CRCDigest,
				recoveredFromCheckpoint: true,
			}
		}
	}

	// Step 3: the CRC-check-fail recovery hook.
	switch hooks.crcCheckFail(mmapID) {
	case Discard:
		return loadOutcome{discard: true}
	default: // Recover
		return salvage(candidateActualSize, logAt)
	}
}

// salvage decodes entries from the front of the log up to limit, stopping
// at the first malformed entry, and reports however much of the prefix
// decoded cleanly. This is the "load as far as possible" recovery path; the
// caller still owes a full_writeback to repair the CRC and actual_size
// afterward (needFullWriteback).
func salvage(limit uint32, logAt func(n uint32) []byte) loadOutcome {
	data := logAt(limit)
	var good uint32
	off := 0
	for off < len(data) {
		_, _, n, err := varint.DecodeEntry(data[off:])
		if err != nil {
			break
		}
		off += n
		good = uint32(off)
	}
	return loadOutcome{
		actualSize:        good,
		crcDigest:         crcOf(data[:good]),
		needFullWriteback: true,
	}
}
