package mmkv

import (
	"encoding/binary"

	"github.com/IFLYmingchen7/mmkv/internal/mmapfile"
	"github.com/IFLYmingchen7/mmkv/internal/streamcipher"
	"github.com/pkg/errors"
)

// Version is the sidecar's monotone schema tag. Version never
// decreases once a store has observed a higher one.
type Version uint32

const (
	// V1Plain is a bare CRC + actual_size sidecar with no sequence or IV.
	V1Plain Version = 1
	// V2Sequence adds the sequence counter.
	V2Sequence Version = 2
	// V3RandomIV adds the per-store stream-cipher IV.
	V3RandomIV Version = 3
	// V4ActualSizeInMeta makes actual_size (and last_confirmed) in the
	// sidecar authoritative over the primary file's 4-byte header mirror.
	V4ActualSizeInMeta Version = 4
)

const (
	metaOffCRCDigest             = 0
	metaOffActualSize            = 4
	metaOffVersion               = 8
	metaOffSequence              = 12
	metaOffIV                    = 16
	metaOffLastConfirmedSize     = metaOffIV + streamcipher.IVSize
	metaOffLastConfirmedCRC      = metaOffLastConfirmedSize + 4
	metaRecordSize               = metaOffLastConfirmedCRC + 4
	metaFastPathSize             = metaOffVersion // first 8 bytes: crc_digest + actual_size
)

// LastConfirmed is the checkpoint captured whenever sequence increases
//, used to roll forward on corruption of the current tip.
type LastConfirmed struct {
	ActualSize uint32
	CRCDigest  uint32
}

// MetaRecord is the fixed-size sidecar record.
type MetaRecord struct {
	CRCDigest     uint32
	ActualSize    uint32
	Version       Version
	Sequence      uint32
	IV            [streamcipher.IVSize]byte
	LastConfirmed LastConfirmed
}

func decodeMeta(buf []byte) MetaRecord {
	var m MetaRecord
	m.CRCDigest = binary.LittleEndian.Uint32(buf[metaOffCRCDigest:])
	m.ActualSize = binary.LittleEndian.Uint32(buf[metaOffActualSize:])
	m.Version = Version(binary.LittleEndian.Uint32(buf[metaOffVersion:]))
	m.Sequence = binary.LittleEndian.Uint32(buf[metaOffSequence:])
	copy(m.IV[:], buf[metaOffIV:metaOffIV+streamcipher.IVSize])
	m.LastConfirmed.ActualSize = binary.LittleEndian.Uint32(buf[metaOffLastConfirmedSize:])
	m.LastConfirmed.CRCDigest = binary.LittleEndian.Uint32(buf[metaOffLastConfirmedCRC:])
	return m
}

func (m MetaRecord) encodeFull(buf []byte) {
	binary.LittleEndian.PutUint32(buf[metaOffCRCDigest:], m.CRCDigest)
	binary.LittleEndian.PutUint32(buf[metaOffActualSize:], m.ActualSize)
	binary.LittleEndian.PutUint32(buf[metaOffVersion:], uint32(m.Version))
	binary.LittleEndian.PutUint32(buf[metaOffSequence:], m.Sequence)
	copy(buf[metaOffIV:metaOffIV+streamcipher.IVSize], m.IV[:])
	binary.LittleEndian.PutUint32(buf[metaOffLastConfirmedSize:], m.LastConfirmed.ActualSize)
	binary.LittleEndian.PutUint32(buf[metaOffLastConfirmedCRC:], m.LastConfirmed.CRCDigest)
}

func (m MetaRecord) encodeFast(buf []byte) {
	binary.LittleEndian.PutUint32(buf[metaOffCRCDigest:], m.CRCDigest)
	binary.LittleEndian.PutUint32(buf[metaOffActualSize:], m.ActualSize)
}

// sidecar wraps the ".crc" file: one page, mapped, holding a
// single MetaRecord at offset 0.
type sidecar struct {
	mm *mmapfile.File
}

func openSidecar(path string) (*sidecar, error) {
	mm, err := mmapfile.Open(path, int64(mmapfile.PageSize()))
	if err != nil {
		return nil, errors.Wrap(err, "mmkv: open sidecar")
	}
	return &sidecar{mm: mm}, nil
}

// openSidecarFd wraps a caller-supplied sidecar fd for OpenWithSharedMemory.
func openSidecarFd(fd uintptr) (*sidecar, error) {
	mm, err := mmapfile.OpenFd(fd, int64(mmapfile.PageSize()))
	if err != nil {
		return nil, errors.Wrap(err, "mmkv: open shared sidecar")
	}
	return &sidecar{mm: mm}, nil
}

func (s *sidecar) fd() uintptr {
	return s.mm.Fd()
}

func (s *sidecar) read() MetaRecord {
	return decodeMeta(s.mm.Bytes())
}

// writeFull persists every field of m. Used whenever version changes, iv
// changes, or sequence increases.
func (s *sidecar) writeFull(m MetaRecord) {
	m.encodeFull(s.mm.Bytes())
}

// writeFast persists only crc_digest and actual_size, the 8-byte fast path
// used on every append that does not change version/iv/sequence.
func (s *sidecar) writeFast(crc, actualSize uint32) {
	m := MetaRecord{CRCDigest: crc, ActualSize: actualSize}
	m.encodeFast(s.mm.Bytes()[:metaFastPathSize])
}

func (s *sidecar) msync() error {
	return s.mm.Msync()
}

func (s *sidecar) close() error {
	return s.mm.Close()
}

// requiredVersion computes the version a meta write must carry given its
// inputs, never decreasing below current.
func requiredVersion(current Version, hasIV, increaseSeq bool) Version {
	v := current
	if v < V2Sequence {
		v = V2Sequence
	}
	if hasIV && v < V3RandomIV {
		v = V3RandomIV
	}
	if increaseSeq && v < V4ActualSizeInMeta {
		v = V4ActualSizeInMeta
	}
	return v
}
