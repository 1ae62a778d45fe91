package mmkv

import (
	"encoding/binary"

	"github.com/IFLYmingchen7/mmkv/internal/mmapfile"
)

// headerSize is the 4-byte little-endian mirror of actual_size at the front
// of the primary file.
const headerSize = 4

// storeFile is the primary mmap region: the 4-byte header followed by the
// append log: a single growable region, not sharded, because
// the log here is one contiguous append stream, not an ID-addressed ring.
type storeFile struct {
	path string
	mm   *mmapfile.File
}

func openStoreFile(path string, minSize int64) (*storeFile, error) {
	mm, err := mmapfile.Open(path, minSize)
	if err != nil {
		return nil, err
	}
	return &storeFile{path: path, mm: mm}, nil
}

// openStoreFileFd wraps a caller-supplied fd for OpenWithSharedMemory,
// instead of opening by path.
func openStoreFileFd(fd uintptr, minSize int64) (*storeFile, error) {
	mm, err := mmapfile.OpenFd(fd, minSize)
	if err != nil {
		return nil, err
	}
	return &storeFile{mm: mm}, nil
}

// size is the total mapped file size, always a page multiple (invariant 4).
func (sf *storeFile) size() int64 {
	return int64(sf.mm.Len())
}

// data is the full mapped region, header included.
func (sf *storeFile) data() []byte {
	return sf.mm.Bytes()
}

// logRegion returns the live log bytes [4, 4+actualSize).
func (sf *storeFile) logRegion(actualSize uint32) []byte {
	return sf.mm.Bytes()[headerSize : headerSize+int(actualSize)]
}

// writeAt copies src into the log region starting at the given offset from
// the start of the log (i.e. file offset headerSize+offset).
func (sf *storeFile) writeAt(offset uint32, src []byte) {
	copy(sf.mm.Bytes()[headerSize+int(offset):], src)
}

// writeHeaderMirror updates the little-endian actual_size mirror kept at
// the front of the file for backward compatibility.
func (sf *storeFile) writeHeaderMirror(actualSize uint32) {
	binary.LittleEndian.PutUint32(sf.mm.Bytes()[:headerSize], actualSize)
}

func (sf *storeFile) readHeaderMirror() uint32 {
	return binary.LittleEndian.Uint32(sf.mm.Bytes()[:headerSize])
}

// statSize returns the file's current on-disk size, independent of how much
// of it is currently mapped -- used by the CoherenceProtocol to notice
// growth performed by another process before the tail is safe to read.
func (sf *storeFile) statSize() (int64, error) {
	info, err := sf.mm.File().Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// remap picks up growth performed by another process against the same
// path, without touching the file's on-disk size itself.
func (sf *storeFile) remap() error {
	return sf.mm.Remap()
}

// grow extends the file to at least minSize, rounded to a page multiple.
func (sf *storeFile) grow(minSize int64) error {
	return sf.mm.Grow(minSize)
}

// shrink truncates the file down to newSize, rounded to a page multiple.
func (sf *storeFile) shrink(newSize int64) error {
	return sf.mm.Shrink(newSize)
}

func (sf *storeFile) msync() error {
	return sf.mm.Msync()
}

func (sf *storeFile) close() error {
	return sf.mm.Close()
}
