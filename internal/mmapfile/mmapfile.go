// Package mmapfile is the mmap wrapper and page-aligned file-growth helper
// sitting below the store's own append/compaction logic. It is built
// directly on golang.org/x/sys/unix.Mmap/Munmap/Msync, generalized from a
// fixed-size region to a single growable one.
package mmapfile

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// File is a single memory-mapped, growable, page-aligned file region.
type File struct {
	f    *os.File
	data []byte
}

// PageSize returns the system page size. StoreFile growth
// always rounds to a multiple of this value.
func PageSize() int {
	return os.Getpagesize()
}

// RoundUpToPageSize returns the smallest multiple of PageSize() that is >=
// size, with a floor of one page.
func RoundUpToPageSize(size int64) int64 {
	ps := int64(PageSize())
	if size <= 0 {
		return ps
	}
	n := (size + ps - 1) / ps
	return n * ps
}

// Open opens (creating if necessary) the file at path, grows it to at
// least minSize rounded up to a page multiple, and maps it shared
// read/write.
func Open(path string, minSize int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "mmapfile: open %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmapfile: stat %s", path)
	}

	size := RoundUpToPageSize(minSize)
	if info.Size() > size {
		size = RoundUpToPageSize(info.Size())
	}
	if info.Size() != size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "mmapfile: truncate %s to %d", path, size)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmapfile: mmap %s", path)
	}

	return &File{f: f, data: data}, nil
}

// OpenFd wraps an already-open file descriptor (handed in by another
// process sharing the same backing file) instead of opening a path,
// growing and mapping it the same way Open does.
func OpenFd(fd uintptr, minSize int64) (*File, error) {
	f := os.NewFile(fd, "mmapfile-shared")
	if f == nil {
		return nil, errors.Errorf("mmapfile: invalid fd %d", fd)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "mmapfile: stat shared fd")
	}

	size := RoundUpToPageSize(minSize)
	if info.Size() > size {
		size = RoundUpToPageSize(info.Size())
	}
	if info.Size() != size {
		if err := f.Truncate(size); err != nil {
			return nil, errors.Wrapf(err, "mmapfile: truncate shared fd to %d", size)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "mmapfile: mmap shared fd")
	}

	return &File{f: f, data: data}, nil
}

// Bytes returns the mapped region. It is only valid until the next call to
// Grow, Remap, Shrink or Close.
func (m *File) Bytes() []byte {
	return m.data
}

// Len returns the current mapped size, always a page multiple.
func (m *File) Len() int {
	return len(m.data)
}

// Fd returns the underlying file descriptor, used by filelock for
// advisory locking on the same file.
func (m *File) Fd() uintptr {
	return m.f.Fd()
}

// File exposes the underlying *os.File for callers (e.g. the sidecar) that
// need plain ReadAt/WriteAt access alongside the mapped view.
func (m *File) File() *os.File {
	return m.f
}

// Grow resizes the file to at least minSize (rounded to a page multiple),
// remapping it. On failure the file is left at its previous size and the
// existing mapping remains valid.
func (m *File) Grow(minSize int64) error {
	newSize := RoundUpToPageSize(minSize)
	if int64(len(m.data)) >= newSize {
		return nil
	}

	oldSize := int64(len(m.data))
	if err := m.f.Truncate(newSize); err != nil {
		return errors.Wrapf(err, "mmapfile: truncate to %d", newSize)
	}

	if err := unix.Munmap(m.data); err != nil {
		// best effort: restore the old file size so invariants still hold
		_ = m.f.Truncate(oldSize)
		return errors.Wrap(err, "mmapfile: munmap before remap")
	}

	data, err := unix.Mmap(int(m.f.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = m.f.Truncate(oldSize)
		// restore a mapping of the old size so the caller's view stays usable
		m.data, _ = unix.Mmap(int(m.f.Fd()), 0, int(oldSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		return errors.Wrapf(err, "mmapfile: remap to %d", newSize)
	}

	m.data = data
	return nil
}

// Remap re-maps the file to whatever size it currently has on disk, picking
// up growth performed by another process against the same path. It is a
// no-op if the on-disk size already matches the current mapping.
func (m *File) Remap() error {
	info, err := m.f.Stat()
	if err != nil {
		return errors.Wrap(err, "mmapfile: stat before remap")
	}
	newSize := info.Size()
	if newSize == int64(len(m.data)) {
		return nil
	}

	if err := unix.Munmap(m.data); err != nil {
		return errors.Wrap(err, "mmapfile: munmap before remap")
	}
	data, err := unix.Mmap(int(m.f.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		m.data = nil
		return errors.Wrapf(err, "mmapfile: remap to %d", newSize)
	}
	m.data = data
	return nil
}

// Shrink truncates the file down to newSize (rounded to a page multiple)
// and remaps it. Callers are responsible for ensuring live data does not
// extend past newSize.
func (m *File) Shrink(newSize int64) error {
	newSize = RoundUpToPageSize(newSize)
	if int64(len(m.data)) <= newSize {
		return nil
	}

	if err := unix.Munmap(m.data); err != nil {
		return errors.Wrap(err, "mmapfile: munmap before shrink")
	}
	if err := m.f.Truncate(newSize); err != nil {
		return errors.Wrapf(err, "mmapfile: truncate to %d", newSize)
	}
	data, err := unix.Mmap(int(m.f.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errors.Wrapf(err, "mmapfile: remap to %d", newSize)
	}
	m.data = data
	return nil
}

// Msync flushes the mapped region to stable storage.
func (m *File) Msync() error {
	if len(m.data) == 0 {
		return nil
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return errors.Wrap(err, "mmapfile: msync")
	}
	return nil
}

// Close unmaps and closes the file.
func (m *File) Close() error {
	var firstErr error
	if len(m.data) > 0 {
		if err := unix.Munmap(m.data); err != nil {
			firstErr = errors.Wrap(err, "mmapfile: munmap")
		}
		m.data = nil
	}
	if err := m.f.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "mmapfile: close")
	}
	return firstErr
}
