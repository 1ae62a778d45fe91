// Package filelock implements a reference-counted, cross-process advisory
// lock over a whole file (flock(2)), used to emulate recursive locking
// across nested scopes. flock(2) itself is not recursive -- a nested
// acquire/release pair from the same process would otherwise release the
// lock out from under the outer scope -- so this package keeps one nesting
// depth for the currently held mode and only calls into the kernel on the
// 0->1 and 1->0 edges.
//
// This extends the direct golang.org/x/sys/unix style already used for
// Mmap/Munmap/Msync to unix.Flock, rather than reaching for a new
// dependency where x/sys/unix already covers the syscall surface.
package filelock

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Mode is the lock mode: shared (read) or exclusive (write/structural).
type Mode int

const (
	// None means no lock is held.
	None Mode = iota
	// Shared is a shared/read advisory lock.
	Shared
	// Exclusive is an exclusive/write advisory lock.
	Exclusive
)

// Lock is a reentrant advisory lock over a single file descriptor. It must
// not be used to hold Shared and Exclusive simultaneously; callers that
// need to upgrade must fully release the shared lock before acquiring
// exclusive.
type Lock struct {
	fd int

	mu    sync.Mutex
	mode  Mode
	depth int
}

// New wraps fd, the sidecar file descriptor used for cross-process
// coordination.
func New(fd int) *Lock {
	return &Lock{fd: fd}
}

// RLock acquires (or re-enters) a shared lock.
func (l *Lock) RLock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.mode {
	case Shared, Exclusive:
		l.depth++
		return nil
	default:
		if err := unix.Flock(l.fd, unix.LOCK_SH); err != nil {
			return errors.Wrap(err, "filelock: flock LOCK_SH")
		}
		l.mode = Shared
		l.depth = 1
		return nil
	}
}

// RUnlock releases one level acquired via RLock. A shared acquire nested
// inside an already-held exclusive lock (the common case: a reader helper
// calling RLock while its caller's mutator still holds Exclusive) only
// decrements depth and leaves the exclusive lock in place; RUnlock mirrors
// that without requiring the mode to still read Shared.
func (l *Lock) RUnlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mode == None || l.depth == 0 {
		return errors.New("filelock: RUnlock without matching RLock")
	}
	return l.release()
}

// Lock acquires (or re-enters) an exclusive lock. A structural write path
// that internally calls Sync (which itself wants the exclusive lock) nests
// safely here.
func (l *Lock) Lock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.mode {
	case Exclusive:
		l.depth++
		return nil
	case Shared:
		return errors.New("filelock: cannot acquire Exclusive while holding Shared; release first")
	default:
		if err := unix.Flock(l.fd, unix.LOCK_EX); err != nil {
			return errors.Wrap(err, "filelock: flock LOCK_EX")
		}
		l.mode = Exclusive
		l.depth = 1
		return nil
	}
}

// Unlock releases one level of an exclusive lock acquired via Lock.
func (l *Lock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mode != Exclusive || l.depth == 0 {
		return errors.New("filelock: Unlock without matching Lock")
	}
	return l.release()
}

// release decrements depth and, only on the 1->0 edge, drops the kernel
// lock and resets mode. Callers hold l.mu.
func (l *Lock) release() error {
	l.depth--
	if l.depth == 0 {
		if err := unix.Flock(l.fd, unix.LOCK_UN); err != nil {
			return errors.Wrap(err, "filelock: flock LOCK_UN")
		}
		l.mode = None
	}
	return nil
}

// Mode reports the lock's current mode, for tests and diagnostics.
func (l *Lock) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}
