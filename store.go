package mmkv

import (
	"bytes"

	"github.com/IFLYmingchen7/mmkv/internal/streamcipher"
	"github.com/pkg/errors"
)

// Store is a single open key/value store, identified by mmap_id, backed by
// one memory-mapped primary file and one sidecar. It is returned by
// Open / OpenWithSharedMemory and must be reached through the
// Registry -- there is no public constructor.
type Store struct {
	mmapID       string
	relativePath string
	opts         StoreOptions

	file    *storeFile
	side    *sidecar
	locks   *lockSet
	cipher  *streamcipher.Cipher
	crypted bool

	dict       map[string][]byte
	outputSize uint32 // == actualSize; bytes of the log region currently valid
	meta       MetaRecord

	loaded           bool
	hasFullWriteback bool

	notifyEnabled bool
}

func newStore(mmapID, relativePath string, file *storeFile, side *sidecar, opts StoreOptions) (*Store, error) {
	s := &Store{
		mmapID:        mmapID,
		relativePath:  relativePath,
		opts:          opts,
		file:          file,
		side:          side,
		dict:          make(map[string][]byte),
		notifyEnabled: opts.OnContentChanged != nil,
	}

	s.locks = newLockSet(int(side.fd()), opts.Mode.Has(MultiProcess))

	if len(opts.CryptKey) > 0 {
		c, err := streamcipher.New(opts.CryptKey)
		if err != nil {
			return nil, errors.Wrap(err, "mmkv: init cipher")
		}
		s.cipher = c
		s.crypted = true
	}

	return s, nil
}

// Close removes the Store from the Registry and releases its file
// descriptors, mmap, and lock. The Store must not be used afterward;
// Open will construct a fresh one on the next call for the same
// identity.
func (s *Store) Close() error {
	defaultRegistry.forget(s)

	var firstErr error
	if err := s.file.close(); err != nil {
		firstErr = err
	}
	if err := s.side.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Sync flushes the primary file and sidecar to stable storage. With
// stable=false it is a hint only (still performed synchronously here,
// since the core has no async I/O backend to defer to).
func (s *Store) Sync(stable bool) bool {
	err := s.locks.withExclusive(func() error {
		if err := s.file.msync(); err != nil {
			return err
		}
		return s.side.msync()
	})
	if err != nil {
		log.WithError(err).WithField("mmap_id", s.mmapID).Warn("mmkv: sync failed")
		return false
	}
	return true
}

// EnableContentChangeNotification turns the on_content_changed_by_outer_process
// hook on or off.
func (s *Store) EnableContentChangeNotification(enable bool) {
	s.locks.mu.Lock()
	defer s.locks.mu.Unlock()
	s.notifyEnabled = enable
}

// MmapID returns the identity this Store was opened under.
func (s *Store) MmapID() string {
	return s.mmapID
}

// IsMultiProcess reports whether the CoherenceProtocol is active for this
// Store.
func (s *Store) IsMultiProcess() bool {
	return s.opts.Mode.Has(MultiProcess)
}

// resetCryptKey installs a new decryption key without rewriting the
// underlying log -- used when OpenWithSharedMemory is handed the same
// mmap_id a second time with a different crypt_key. The resident
// dictionary was decoded under the old key, so a key change forces the
// next operation to reload from scratch.
func (s *Store) resetCryptKey(newKey []byte) {
	s.locks.mu.Lock()
	defer s.locks.mu.Unlock()

	switch {
	case len(newKey) == 0 && !s.crypted:
		return
	case len(newKey) > 0 && s.crypted && bytes.Equal(newKey, s.opts.CryptKey):
		return
	case len(newKey) == 0:
		s.cipher = nil
		s.crypted = false
		s.opts.CryptKey = nil
	default:
		c, err := streamcipher.New(newKey)
		if err != nil {
			log.WithError(err).WithField("mmap_id", s.mmapID).Warn("mmkv: reset crypt key")
			return
		}
		s.cipher = c
		s.crypted = true
		s.opts.CryptKey = append([]byte(nil), newKey...)
	}
	s.loaded = false
}
