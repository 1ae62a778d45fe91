package mmkv

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// reservedFilenameChars forces a store's on-disk name into the
// specialCharacter/ subdirectory when mmap_id itself cannot be used
// directly as a filename.
const reservedFilenameChars = `\/:*?"<>|`

// Registry is the process-wide identity -> Store cache. It is the only way
// to obtain a *Store; there is one process-wide instance, defaultRegistry,
// exposed through the package-level Open/OpenWithSharedMemory/OnExit
// functions below, the way a single embedded database handle is shared
// across a process.
type Registry struct {
	mu          sync.Mutex
	rootDir     string
	initialized bool
	stores      map[string]*Store
}

var defaultRegistry = &Registry{stores: make(map[string]*Store)}

// Initialize sets the root directory stores are created under. The first
// call wins for the "has this process ever called Initialize" bookkeeping;
// every call (first or not) updates the stored root, so a later call can
// still redirect new opens without disturbing already-open stores.
func Initialize(rootDir string) {
	defaultRegistry.initialize(rootDir)
}

func (r *Registry) initialize(rootDir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rootDir = rootDir
	r.initialized = true
}

// Open returns the cached Store for mmap_id if one exists, otherwise
// constructs one. It returns nil for an empty mmap_id or if construction
// fails (logged, not returned as an error, per the no-exceptions policy
// this package follows everywhere else).
func Open(mmapID string, opts StoreOptions) *Store {
	return defaultRegistry.open(mmapID, opts)
}

func (r *Registry) open(mmapID string, opts StoreOptions) *Store {
	if mmapID == "" {
		return nil
	}
	opts = resolveOptions(opts)

	r.mu.Lock()
	defer r.mu.Unlock()

	id := identity(opts.RelativePath, mmapID)
	if s, ok := r.stores[id]; ok {
		return s
	}

	path := r.primaryPath(opts.RelativePath, mmapID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.WithError(err).WithField("mmap_id", mmapID).Warn("mmkv: mkdir store directory")
		return nil
	}

	file, err := openStoreFile(path, opts.Size)
	if err != nil {
		log.WithError(err).WithField("mmap_id", mmapID).Warn("mmkv: open primary file")
		return nil
	}

	side, err := openSidecar(path + ".crc")
	if err != nil {
		file.close()
		log.WithError(err).WithField("mmap_id", mmapID).Warn("mmkv: open sidecar")
		return nil
	}

	s, err := newStore(mmapID, opts.RelativePath, file, side, opts)
	if err != nil {
		file.close()
		side.close()
		log.WithError(err).WithField("mmap_id", mmapID).Warn("mmkv: construct store")
		return nil
	}

	r.stores[id] = s
	return s
}

// OpenWithSharedMemory builds a Store directly on top of caller-supplied
// primary and sidecar file descriptors, rather than opening a path under
// the registry's root. Identity here is always the bare mmap_id. If a
// Store under that identity already exists, the duplicate fds are closed
// and the crypt key is re-checked instead of constructing a second Store
// over the same files.
func OpenWithSharedMemory(mmapID string, primaryFD, metaFD int, cryptKey []byte) *Store {
	return defaultRegistry.openWithSharedMemory(mmapID, primaryFD, metaFD, cryptKey)
}

func (r *Registry) openWithSharedMemory(mmapID string, primaryFD, metaFD int, cryptKey []byte) *Store {
	if mmapID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[mmapID]; ok {
		_ = unix.Close(primaryFD)
		_ = unix.Close(metaFD)
		s.resetCryptKey(cryptKey)
		return s
	}

	opts := resolveOptions(StoreOptions{
		Mode:     MultiProcess | SharedMemoryBacked,
		CryptKey: cryptKey,
	})

	file, err := openStoreFileFd(uintptr(primaryFD), opts.Size)
	if err != nil {
		log.WithError(err).WithField("mmap_id", mmapID).Warn("mmkv: map shared primary fd")
		return nil
	}

	side, err := openSidecarFd(uintptr(metaFD))
	if err != nil {
		file.close()
		log.WithError(err).WithField("mmap_id", mmapID).Warn("mmkv: map shared sidecar fd")
		return nil
	}

	s, err := newStore(mmapID, "", file, side, opts)
	if err != nil {
		file.close()
		side.close()
		log.WithError(err).WithField("mmap_id", mmapID).Warn("mmkv: construct shared-memory store")
		return nil
	}

	r.stores[mmapID] = s
	return s
}

// OnExit flushes every cached Store to stable storage and drops the
// registry's references to them, without closing their files -- a process
// shutdown hook, not a Close(). A later Open call for the same mmap_id
// reconstructs a fresh Store against the still-intact files on disk.
func OnExit() {
	defaultRegistry.onExit()
}

func (r *Registry) onExit() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.stores {
		s.Sync(true)
		delete(r.stores, id)
	}
}

// forget removes s from the registry. Called by Store.Close.
func (r *Registry) forget(s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := identity(s.relativePath, s.mmapID)
	if cur, ok := r.stores[id]; ok && cur == s {
		delete(r.stores, id)
	}
}

// identity computes the registry key for (relativePath, mmapID): the bare
// mmap_id when there is no relative path, otherwise a hash of the two
// combined so that the same mmap_id under two different relative paths
// never collides.
func identity(relativePath, mmapID string) string {
	if relativePath == "" {
		return mmapID
	}
	sum := md5.Sum([]byte(relativePath + "/" + mmapID))
	return hex.EncodeToString(sum[:])
}

// primaryPath resolves mmap_id to an on-disk path under root, redirecting
// filenames that contain a reserved character into specialCharacter/.
func (r *Registry) primaryPath(relativePath, mmapID string) string {
	dir := r.rootDir
	if relativePath != "" {
		dir = filepath.Join(dir, relativePath)
	}
	if strings.ContainsAny(mmapID, reservedFilenameChars) {
		sum := md5.Sum([]byte(mmapID))
		return filepath.Join(dir, "specialCharacter", hex.EncodeToString(sum[:]))
	}
	return filepath.Join(dir, mmapID)
}
