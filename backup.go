package mmkv

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// BackupTo copies this store's primary file and sidecar into dir, under the
// same base name they have on disk. The in-memory dictionary is flushed to a
// single compacted region first, so the backup holds one clean log rather
// than whatever padding and stale tail bytes the live file currently carries.
func (s *Store) BackupTo(dir string) error {
	if s.file.path == "" {
		return errors.New("mmkv: BackupTo is unavailable for a shared-memory-backed store")
	}

	err := s.locks.withExclusive(func() error {
		if err := s.checkLoadData(); err != nil {
			return err
		}
		s.hasFullWriteback = false
		return s.fullWriteback()
	})
	if err != nil {
		return errors.Wrap(err, "mmkv: flush before backup")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "mmkv: create backup directory")
	}

	base := filepath.Base(s.file.path)
	if err := copyFile(s.file.path, filepath.Join(dir, base)); err != nil {
		return errors.Wrap(err, "mmkv: copy primary file")
	}
	if err := copyFile(s.file.path+".crc", filepath.Join(dir, base+".crc")); err != nil {
		return errors.Wrap(err, "mmkv: copy sidecar")
	}
	return nil
}

// RestoreFrom overwrites the on-disk files for mmapID under the registry's
// root with the primary file and sidecar found in dir, replacing whatever is
// there. Any cached Store for mmapID must be closed first; RestoreFrom does
// not touch live mmaps, only the files backing a future Open.
func RestoreFrom(dir, mmapID string, opts StoreOptions) error {
	return defaultRegistry.restoreFrom(dir, mmapID, opts)
}

func (r *Registry) restoreFrom(dir, mmapID string, opts StoreOptions) error {
	opts = resolveOptions(opts)

	r.mu.Lock()
	if _, open := r.stores[identity(opts.RelativePath, mmapID)]; open {
		r.mu.Unlock()
		return errors.New("mmkv: RestoreFrom target is currently open")
	}
	path := r.primaryPath(opts.RelativePath, mmapID)
	r.mu.Unlock()

	base := filepath.Base(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "mmkv: create restore target directory")
	}
	if err := copyFile(filepath.Join(dir, base), path); err != nil {
		return errors.Wrap(err, "mmkv: restore primary file")
	}
	if err := copyFile(filepath.Join(dir, base+".crc"), path+".crc"); err != nil {
		return errors.Wrap(err, "mmkv: restore sidecar")
	}
	return nil
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return err
	}
	return destination.Sync()
}
