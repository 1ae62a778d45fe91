package mmkv

import (
	"sync"

	"github.com/IFLYmingchen7/mmkv/internal/filelock"
)

// lockSet pairs the per-instance in-process mutex with the cross-process
// whole-file advisory lock (flock) on the sidecar fd. The in-process mutex is always acquired
// before the file lock, and released after it.
type lockSet struct {
	mu   sync.Mutex
	file *filelock.Lock // nil for SingleProcess stores
}

func newLockSet(fd int, multiProcess bool) *lockSet {
	ls := &lockSet{}
	if multiProcess {
		ls.file = filelock.New(fd)
	}
	return ls
}

// withExclusive runs fn holding the in-process mutex and, for multi-process
// stores, the exclusive file lock. This is the lock order every mutator in
// writepath.go follows.
func (ls *lockSet) withExclusive(fn func() error) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.file == nil {
		return fn()
	}
	if err := ls.file.Lock(); err != nil {
		return err
	}
	defer ls.file.Unlock()
	return fn()
}

// rLock/rUnlock/xLock/xUnlock are the raw file-lock transitions used by the
// load path (load.go), which already holds ls.mu (acquired once by the
// public-API entry point) and needs to move the file lock between shared and
// exclusive mid-operation -- the upgrade is always "release
// shared, then acquire exclusive", never holding both at once.
func (ls *lockSet) rLock() error {
	if ls.file == nil {
		return nil
	}
	return ls.file.RLock()
}

func (ls *lockSet) rUnlock() error {
	if ls.file == nil {
		return nil
	}
	return ls.file.RUnlock()
}

func (ls *lockSet) xLock() error {
	if ls.file == nil {
		return nil
	}
	return ls.file.Lock()
}

func (ls *lockSet) xUnlock() error {
	if ls.file == nil {
		return nil
	}
	return ls.file.Unlock()
}
