package mmkv

import "github.com/IFLYmingchen7/mmkv/internal/mmapfile"

// defaultInitialSize is used when StoreOptions.Size is unset.
const defaultInitialSize = 4096

// resolveOptions fills in defaults and rounds the requested size against
// caller-supplied options. There is nothing to persist separately from the
// sidecar, so resolution is pure defaulting.
func resolveOptions(opts StoreOptions) StoreOptions {
	if opts.Size <= 0 {
		opts.Size = defaultInitialSize
	}
	opts.Size = mmapfile.RoundUpToPageSize(opts.Size)
	if opts.Mode == 0 {
		opts.Mode = SingleProcess
	}
	return opts
}
