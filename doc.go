// Package mmkv is an embedded, process-local and optionally cross-process
// key/value store backed by a single memory-mapped file. It persists a flat
// mapping from string keys to opaque byte-string values: writes are
// appended to a growing log region, and the in-memory view is a
// last-write-wins mapping built by replaying that log.
//
// The package is organised into several files for clarity:
//
//	options.go    – ModeFlags, recovery hooks, StoreOptions
//	meta.go       – MetaRecord and the sidecar (".crc") read/write protocol
//	lockset.go    – in-process mutex + cross-process file lock pairing
//	storefile.go  – the primary mmap region and its grow/shrink primitives
//	integrity.go  – CRC validation on load and the recovery strategies
//	dict.go       – log replay into the in-memory dictionary
//	writepath.go  – append, growth policy, full writeback (compaction), clear, trim, rekey
//	readpath.go   – typed getters and enumeration helpers
//	coherence.go  – cross-process change detection and incremental reload
//	load.go       – the cold-load path run on first use of a Store
//	store.go      – the Store type itself and its public lifecycle methods
//	registry.go   – the process-wide identity -> Store cache
//	backup.go     – BackupTo/RestoreFrom, a flush-then-copy snapshot
//
package mmkv
