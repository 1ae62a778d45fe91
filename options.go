package mmkv

// ModeFlags is the bitmask describing how a Store participates in
// cross-process coordination.
type ModeFlags int

const (
	// SingleProcess stores skip the CoherenceProtocol entirely.
	SingleProcess ModeFlags = 1 << iota
	// MultiProcess stores enforce file locking and run the coherence check
	// on every public operation.
	MultiProcess
	// SharedMemoryBacked stores are opened against caller-supplied fds
	// (OpenWithSharedMemory) and cannot grow past their initial
	// size.
	SharedMemoryBacked
)

// Has reports whether flag is set in m.
func (m ModeFlags) Has(flag ModeFlags) bool {
	return m&flag != 0
}

// RecoveryAction is the result of a recovery hook.
type RecoveryAction int

const (
	// Recover attempts a best-effort load and schedules a full writeback.
	Recover RecoveryAction = iota
	// Discard resets the logical store to empty.
	Discard
)

// RecoveryHooks are the two injectable strategy callbacks for corruption
// handling -- a strategy injection point, not a policy decision of the
// core itself. The zero value behaves as "always Recover", the documented
// default.
type RecoveryHooks struct {
	// OnCRCCheckFail is consulted when the CRC over the log region does
	// not match meta.crc_digest and no usable last_confirmed checkpoint
	// exists.
	OnCRCCheckFail func(mmapID string) RecoveryAction
	// OnFileLengthError is consulted when actual_size itself is out of
	// range of the primary file.
	OnFileLengthError func(mmapID string) RecoveryAction
}

func (h RecoveryHooks) crcCheckFail(mmapID string) RecoveryAction {
	if h.OnCRCCheckFail == nil {
		return Recover
	}
	return h.OnCRCCheckFail(mmapID)
}

func (h RecoveryHooks) fileLengthError(mmapID string) RecoveryAction {
	if h.OnFileLengthError == nil {
		return Recover
	}
	return h.OnFileLengthError(mmapID)
}

// ChangeNotifier is the informational hook fired after a Store picks up a
// mutation made by another process.
type ChangeNotifier func(mmapID string)

// StoreOptions configures a single Store at open time.
type StoreOptions struct {
	// Size is the requested initial size in bytes; it is rounded up to a
	// page multiple with a floor of one page.
	Size int64
	// Mode selects single/multi-process and shared-memory behavior.
	Mode ModeFlags
	// CryptKey, if non-empty, turns on stream-cipher encryption of the log
	// region.
	CryptKey []byte
	// RelativePath places the store under <root>/<RelativePath>/<mmapID>
	// instead of directly under the configured root.
	RelativePath string
	// Recovery overrides the default Recover-always strategy.
	Recovery RecoveryHooks
	// OnContentChanged, if set, enables the change notification and
	// receives it.
	OnContentChanged ChangeNotifier
}
