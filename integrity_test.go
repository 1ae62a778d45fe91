package mmkv

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrcAppendMatchesCrcOfConcatenation(t *testing.T) {
	a := []byte("hello, ")
	b := []byte("world")

	incremental := crcAppend(crcOf(a), b)
	whole := crcOf(append(append([]byte{}, a...), b...))
	require.Equal(t, whole, incremental)
}

func TestCrcOfEmptyIsZero(t *testing.T) {
	require.Equal(t, uint32(0), crcOf(nil))
	require.Equal(t, crc32.ChecksumIEEE(nil), crcOf(nil))
}

func TestValidateOnLoadAcceptsMatchingTip(t *testing.T) {
	log := []byte("some log bytes")
	meta := MetaRecord{CRCDigest: crcOf(log)}

	out := validateOnLoad(uint32(len(log)), meta, int64(len(log))+headerSize, func(n uint32) []byte { return log[:n] }, RecoveryHooks{}, "id")
	require.False(t, out.discard)
	require.False(t, out.recoveredFromCheckpoint)
	require.False(t, out.needFullWriteback)
	require.Equal(t, uint32(len(log)), out.actualSize)
}

func TestValidateOnLoadFallsBackToCheckpointBeforeRecovering(t *testing.T) {
	log := []byte("prefix-then-garbage-suffix")
	checkpointLen := uint32(6) // "prefix"
	meta := MetaRecord{
		CRCDigest: 0xdeadbeef, // deliberately wrong for the full tip
		LastConfirmed: LastConfirmed{
			ActualSize: checkpointLen,
			CRCDigest:  crcOf(log[:checkpointLen]),
		},
	}

	out := validateOnLoad(uint32(len(log)), meta, int64(len(log))+headerSize, func(n uint32) []byte { return log[:n] }, RecoveryHooks{}, "id")
	require.True(t, out.recoveredFromCheckpoint)
	require.Equal(t, checkpointLen, out.actualSize)
}
