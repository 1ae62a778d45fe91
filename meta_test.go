package mmkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequiredVersionNeverDecreases(t *testing.T) {
	require.Equal(t, V2Sequence, requiredVersion(V1Plain, false, false))
	require.Equal(t, V3RandomIV, requiredVersion(V1Plain, true, false))
	require.Equal(t, V4ActualSizeInMeta, requiredVersion(V1Plain, false, true))
	require.Equal(t, V4ActualSizeInMeta, requiredVersion(V4ActualSizeInMeta, false, false))
	require.Equal(t, V4ActualSizeInMeta, requiredVersion(V3RandomIV, true, true))
}

func TestSidecarFullAndFastRoundTrip(t *testing.T) {
	s := openTestStore(t, StoreOptions{})
	defer s.side.close()

	m := MetaRecord{
		CRCDigest:  111,
		ActualSize: 222,
		Version:    V4ActualSizeInMeta,
		Sequence:   3,
	}
	m.IV[0] = 0xAB
	m.LastConfirmed = LastConfirmed{ActualSize: 100, CRCDigest: 50}
	s.side.writeFull(m)

	got := s.side.read()
	require.Equal(t, m, got)

	s.side.writeFast(999, 888)
	got = s.side.read()
	require.Equal(t, uint32(999), got.CRCDigest)
	require.Equal(t, uint32(888), got.ActualSize)
	// writeFast must not disturb the rest of the record.
	require.Equal(t, m.Version, got.Version)
	require.Equal(t, m.Sequence, got.Sequence)
	require.Equal(t, m.LastConfirmed, got.LastConfirmed)
}
