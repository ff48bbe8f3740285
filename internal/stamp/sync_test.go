package stamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncStatus_Names(t *testing.T) {
	want := map[SyncStatus]string{
		SyncUnknown:      "unknown",
		SyncGPSLocked:    "gpsLocked",
		SyncBeidouLocked: "beidouLocked",
		SyncPPSStable:    "ppsStable",
		SyncPPSUnstable:  "ppsUnstable",
		SyncSoftware:     "softwareSync",
	}
	for code, name := range want {
		assert.True(t, code.Known())
		assert.Equal(t, name, code.String())

		back, err := ParseSyncStatus(name)
		require.NoError(t, err)
		assert.Equal(t, code, back)
	}
	assert.Equal(t, SyncStatus(2), SyncBeidouLocked)
}

func TestSyncStatus_Unknown(t *testing.T) {
	assert.False(t, SyncStatus(9).Known())
	assert.Equal(t, "UNKNOWN_STATUS(9)", SyncStatus(9).String())
	assert.Equal(t, "UNKNOWN_STATUS(-1)", SyncStatus(-1).String())

	_, err := ParseSyncStatus("galileoLocked")
	assert.Error(t, err)
}

func TestSyncStatus_Text(t *testing.T) {
	var s SyncStatus
	require.NoError(t, s.UnmarshalText([]byte("PPSSTABLE")))
	assert.Equal(t, SyncPPSStable, s)

	b, err := SyncSoftware.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "softwareSync", string(b))
}
