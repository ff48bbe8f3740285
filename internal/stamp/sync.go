package stamp

import (
	"fmt"
	"strings"
)

// SyncStatus is the time-synchronization source/quality at capture time.
//
// The code table is closed. Codes outside it still decode (a packet may come
// from a newer producer) but report Known() == false and render as
// UNKNOWN_STATUS(n).
type SyncStatus int32

const (
	SyncUnknown      SyncStatus = 0
	SyncGPSLocked    SyncStatus = 1
	SyncBeidouLocked SyncStatus = 2
	SyncPPSStable    SyncStatus = 3
	SyncPPSUnstable  SyncStatus = 4
	SyncSoftware     SyncStatus = 5
)

var syncStatusNames = [...]string{
	SyncUnknown:      "unknown",
	SyncGPSLocked:    "gpsLocked",
	SyncBeidouLocked: "beidouLocked",
	SyncPPSStable:    "ppsStable",
	SyncPPSUnstable:  "ppsUnstable",
	SyncSoftware:     "softwareSync",
}

// Known reports whether s is one of the defined codes.
func (s SyncStatus) Known() bool {
	return s >= 0 && int(s) < len(syncStatusNames)
}

func (s SyncStatus) String() string {
	if !s.Known() {
		return fmt.Sprintf("UNKNOWN_STATUS(%d)", int32(s))
	}
	return syncStatusNames[s]
}

// ParseSyncStatus maps a symbolic name (case-insensitive) to its code.
func ParseSyncStatus(name string) (SyncStatus, error) {
	n := strings.TrimSpace(name)
	for code, known := range syncStatusNames {
		if strings.EqualFold(n, known) {
			return SyncStatus(code), nil
		}
	}
	return SyncUnknown, fmt.Errorf("unknown sync status %q", name)
}

// MarshalText renders the symbolic name so YAML/JSON carry names, not codes.
func (s SyncStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SyncStatus) UnmarshalText(b []byte) error {
	v, err := ParseSyncStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
