package stamp

import (
	"fmt"
	"time"
)

const nanosPerSecond = 1_000_000_000

// Displayable range: 0001-01-01T00:00:00Z .. 9999-12-31T23:59:59Z.
const (
	minDisplaySec = -62135596800
	maxDisplaySec = 253402300799
)

// FormatTimestamp renders (sec, nsec) as an ISO-8601 UTC instant with
// microsecond precision. The sub-microsecond part is truncated. The fraction
// is omitted when the microsecond part is zero.
//
// Values that cannot be displayed render as INVALID_TIMESTAMP(sec.nnnnnnnnn)
// instead of failing. An nsec outside [0, 1e9) is printed as-is, unpadded.
func FormatTimestamp(sec int64, nsec int64) string {
	if nsec < 0 || nsec >= nanosPerSecond {
		return fmt.Sprintf("INVALID_TIMESTAMP(%d.%d)", sec, nsec)
	}
	if sec < minDisplaySec || sec > maxDisplaySec {
		return fmt.Sprintf("INVALID_TIMESTAMP(%d.%09d)", sec, nsec)
	}
	micros := nsec / 1000
	t := time.Unix(sec, micros*1000).UTC()
	if micros == 0 {
		return t.Format("2006-01-02T15:04:05-07:00")
	}
	return t.Format("2006-01-02T15:04:05.000000-07:00")
}
