package stamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		sec, nsec int64
		want      string
	}{
		{1746057612, 0, "2025-05-01T00:00:12+00:00"},
		{1746057612, 123456789, "2025-05-01T00:00:12.123456+00:00"},
		{1746057612, 999, "2025-05-01T00:00:12+00:00"},
		{1746057612, 1000, "2025-05-01T00:00:12.000001+00:00"},
		{0, 0, "1970-01-01T00:00:00+00:00"},
		{-1, 500000000, "1969-12-31T23:59:59.500000+00:00"},
		{minDisplaySec, 0, "0001-01-01T00:00:00+00:00"},
		{maxDisplaySec, 999999999, "9999-12-31T23:59:59.999999+00:00"},
		{0, 1000000000, "INVALID_TIMESTAMP(0.1000000000)"},
		{1, -1, "INVALID_TIMESTAMP(1.-1)"},
		{maxDisplaySec + 1, -5, "INVALID_TIMESTAMP(253402300800.-5)"},
		{maxDisplaySec + 1, 0, "INVALID_TIMESTAMP(253402300800.000000000)"},
		{minDisplaySec - 1, 5, "INVALID_TIMESTAMP(-62135596801.000000005)"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatTimestamp(tc.sec, tc.nsec), "FormatTimestamp(%d, %d)", tc.sec, tc.nsec)
	}
}
