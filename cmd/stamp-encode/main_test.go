package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gnss-stamp/internal/archive"
	"gnss-stamp/internal/gps"
	"gnss-stamp/internal/ipv6"
	"gnss-stamp/internal/stamp"
)

const (
	sampleRMC = "$GPRMC,000012.00,A,3031.9000425,N,11421.4368798,E,0.01,0.00,010525,0.0,E,A*37"
	sampleGGA = "$GPGGA,000012.00,3031.9000425,N,11421.4368798,E,1,08,1.0,42.636,M,-13.987,M,0.0,*57"

	goldenHex = "304202010102046812B98C020100090980D01E881B5A797333090980D30E4B6ED9417A49" +
		"090980D115516872B020C50408DEADBEEFCAFEBABE020204000A010204029003"
)

func defaults() options {
	return options{
		rmc:      sampleRMC,
		gga:      sampleGGA,
		deviceID: "DEADBEEFCAFEBABE",
		linkID:   1024,
		sync:     "beidouLocked",
		version:  1,
		src:      "2001:db8:1::1",
		dst:      "2001:db8:2::2",
	}
}

func TestRun_Golden(t *testing.T) {
	o := defaults()
	o.output = filepath.Join(t.TempDir(), "pkt.bin")
	var out bytes.Buffer
	require.NoError(t, run(o, &out))
	assert.Equal(t, goldenHex+"\n", out.String())

	raw, err := archive.ReadRawPacket(o.output)
	require.NoError(t, err)
	rec, err := stamp.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x9003), rec.CRC)
}

func TestRun_IPv6(t *testing.T) {
	o := defaults()
	o.ipv6 = true
	var out bytes.Buffer
	require.NoError(t, run(o, &out))

	line := strings.TrimSpace(out.String())
	assert.True(t, strings.HasSuffix(line, goldenHex))
	assert.Len(t, line, 2*(ipv6.HeaderLen+68))
}

func TestRun_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*options)
		is     error
	}{
		{"missing gga", func(o *options) { o.gga = "" }, nil},
		{"bad device hex", func(o *options) { o.deviceID = "XYZ" }, nil},
		{"short device", func(o *options) { o.deviceID = "DEAD" }, stamp.ErrEncode},
		{"link range", func(o *options) { o.linkID = 70000 }, stamp.ErrEncode},
		{"unknown sync", func(o *options) { o.sync = "gnssLocked" }, nil},
		{"version range", func(o *options) { o.version = 300 }, nil},
		{"no fix", func(o *options) { o.rmc = strings.Replace(sampleRMC, ",A,", ",V,", 1) }, gps.ErrNoFix},
		{"checksum", func(o *options) {
			o.verifyChecksum = true
			o.gga = strings.Replace(sampleGGA, "*57", "*00", 1)
		}, gps.ErrFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := defaults()
			tc.mutate(&o)
			var out bytes.Buffer
			err := run(o, &out)
			require.Error(t, err)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
			assert.Empty(t, out.String())
		})
	}
}
