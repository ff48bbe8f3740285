package gps

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sampleRMC = "$GPRMC,000012.00,A,3031.9000425,N,11421.4368798,E,0.01,0.00,010525,0.0,E,A*37"
	sampleGGA = "$GPGGA,000012.00,3031.9000425,N,11421.4368798,E,1,08,1.0,42.636,M,-13.987,M,0.0,*57"
)

func nmeaLine(payload string) string {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X", payload, ck)
}

func TestParsePair_Sample(t *testing.T) {
	fix, err := ParsePair(sampleRMC, sampleGGA)
	require.NoError(t, err)
	assert.InDelta(t, 30.531667375, fix.Latitude, 1e-9)
	assert.InDelta(t, 114.35728133, fix.Longitude, 1e-8)
	assert.Equal(t, 42.636, fix.Altitude)
	assert.True(t, fix.Time.Equal(time.Date(2025, 5, 1, 0, 0, 12, 0, time.UTC)), "time %s", fix.Time)
}

func TestParsePair_SampleChecksumsValid(t *testing.T) {
	fix, err := ParseOptions{VerifyChecksum: true}.ParsePair(sampleRMC, sampleGGA)
	require.NoError(t, err)
	assert.InDelta(t, 30.5316674, fix.Latitude, 1e-7)
}

func TestParsePair_AgreesWithGoNMEA(t *testing.T) {
	s, err := nmea.Parse(sampleGGA)
	require.NoError(t, err)
	gga, ok := s.(nmea.GGA)
	require.True(t, ok)

	fix, err := ParsePair(sampleRMC, sampleGGA)
	require.NoError(t, err)
	assert.InDelta(t, gga.Latitude, fix.Latitude, 1e-9)
	assert.InDelta(t, gga.Longitude, fix.Longitude, 1e-9)
	assert.InDelta(t, gga.Altitude, fix.Altitude, 1e-9)
}

func TestParsePair_FractionalSecondsAndHemispheres(t *testing.T) {
	rmc := nmeaLine("GNRMC,235959.123456789,A,3351.000,S,15112.000,W,0.0,0.0,311224,,,A")
	gga := nmeaLine("GNGGA,235959.123456789,3351.000,S,15112.000,W,4,12,0.7,-5.5,M,0.0,M,,")
	fix, err := ParsePair(rmc, gga)
	require.NoError(t, err)
	assert.InDelta(t, -33.85, fix.Latitude, 1e-9)
	assert.InDelta(t, -151.2, fix.Longitude, 1e-9)
	assert.Equal(t, -5.5, fix.Altitude)
	assert.Equal(t, time.Date(2024, 12, 31, 23, 59, 59, 123456789, time.UTC), fix.Time)
}

func TestParsePair_Talkers(t *testing.T) {
	for _, talker := range []string{"GP", "GN", "BD", "GB", "GL", "GA"} {
		rmc := strings.Replace(sampleRMC, "$GP", "$"+talker, 1)
		gga := strings.Replace(sampleGGA, "$GP", "$"+talker, 1)
		_, err := ParsePair(rmc, gga)
		assert.NoError(t, err, talker)
	}
	_, err := ParsePair(strings.Replace(sampleRMC, "$GP", "$XX", 1), sampleGGA)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestParsePair_Errors(t *testing.T) {
	voidRMC := strings.Replace(sampleRMC, ",A,3031", ",V,3031", 1)
	noFixGGA := strings.Replace(sampleGGA, ",E,1,08", ",E,0,08", 1)
	emptyQ := strings.Replace(sampleGGA, ",E,1,08", ",E,,08", 1)
	badQ := strings.Replace(sampleGGA, ",E,1,08", ",E,x,08", 1)
	lat91 := nmeaLine("GPGGA,000012.00,9100.0000,N,11421.4368798,E,1,08,1.0,42.636,M,-13.987,M,0.0,")
	lonM181 := nmeaLine("GPGGA,000012.00,3031.9000425,N,18100.0000,W,1,08,1.0,42.636,M,-13.987,M,0.0,")

	cases := []struct {
		name     string
		rmc, gga string
		want     error
	}{
		{"empty rmc", "", sampleGGA, ErrFormat},
		{"empty gga", sampleRMC, "", ErrFormat},
		{"short rmc", "$GPRMC,000012.00,A", sampleGGA, ErrFormat},
		{"short gga", sampleRMC, "$GPGGA,000012.00,3031.9,N", ErrFormat},
		{"swapped", sampleGGA, sampleRMC, ErrFormat},
		{"void rmc", voidRMC, sampleGGA, ErrNoFix},
		{"quality 0", sampleRMC, noFixGGA, ErrNoFix},
		{"empty quality", sampleRMC, emptyQ, ErrNoFix},
		{"bad quality", sampleRMC, badQ, ErrNumber},
		{"format wins over no fix", voidRMC, "$GPGGA,bad", ErrFormat},
		{"lat 91", sampleRMC, lat91, ErrRange},
		{"lon -181", sampleRMC, lonM181, ErrRange},
		{"bad date", strings.Replace(sampleRMC, "010525", "310225", 1), sampleGGA, ErrNumber},
		{"bad time", sampleRMC, strings.Replace(sampleGGA, "000012.00", "246012.00", 1), ErrNumber},
		{"time dot without digits", sampleRMC, strings.Replace(sampleGGA, "000012.00", "000012.", 1), ErrNumber},
		{"bad altitude", sampleRMC, strings.Replace(sampleGGA, "42.636", "4x.6", 1), ErrNumber},
		{"bad hemisphere", sampleRMC, strings.Replace(sampleGGA, ",N,", ",Q,", 1), ErrFormat},
		{"minutes 60", sampleRMC, strings.Replace(sampleGGA, "3031.9000425", "3060.5", 1), ErrNumber},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePair(tc.rmc, tc.gga)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v, want %v", err, tc.want)
		})
	}
}

func TestParsePair_VerifyChecksum(t *testing.T) {
	opts := ParseOptions{VerifyChecksum: true}
	bad := sampleGGA[:len(sampleGGA)-2] + "00"
	_, err := opts.ParsePair(sampleRMC, bad)
	assert.ErrorIs(t, err, ErrFormat)

	noSum := sampleGGA[:strings.IndexByte(sampleGGA, '*')]
	_, err = opts.ParsePair(sampleRMC, noSum)
	assert.ErrorIs(t, err, ErrFormat)

	// Default options ignore checksums entirely.
	_, err = ParsePair(sampleRMC, bad)
	assert.NoError(t, err)
	_, err = ParsePair(sampleRMC, noSum)
	assert.NoError(t, err)
}

func TestParseLatLon(t *testing.T) {
	v, err := parseLatLon("4807.038", "N", "N", "S")
	require.NoError(t, err)
	if math.Abs(v-48.1173) > 1e-9 {
		t.Fatalf("lat=%v", v)
	}
	v, err = parseLatLon("01131.000", "W", "E", "W")
	require.NoError(t, err)
	assert.InDelta(t, -11.516666666, v, 1e-8)

	_, err = parseLatLon("", "N", "N", "S")
	assert.ErrorIs(t, err, ErrNumber)
	_, err = parseLatLon("4807.038", "E", "N", "S")
	assert.ErrorIs(t, err, ErrFormat)
}
