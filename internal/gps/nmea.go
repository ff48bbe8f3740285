package gps

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

var (
	// ErrFormat: empty input, too few fields, or an unexpected tag/talker.
	ErrFormat = errors.New("gps: malformed sentence")
	// ErrNoFix: the receiver reported a void or zero-quality fix.
	ErrNoFix = errors.New("gps: no fix")
	// ErrRange: latitude or longitude outside the valid range.
	ErrRange = errors.New("gps: coordinate out of range")
	// ErrNumber: a numeric, date or time sub-field did not parse.
	ErrNumber = errors.New("gps: invalid numeric field")
)

const (
	minRMCFields = 10
	minGGAFields = 12
)

var talkers = map[string]bool{
	"GP": true, // GPS
	"GN": true, // multi-constellation
	"BD": true, // BeiDou
	"GB": true, // BeiDou (NMEA 4.11)
	"GL": true, // GLONASS
	"GA": true, // Galileo
}

// Fix is one positioning solution built from an RMC+GGA pair.
type Fix struct {
	Time      time.Time // UTC
	Latitude  float64   // degrees, north positive
	Longitude float64   // degrees, east positive
	Altitude  float64   // metres above mean sea level
}

// ParseOptions tunes ParsePair. The zero value matches ParsePair.
type ParseOptions struct {
	// VerifyChecksum requires a valid trailing *hh checksum on both sentences.
	VerifyChecksum bool
}

// ParsePair combines an RMC sentence (status and date) with a GGA sentence
// (time, position, quality, altitude) into a Fix. Checksums are not verified.
func ParsePair(rmc, gga string) (Fix, error) {
	return ParseOptions{}.ParsePair(rmc, gga)
}

// ParsePair is ParsePair with options applied.
//
// Both sentences are checked for format before either is checked for a fix,
// so a malformed sentence is always reported as ErrFormat.
func (o ParseOptions) ParsePair(rmc, gga string) (Fix, error) {
	rf, err := o.split(rmc, "RMC", minRMCFields)
	if err != nil {
		return Fix{}, err
	}
	gf, err := o.split(gga, "GGA", minGGAFields)
	if err != nil {
		return Fix{}, err
	}

	// RMC
	//	2: status (A=active, V=void)
	//	9: date (ddmmyy)
	if strings.TrimSpace(rf[2]) != "A" {
		return Fix{}, fmt.Errorf("%w: RMC status %q", ErrNoFix, rf[2])
	}
	// GGA
	//	1: time (hhmmss.sss)
	//	2,3: latitude (ddmm.mmmm), N/S
	//	4,5: longitude (dddmm.mmmm), E/W
	//	6: fix quality (0=invalid)
	//	9: altitude (metres)
	q := strings.TrimSpace(gf[6])
	if q == "" {
		return Fix{}, fmt.Errorf("%w: empty GGA quality", ErrNoFix)
	}
	quality, err := strconv.Atoi(q)
	if err != nil {
		return Fix{}, fmt.Errorf("%w: GGA quality %q", ErrNumber, q)
	}
	if quality == 0 {
		return Fix{}, fmt.Errorf("%w: GGA quality 0", ErrNoFix)
	}

	ts, err := parseDateTime(rf[9], gf[1])
	if err != nil {
		return Fix{}, err
	}
	lat, err := parseLatLon(gf[2], gf[3], "N", "S")
	if err != nil {
		return Fix{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := parseLatLon(gf[4], gf[5], "E", "W")
	if err != nil {
		return Fix{}, fmt.Errorf("longitude: %w", err)
	}
	if lat < -90 || lat > 90 {
		return Fix{}, fmt.Errorf("%w: latitude %v", ErrRange, lat)
	}
	if lon < -180 || lon > 180 {
		return Fix{}, fmt.Errorf("%w: longitude %v", ErrRange, lon)
	}
	alt, err := strconv.ParseFloat(strings.TrimSpace(gf[9]), 64)
	if err != nil {
		return Fix{}, fmt.Errorf("%w: altitude %q", ErrNumber, gf[9])
	}

	return Fix{Time: ts, Latitude: lat, Longitude: lon, Altitude: alt}, nil
}

// split validates the tag and field count and returns the comma-separated
// fields of line without the checksum suffix.
func (o ParseOptions) split(line, typ string, minFields int) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("%w: empty %s sentence", ErrFormat, typ)
	}
	payload, sum, hasSum := strings.Cut(line, "*")
	fields := strings.Split(payload, ",")
	if len(fields) < minFields {
		return nil, fmt.Errorf("%w: %s has %d fields, need %d", ErrFormat, typ, len(fields), minFields)
	}
	tag := fields[0]
	if len(tag) != 6 || tag[0] != '$' || tag[3:] != typ || !talkers[tag[1:3]] {
		return nil, fmt.Errorf("%w: unexpected tag %q, want $xx%s", ErrFormat, tag, typ)
	}
	if o.VerifyChecksum {
		if !hasSum {
			return nil, fmt.Errorf("%w: %s: missing checksum", ErrFormat, typ)
		}
		if err := verifyChecksum(payload, sum); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFormat, typ, err)
		}
	}
	return fields, nil
}

func verifyChecksum(payload, sum string) error {
	sum = strings.TrimSpace(sum)
	if len(sum) < 2 {
		return fmt.Errorf("short checksum %q", sum)
	}
	want := nmea.Checksum(payload[1:])
	if !strings.EqualFold(sum[:2], want) {
		return fmt.Errorf("checksum mismatch: got %s want %s", sum[:2], want)
	}
	return nil
}

// parseDateTime joins an RMC ddmmyy date with a GGA hhmmss[.f] time as UTC.
func parseDateTime(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if len(date) != 6 || !allDigits(date) {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrNumber, date)
	}
	if len(clock) < 6 || !allDigits(clock[:6]) {
		return time.Time{}, fmt.Errorf("%w: time %q", ErrNumber, clock)
	}
	nsec := 0
	if frac := clock[6:]; frac != "" {
		// A fraction needs at least one digit after the dot.
		digits := frac[1:]
		if frac[0] != '.' || digits == "" || len(digits) > 9 || !allDigits(digits) {
			return time.Time{}, fmt.Errorf("%w: time %q", ErrNumber, clock)
		}
		n, _ := strconv.Atoi(digits)
		for i := len(digits); i < 9; i++ {
			n *= 10
		}
		nsec = n
	}

	day, month, year := atoi2(date[0:2]), atoi2(date[2:4]), 2000+atoi2(date[4:6])
	hh, mm, ss := atoi2(clock[0:2]), atoi2(clock[2:4]), atoi2(clock[4:6])
	if hh > 23 || mm > 59 || ss > 59 {
		return time.Time{}, fmt.Errorf("%w: time %q", ErrNumber, clock)
	}
	t := time.Date(year, time.Month(month), day, hh, mm, ss, nsec, time.UTC)
	// time.Date normalizes 31 Feb into March; reject instead.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrNumber, date)
	}
	return t, nil
}

// parseLatLon parses ddmm.mmmm / dddmm.mmmm plus hemisphere. The last two
// digits of the integer part are minutes.
func parseLatLon(v, hemi, pos, neg string) (float64, error) {
	v = strings.TrimSpace(v)
	hemi = strings.ToUpper(strings.TrimSpace(hemi))
	if hemi != pos && hemi != neg {
		return 0, fmt.Errorf("%w: hemisphere %q", ErrFormat, hemi)
	}

	intPart := v
	if dot := strings.IndexByte(v, '.'); dot != -1 {
		intPart = v[:dot]
	}
	if len(intPart) < 3 || !allDigits(intPart) {
		return 0, fmt.Errorf("%w: %q", ErrNumber, v)
	}
	deg, err := strconv.Atoi(intPart[:len(intPart)-2])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNumber, v)
	}
	mins, err := strconv.ParseFloat(v[len(intPart)-2:], 64)
	if err != nil || mins < 0 || mins >= 60 {
		return 0, fmt.Errorf("%w: minutes in %q", ErrNumber, v)
	}

	dec := float64(deg) + mins/60.0
	if hemi == neg {
		dec = -dec
	}
	return dec, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func atoi2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}
