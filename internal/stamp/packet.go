package stamp

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// tagReal is the universal ASN.1 REAL tag; cryptobyte/asn1 has no constant for it.
const tagReal = cbasn1.Tag(9)

// DeviceID is the fixed 8-byte identifier of the producing device.
type DeviceID [8]byte

// ParseDeviceID accepts exactly 16 hex digits (either case).
func ParseDeviceID(s string) (DeviceID, error) {
	var id DeviceID
	s = strings.TrimSpace(s)
	if len(s) != 2*len(id) {
		return id, fmt.Errorf("device id must be %d hex digits, got %d", 2*len(id), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("device id: %w", err)
	}
	return id, nil
}

func (d DeviceID) String() string { return strings.ToUpper(hex.EncodeToString(d[:])) }

func (d DeviceID) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *DeviceID) UnmarshalText(b []byte) error {
	v, err := ParseDeviceID(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Packet is the wire record. Field order here is the encoding order.
type Packet struct {
	Version       uint8
	TimestampSec  int64
	TimestampNsec uint32
	Latitude      float64
	Longitude     float64
	Altitude      float64
	DeviceID      DeviceID
	LinkID        uint16
	SyncStatus    SyncStatus
	CRC           [2]byte
}

// MarshalBinary returns the canonical DER encoding of p, including whatever
// CRC p currently carries.
func (p Packet) MarshalBinary() ([]byte, error) {
	if p.TimestampNsec >= nanosPerSecond {
		return nil, &EncodeError{Field: "timestamp_nsec", Reason: fmt.Sprintf("%d not in [0, 999999999]", p.TimestampNsec)}
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(int64(p.Version))
		b.AddASN1Int64(p.TimestampSec)
		b.AddASN1Int64(int64(p.TimestampNsec))
		addReal(b, p.Latitude)
		addReal(b, p.Longitude)
		addReal(b, p.Altitude)
		b.AddASN1OctetString(p.DeviceID[:])
		b.AddASN1Int64(int64(p.LinkID))
		b.AddASN1Enum(int64(p.SyncStatus))
		b.AddASN1OctetString(p.CRC[:])
	})
	return b.Bytes()
}

func addReal(b *cryptobyte.Builder, v float64) {
	b.AddASN1(tagReal, func(b *cryptobyte.Builder) {
		b.AddBytes(marshalReal(v))
	})
}

// Checksum computes the CRC of p's encoding with the crc field zeroed.
func (p Packet) Checksum() ([2]byte, error) {
	p.CRC = [2]byte{}
	body, err := p.MarshalBinary()
	if err != nil {
		return [2]byte{}, err
	}
	return crcBytes(crc16(body)), nil
}

// Seal stores the checksum in p and returns the final encoding.
func Seal(p Packet) ([]byte, error) {
	crc, err := p.Checksum()
	if err != nil {
		return nil, err
	}
	p.CRC = crc
	return p.MarshalBinary()
}

// UnmarshalPacket parses the strict DER form of a packet. It checks structure
// only; the CRC is not verified. Every error wraps ErrFormat.
func UnmarshalPacket(data []byte) (Packet, error) {
	var p Packet
	input := cryptobyte.String(data)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return p, formatErr("expected DER SEQUENCE")
	}
	if !input.Empty() {
		return p, formatErr("%d trailing bytes after SEQUENCE", len(input))
	}

	var version, sec, nsec, link int64
	if !seq.ReadASN1Int64WithTag(&version, cbasn1.INTEGER) {
		return p, formatErr("version: expected INTEGER")
	}
	if version < 0 || version > math.MaxUint8 {
		return p, formatErr("version %d out of range", version)
	}
	if !seq.ReadASN1Int64WithTag(&sec, cbasn1.INTEGER) {
		return p, formatErr("timestamp_sec: expected INTEGER")
	}
	if !seq.ReadASN1Int64WithTag(&nsec, cbasn1.INTEGER) {
		return p, formatErr("timestamp_nsec: expected INTEGER")
	}
	if nsec < 0 || nsec >= nanosPerSecond {
		return p, formatErr("timestamp_nsec %d out of range", nsec)
	}

	var reals [3]float64
	for i, name := range [...]string{"latitude", "longitude", "altitude"} {
		var content cryptobyte.String
		if !seq.ReadASN1(&content, tagReal) {
			return p, formatErr("%s: expected REAL", name)
		}
		v, err := unmarshalReal(content)
		if err != nil {
			return p, formatErr("%s: %v", name, err)
		}
		reals[i] = v
	}

	var devID []byte
	if !seq.ReadASN1Bytes(&devID, cbasn1.OCTET_STRING) {
		return p, formatErr("device_id: expected OCTET STRING")
	}
	if len(devID) != len(p.DeviceID) {
		return p, formatErr("device_id: %d bytes, want %d", len(devID), len(p.DeviceID))
	}
	if !seq.ReadASN1Int64WithTag(&link, cbasn1.INTEGER) {
		return p, formatErr("link_id: expected INTEGER")
	}
	if link < 0 || link > math.MaxUint16 {
		return p, formatErr("link_id %d out of range", link)
	}
	var sync int
	if !seq.ReadASN1Enum(&sync) {
		return p, formatErr("sync_status: expected ENUMERATED")
	}
	if sync < math.MinInt32 || sync > math.MaxInt32 {
		return p, formatErr("sync_status %d out of range", sync)
	}
	var crc []byte
	if !seq.ReadASN1Bytes(&crc, cbasn1.OCTET_STRING) {
		return p, formatErr("crc: expected OCTET STRING")
	}
	if len(crc) != len(p.CRC) {
		return p, formatErr("crc: %d bytes, want %d", len(crc), len(p.CRC))
	}
	if !seq.Empty() {
		return p, formatErr("unexpected fields after crc")
	}

	p = Packet{
		Version:       uint8(version),
		TimestampSec:  sec,
		TimestampNsec: uint32(nsec),
		Latitude:      reals[0],
		Longitude:     reals[1],
		Altitude:      reals[2],
		LinkID:        uint16(link),
		SyncStatus:    SyncStatus(sync),
	}
	copy(p.DeviceID[:], devID)
	copy(p.CRC[:], crc)

	again, err := p.MarshalBinary()
	if err != nil || !bytes.Equal(again, data) {
		return Packet{}, formatErr("non-canonical encoding")
	}
	return p, nil
}
