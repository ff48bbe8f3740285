package stamp

import (
	"fmt"
	"math"
	"time"

	"gnss-stamp/internal/gps"
)

// DefaultVersion is the packet format version written by NewSession.
const DefaultVersion = 1

// Session holds the per-producer parameters stamped into every packet.
type Session struct {
	DeviceID   []byte
	LinkID     int
	SyncStatus SyncStatus
	Version    uint8
}

func NewSession(deviceID []byte, linkID int, sync SyncStatus) Session {
	return Session{
		DeviceID:   deviceID,
		LinkID:     linkID,
		SyncStatus: sync,
		Version:    DefaultVersion,
	}
}

func (s Session) validate() error {
	if len(s.DeviceID) != 8 {
		return &EncodeError{Field: "device_id", Reason: fmt.Sprintf("must be 8 bytes, got %d", len(s.DeviceID))}
	}
	if s.LinkID < 0 || s.LinkID > math.MaxUint16 {
		return &EncodeError{Field: "link_id", Reason: fmt.Sprintf("%d not in [0, 65535]", s.LinkID)}
	}
	if !s.SyncStatus.Known() {
		return &EncodeError{Field: "sync_status", Reason: fmt.Sprintf("unrecognized code %d", int32(s.SyncStatus))}
	}
	return nil
}

// roundCoord rounds to 8 decimal places (about 1.1 mm of latitude).
func roundCoord(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}

// Encode builds the sealed wire form of fix under session s.
func Encode(fix gps.Fix, s Session) ([]byte, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if !(fix.Latitude >= -90 && fix.Latitude <= 90) {
		return nil, &EncodeError{Field: "latitude", Reason: fmt.Sprintf("%v not in [-90, 90]", fix.Latitude)}
	}
	if !(fix.Longitude >= -180 && fix.Longitude <= 180) {
		return nil, &EncodeError{Field: "longitude", Reason: fmt.Sprintf("%v not in [-180, 180]", fix.Longitude)}
	}
	p := Packet{
		Version:       s.Version,
		TimestampSec:  fix.Time.Unix(),
		TimestampNsec: uint32(fix.Time.Nanosecond()),
		Latitude:      roundCoord(fix.Latitude),
		Longitude:     roundCoord(fix.Longitude),
		Altitude:      fix.Altitude,
		LinkID:        uint16(s.LinkID),
		SyncStatus:    s.SyncStatus,
	}
	copy(p.DeviceID[:], s.DeviceID)
	return Seal(p)
}

// Record is a verified, decoded packet.
type Record struct {
	Version       uint8      `json:"version"`
	TimestampSec  int64      `json:"timestamp_sec"`
	TimestampNsec uint32     `json:"timestamp_nsec"`
	Time          time.Time  `json:"time"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	Altitude      float64    `json:"altitude"`
	DeviceID      DeviceID   `json:"device_id"`
	LinkID        uint16     `json:"link_id"`
	SyncStatus    SyncStatus `json:"sync_status"`
	CRC           uint16     `json:"crc"`
	CRCValid      bool       `json:"crc_valid"`
}

// Timestamp is the display form of the record time, see FormatTimestamp.
func (r Record) Timestamp() string {
	return FormatTimestamp(r.TimestampSec, int64(r.TimestampNsec))
}

// InBounds reports whether the coordinates lie in the encodable range.
// Decode does not enforce this.
func (r Record) InBounds() bool {
	return r.Latitude >= -90 && r.Latitude <= 90 && r.Longitude >= -180 && r.Longitude <= 180
}

// Decode parses and verifies a packet. On a checksum mismatch it returns a
// *CRCError and no field values.
func Decode(data []byte) (Record, error) {
	p, err := UnmarshalPacket(data)
	if err != nil {
		return Record{}, err
	}
	computed, err := p.Checksum()
	if err != nil {
		return Record{}, formatErr("%v", err)
	}
	if computed != p.CRC {
		return Record{}, &CRCError{Stored: p.CRC, Computed: computed}
	}
	return Record{
		Version:       p.Version,
		TimestampSec:  p.TimestampSec,
		TimestampNsec: p.TimestampNsec,
		Time:          time.Unix(p.TimestampSec, int64(p.TimestampNsec)).UTC(),
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		Altitude:      p.Altitude,
		DeviceID:      p.DeviceID,
		LinkID:        p.LinkID,
		SyncStatus:    p.SyncStatus,
		CRC:           uint16(p.CRC[0])<<8 | uint16(p.CRC[1]),
		CRCValid:      true,
	}, nil
}
