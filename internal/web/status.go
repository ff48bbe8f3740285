package web

import (
	"sync/atomic"
	"time"
)

// CountersSource supplies live counters (pipeline statistics) for /api/status.
type CountersSource interface {
	Counters() map[string]uint64
}

type countersBox struct{ src CountersSource }

// Status tracks what /api/status reports. It also acts as a sink so every
// transmitted packet is counted.
type Status struct {
	startUnixNano  int64
	packetsSent    uint64
	bytesSent      uint64
	lastPacketNano int64
	mode           atomic.Value // string
	deviceID       atomic.Value // string
	linkID         atomic.Value // int
	interval       atomic.Value // string
	sinks          atomic.Value // []string
	sync           atomic.Value // string
	counters       atomic.Value // countersBox
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.mode.Store("")
	s.deviceID.Store("")
	s.linkID.Store(0)
	s.interval.Store("")
	s.sinks.Store([]string{})
	s.sync.Store("")
	s.counters.Store(countersBox{})
	return s
}

// SetStatic records run parameters that do not change while running.
// Empty values leave the previous value in place.
func (s *Status) SetStatic(mode, deviceID string, linkID int, interval string, sinks []string) {
	if mode != "" {
		s.mode.Store(mode)
	}
	if deviceID != "" {
		s.deviceID.Store(deviceID)
	}
	s.linkID.Store(linkID)
	if interval != "" {
		s.interval.Store(interval)
	}
	if sinks != nil {
		s.sinks.Store(append([]string(nil), sinks...))
	}
}

func (s *Status) SetSync(name string) { s.sync.Store(name) }

func (s *Status) SetCounters(src CountersSource) { s.counters.Store(countersBox{src: src}) }

func (s *Status) MarkPacket(nowUTC time.Time, n int) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.StoreInt64(&s.lastPacketNano, nowUTC.UnixNano())
	atomic.AddUint64(&s.packetsSent, 1)
	atomic.AddUint64(&s.bytesSent, uint64(n))
}

// Send counts one transmitted packet.
func (s *Status) Send(payload []byte) error {
	s.MarkPacket(time.Now().UTC(), len(payload))
	return nil
}

func (s *Status) Close() error { return nil }

func (s *Status) String() string { return "status" }

type StatusSnapshot struct {
	Service       string            `json:"service"`
	NowUTC        string            `json:"now_utc"`
	UptimeSec     int64             `json:"uptime_sec"`
	Mode          string            `json:"mode"`
	DeviceID      string            `json:"device_id"`
	LinkID        int               `json:"link_id"`
	SyncStatus    string            `json:"sync_status"`
	Interval      string            `json:"interval"`
	Sinks         []string          `json:"sinks"`
	PacketsSent   uint64            `json:"packets_sent_total"`
	BytesSent     uint64            `json:"bytes_sent_total"`
	LastPacketUTC string            `json:"last_packet_utc,omitempty"`
	Counters      map[string]uint64 `json:"counters,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	last := atomic.LoadInt64(&s.lastPacketNano)

	snap := StatusSnapshot{
		Service:     "gnss-stamp",
		NowUTC:      nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:   int64(nowUTC.Sub(start).Seconds()),
		Mode:        s.mode.Load().(string),
		DeviceID:    s.deviceID.Load().(string),
		LinkID:      s.linkID.Load().(int),
		SyncStatus:  s.sync.Load().(string),
		Interval:    s.interval.Load().(string),
		Sinks:       s.sinks.Load().([]string),
		PacketsSent: atomic.LoadUint64(&s.packetsSent),
		BytesSent:   atomic.LoadUint64(&s.bytesSent),
	}
	if last != 0 {
		snap.LastPacketUTC = time.Unix(0, last).UTC().Format(time.RFC3339Nano)
	}
	if box := s.counters.Load().(countersBox); box.src != nil {
		snap.Counters = box.src.Counters()
	}
	return snap
}
