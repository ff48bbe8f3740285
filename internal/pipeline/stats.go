package pipeline

import "sync/atomic"

// Stats are the pipeline counters. The zero value is ready to use.
type Stats struct {
	lines       atomic.Uint64
	pairs       atomic.Uint64
	noFix       atomic.Uint64
	parseErrors atomic.Uint64
	encoded     atomic.Uint64
	encodeErrs  atomic.Uint64
	dropped     atomic.Uint64
	sent        atomic.Uint64
	sinkErrors  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Lines        uint64 `json:"lines"`
	Pairs        uint64 `json:"pairs"`
	NoFix        uint64 `json:"no_fix"`
	ParseErrors  uint64 `json:"parse_errors"`
	Encoded      uint64 `json:"encoded"`
	EncodeErrors uint64 `json:"encode_errors"`
	Dropped      uint64 `json:"dropped"`
	Sent         uint64 `json:"sent"`
	SinkErrors   uint64 `json:"sink_errors"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Lines:        s.lines.Load(),
		Pairs:        s.pairs.Load(),
		NoFix:        s.noFix.Load(),
		ParseErrors:  s.parseErrors.Load(),
		Encoded:      s.encoded.Load(),
		EncodeErrors: s.encodeErrs.Load(),
		Dropped:      s.dropped.Load(),
		Sent:         s.sent.Load(),
		SinkErrors:   s.sinkErrors.Load(),
	}
}

// Counters exposes the snapshot to the web status endpoint.
func (s *Stats) Counters() map[string]uint64 {
	v := s.Snapshot()
	return map[string]uint64{
		"lines":         v.Lines,
		"pairs":         v.Pairs,
		"no_fix":        v.NoFix,
		"parse_errors":  v.ParseErrors,
		"encoded":       v.Encoded,
		"encode_errors": v.EncodeErrors,
		"dropped":       v.Dropped,
		"sent":          v.Sent,
		"sink_errors":   v.SinkErrors,
	}
}
