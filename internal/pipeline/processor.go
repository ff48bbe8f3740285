// Package pipeline turns NMEA sentence pairs into STAMP packets and delivers
// them to sinks through a bounded transmit queue.
package pipeline

import (
	"errors"

	"github.com/charmbracelet/log"

	"gnss-stamp/internal/gps"
	"gnss-stamp/internal/stamp"
)

// SyncSource supplies the sync status at packet time, e.g. a PPS monitor.
type SyncSource interface {
	Status() stamp.SyncStatus
}

// Processor parses and encodes one pair at a time.
type Processor struct {
	Options gps.ParseOptions
	Session stamp.Session
	// Sync overrides Session.SyncStatus when set.
	Sync  SyncSource
	Stats *Stats
	Log   *log.Logger
}

// Process returns the encoded packet for pair. A pair without a fix yields
// gps.ErrNoFix, which callers should treat as a skip rather than a failure.
func (p *Processor) Process(pair gps.Pair) ([]byte, error) {
	stats := p.Stats
	if stats == nil {
		stats = &Stats{}
	}
	logger := p.Log
	if logger == nil {
		logger = log.Default()
	}

	stats.pairs.Add(1)
	fix, err := p.Options.ParsePair(pair.RMC, pair.GGA)
	if err != nil {
		if errors.Is(err, gps.ErrNoFix) {
			stats.noFix.Add(1)
			logger.Debug("no fix", "line", pair.Line)
		} else {
			stats.parseErrors.Add(1)
			logger.Warn("sentence pair rejected", "line", pair.Line, "err", err)
		}
		return nil, err
	}

	session := p.Session
	if p.Sync != nil {
		session.SyncStatus = p.Sync.Status()
	}
	pkt, err := stamp.Encode(fix, session)
	if err != nil {
		stats.encodeErrs.Add(1)
		logger.Error("encode failed", "line", pair.Line, "err", err)
		return nil, err
	}
	stats.encoded.Add(1)
	logger.Debug("packet encoded",
		"line", pair.Line,
		"time", fix.Time.Format("2006-01-02T15:04:05.000Z07:00"),
		"lat", fix.Latitude,
		"lon", fix.Longitude,
		"len", len(pkt),
	)
	return pkt, nil
}
