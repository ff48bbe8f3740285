// Package pps derives a STAMP sync status from pulse-per-second edges.
package pps

import (
	"time"

	"gnss-stamp/internal/stamp"
)

const (
	DefaultTolerance   = 5 * time.Millisecond
	DefaultStableCount = 3
	DefaultTimeout     = 2 * time.Second
)

// Config tunes a Classifier. Zero fields take the defaults above.
type Config struct {
	// Tolerance is the allowed deviation of a pulse interval from one second.
	Tolerance time.Duration
	// StableCount is the number of consecutive good intervals for ppsStable.
	StableCount int
	// Timeout without a pulse reverts the status to Fallback.
	Timeout time.Duration
	// Fallback is reported before the first pulse and after Timeout.
	Fallback stamp.SyncStatus
}

// Classifier is not safe for concurrent use; Monitor serialises access.
type Classifier struct {
	cfg  Config
	last time.Time
	good int
}

func NewClassifier(cfg Config) *Classifier {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.StableCount <= 0 {
		cfg.StableCount = DefaultStableCount
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Classifier{cfg: cfg}
}

// Pulse records a rising edge observed at t and returns the resulting status.
func (c *Classifier) Pulse(t time.Time) stamp.SyncStatus {
	if !c.last.IsZero() {
		d := t.Sub(c.last) - time.Second
		if d < 0 {
			d = -d
		}
		if d <= c.cfg.Tolerance {
			c.good++
		} else {
			c.good = 0
		}
	}
	c.last = t
	return c.Status(t)
}

// Status reports the sync status as of now.
func (c *Classifier) Status(now time.Time) stamp.SyncStatus {
	if c.last.IsZero() || now.Sub(c.last) > c.cfg.Timeout {
		return c.cfg.Fallback
	}
	if c.good >= c.cfg.StableCount {
		return stamp.SyncPPSStable
	}
	return stamp.SyncPPSUnstable
}

// Reset forgets all pulses.
func (c *Classifier) Reset() {
	c.last = time.Time{}
	c.good = 0
}
