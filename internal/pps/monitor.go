package pps

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"gnss-stamp/internal/stamp"
)

// Monitor feeds pulses into a Classifier and serves the current status to
// the pipeline. It is safe for concurrent use.
type Monitor struct {
	mu     sync.Mutex
	cls    *Classifier
	last   stamp.SyncStatus
	pulses uint64
	log    *log.Logger
	now    func() time.Time
}

func NewMonitor(cfg Config, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{
		cls:  NewClassifier(cfg),
		last: cfg.Fallback,
		log:  logger,
		now:  time.Now,
	}
}

// Run consumes pulse timestamps until ctx is done or pulses is closed.
func (m *Monitor) Run(ctx context.Context, pulses <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-pulses:
			if !ok {
				return
			}
			m.Pulse(t)
		}
	}
}

// Pulse records one edge. Status transitions are logged.
func (m *Monitor) Pulse(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pulses++
	m.transition(m.cls.Pulse(t))
}

// Status is the sync status to stamp into the next packet.
func (m *Monitor) Status() stamp.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.cls.Status(m.now())
	m.transition(st)
	return st
}

// Pulses returns the number of edges seen.
func (m *Monitor) Pulses() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pulses
}

func (m *Monitor) transition(st stamp.SyncStatus) {
	if st == m.last {
		return
	}
	m.log.Info("pps sync status changed", "from", m.last, "to", st)
	m.last = st
}
