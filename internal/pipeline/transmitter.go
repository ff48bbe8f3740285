package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// DefaultQueueSize is the transmit queue capacity when none is configured.
const DefaultQueueSize = 1000

// Sink receives finished packets. Send must not retain payload.
type Sink interface {
	Send(payload []byte) error
	Close() error
}

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("pipeline: transmitter closed")

// ErrQueueFull is returned by Enqueue when the packet was dropped.
var ErrQueueFull = errors.New("pipeline: transmit queue full")

// Transmitter is a single-consumer queue that hands each packet to every sink
// in order. Enqueue never blocks: when the queue is full the packet is
// dropped.
type Transmitter struct {
	sinks []Sink
	stats *Stats
	log   *log.Logger

	mu     sync.Mutex
	closed bool
	queue  chan []byte
	done   chan struct{}
}

func NewTransmitter(size int, sinks []Sink, stats *Stats, logger *log.Logger) *Transmitter {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if stats == nil {
		stats = &Stats{}
	}
	if logger == nil {
		logger = log.Default()
	}
	t := &Transmitter{
		sinks: sinks,
		stats: stats,
		log:   logger,
		queue: make(chan []byte, size),
		done:  make(chan struct{}),
	}
	go t.consume()
	return t
}

func (t *Transmitter) Enqueue(pkt []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	select {
	case t.queue <- pkt:
		return nil
	default:
		t.stats.dropped.Add(1)
		t.log.Warn("transmit queue full, packet dropped", "len", len(pkt), "capacity", cap(t.queue))
		return ErrQueueFull
	}
}

// Pending returns the number of queued packets.
func (t *Transmitter) Pending() int { return len(t.queue) }

func (t *Transmitter) consume() {
	defer close(t.done)
	for pkt := range t.queue {
		failed := false
		for _, s := range t.sinks {
			if err := s.Send(pkt); err != nil {
				failed = true
				t.stats.sinkErrors.Add(1)
				t.log.Error("sink send failed", "sink", sinkName(s), "err", err)
			}
		}
		if !failed {
			t.stats.sent.Add(1)
		}
	}
}

// Close drains the queue, waits for the consumer and closes every sink.
func (t *Transmitter) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		<-t.done
		return nil
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	<-t.done
	var errs []error
	for _, s := range t.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", sinkName(s), err))
		}
	}
	return errors.Join(errs...)
}

func sinkName(s Sink) string {
	if st, ok := s.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprintf("%T", s)
}
