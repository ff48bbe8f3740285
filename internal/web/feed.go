package web

import (
	"sync"

	"gnss-stamp/internal/stamp"
)

// RecordFeed fans decoded records out to live subscribers (the /ws/records
// socket). It keeps the most recent record so new subscribers get one
// immediately. Slow subscribers miss records instead of blocking Publish.
type RecordFeed struct {
	mu       sync.RWMutex
	subs     map[int]chan stamp.Record
	nextID   int
	last     stamp.Record
	haveLast bool
	closed   bool
}

func NewRecordFeed() *RecordFeed {
	return &RecordFeed{subs: make(map[int]chan stamp.Record)}
}

func (f *RecordFeed) Subscribe(buffer int) (int, <-chan stamp.Record) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan stamp.Record, buffer)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return -1, ch
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	if f.haveLast {
		ch <- f.last
	}
	return id, ch
}

func (f *RecordFeed) Unsubscribe(id int) {
	f.mu.Lock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
	f.mu.Unlock()
}

func (f *RecordFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *RecordFeed) Publish(rec stamp.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for _, ch := range f.subs {
		select {
		case ch <- rec:
		default:
		}
	}
	f.last = rec
	f.haveLast = true
}

// Send decodes a transmitted packet and publishes it.
func (f *RecordFeed) Send(payload []byte) error {
	rec, err := stamp.Decode(payload)
	if err != nil {
		return err
	}
	f.Publish(rec)
	return nil
}

func (f *RecordFeed) String() string { return "websocket" }

// Close ends every subscription.
func (f *RecordFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
	return nil
}
