package store

import (
	"context"
	"sync"

	"gnss-stamp/internal/stamp"
)

// Sink stores every packet it is sent under one run. Packets are verified
// first; a packet that does not decode is not stored.
type Sink struct {
	store *Store
	runID string

	mu  sync.Mutex
	seq int
}

func (s *Store) Sink(runID string) *Sink {
	return &Sink{store: s, runID: runID}
}

func (k *Sink) Send(pkt []byte) error {
	rec, err := stamp.Decode(pkt)
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.seq++
	return k.store.InsertRecord(context.Background(), k.runID, k.seq, pkt, rec)
}

func (k *Sink) String() string { return "sqlite" }

// Close does not close the store; its owner does.
func (k *Sink) Close() error { return nil }
