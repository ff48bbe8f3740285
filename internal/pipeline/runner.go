package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"gnss-stamp/internal/gps"
)

// Runner reads pairs from Reader, processes them and enqueues the packets.
type Runner struct {
	Reader      *gps.PairReader
	Processor   *Processor
	Transmitter *Transmitter
	// Input, when set, is closed as soon as ctx is done so a read blocked
	// on a silent source returns.
	Input io.Closer
	// Interval is the poll period in realtime mode.
	Interval time.Duration
	Log      *log.Logger
}

func (r *Runner) logger() *log.Logger {
	if r.Log == nil {
		return log.Default()
	}
	return r.Log
}

// drain processes every pair currently available. It returns the reader's
// terminal condition: io.EOF, gps.ErrPairPending or a read error.
func (r *Runner) drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pair, err := r.Reader.Next()
		if err != nil {
			r.syncLines()
			return err
		}
		pkt, err := r.Processor.Process(pair)
		if err != nil {
			continue
		}
		// Drops are counted and logged by the transmitter.
		_ = r.Transmitter.Enqueue(pkt)
	}
}

// closeOnDone arms the Input close. The returned func disarms it.
func (r *Runner) closeOnDone(ctx context.Context) (stop func() bool) {
	if r.Input == nil {
		return func() bool { return false }
	}
	return context.AfterFunc(ctx, func() {
		if err := r.Input.Close(); err != nil {
			r.logger().Debug("input close on cancel", "err", err)
		}
	})
}

func (r *Runner) syncLines() {
	if r.Processor.Stats != nil {
		r.Processor.Stats.lines.Store(uint64(r.Reader.Lines()))
	}
}

// RunSingle processes the input once, until end of file. A trailing RMC whose
// GGA never arrived is discarded.
func (r *Runner) RunSingle(ctx context.Context) error {
	defer r.closeOnDone(ctx)()
	r.Reader.Finish()
	err := r.drain(ctx)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, io.EOF):
		return nil
	case errors.Is(err, gps.ErrPairPending):
		r.logger().Debug("input ended with an unpaired RMC", "lines", r.Reader.Lines())
		return nil
	default:
		return err
	}
}

// RunRealtime keeps polling the input every Interval until ctx is done.
// Reaching the end of the input is not an error: the source may still grow.
func (r *Runner) RunRealtime(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	defer r.closeOnDone(ctx)()

	for {
		err := r.drain(ctx)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, gps.ErrPairPending):
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
