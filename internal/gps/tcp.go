package gps

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type TCPConfig struct {
	Addr string

	ReconnectDelay time.Duration
	MaxLineBytes   int

	// DialTimeout is used for each TCP connect attempt.
	DialTimeout time.Duration

	Log *log.Logger
}

// TCPSource reads NMEA lines from a TCP endpoint (a receiver or a network
// multiplexer) and reconnects when the connection drops. It is an io.Reader
// of newline-terminated sentences, so it can feed a PairReader directly.
type TCPSource struct {
	cfg TCPConfig
	pr  *io.PipeReader
	pw  *io.PipeWriter

	mu      sync.Mutex
	state   string
	lastErr string
	lines   uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// DialTCP starts the connect loop. It stops when ctx is done or Close is
// called; readers then see io.EOF.
func DialTCP(ctx context.Context, cfg TCPConfig) (*TCPSource, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("gps: tcp addr is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 4 * 1024
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = log.Default()
	}

	pr, pw := io.Pipe()
	runCtx, cancel := context.WithCancel(ctx)
	s := &TCPSource{cfg: cfg, pr: pr, pw: pw, state: "connecting", cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer pw.Close()
		s.runLoop(runCtx)
	}()
	return s, nil
}

func (s *TCPSource) Read(p []byte) (int, error) { return s.pr.Read(p) }

func (s *TCPSource) String() string { return "tcp:" + s.cfg.Addr }

func (s *TCPSource) Close() error {
	s.cancel()
	// Unblocks a loop stuck writing to a reader that went away.
	_ = s.pr.Close()
	<-s.done
	return nil
}

// State reports the connection state and the last error, if any.
func (s *TCPSource) State() (state, lastErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastErr
}

// Lines reports how many sentences have been forwarded.
func (s *TCPSource) Lines() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

func (s *TCPSource) runLoop(ctx context.Context) {
	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}
	for {
		if ctx.Err() != nil {
			s.setState("stopped", "")
			return
		}

		s.setState("connecting", "")
		conn, err := dialer.DialContext(ctx, "tcp", s.cfg.Addr)
		if err != nil {
			s.setState("error", err.Error())
			if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
				s.setState("stopped", "")
				return
			}
			continue
		}

		s.setState("connected", "")
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err = s.copyLines(conn)
		stop()
		_ = conn.Close()
		if errors.Is(err, io.ErrClosedPipe) {
			s.setState("stopped", "")
			return
		}
		if err != nil && ctx.Err() == nil {
			s.setState("disconnected", err.Error())
		} else {
			s.setState("disconnected", "")
		}

		if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
			s.setState("stopped", "")
			return
		}
	}
}

// copyLines forwards trimmed, non-empty lines until the connection fails.
func (s *TCPSource) copyLines(conn net.Conn) error {
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 512), s.cfg.MaxLineBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		out := make([]byte, 0, len(line)+1)
		out = append(append(out, line...), '\n')
		if _, err := s.pw.Write(out); err != nil {
			return err
		}
		s.mu.Lock()
		s.lines++
		s.mu.Unlock()
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (s *TCPSource) setState(state, lastErr string) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	if lastErr != "" {
		s.lastErr = lastErr
	} else if state == "connected" || state == "connecting" || state == "stopped" {
		// Clear stale errors so a recovered link does not look broken.
		s.lastErr = ""
	}
	s.mu.Unlock()

	if prev == state {
		return
	}
	if lastErr != "" {
		s.cfg.Log.Warn("nmea tcp source", "addr", s.cfg.Addr, "state", state, "err", lastErr)
	} else {
		s.cfg.Log.Debug("nmea tcp source", "addr", s.cfg.Addr, "state", state)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
