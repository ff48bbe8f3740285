package archive

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Hex log format: line-oriented text.
//
//	#<seq> [<local time>] len=<n>
//	<uppercase hex of the packet>
//	<blank>
//
// Readers take any line made only of hex digits as a packet. Lines starting
// with '#' and blank lines are ignored.

type HexWriter struct {
	mu     sync.Mutex
	c      io.Closer
	w      *bufio.Writer
	seq    int
	now    func() time.Time
	closed bool
}

// CreateHexWriter opens path for appending, creating it if needed.
func CreateHexWriter(path string) (*HexWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	hw := NewHexWriter(f)
	hw.c = f
	return hw, nil
}

// NewHexWriter writes to w; Close flushes but does not close w.
func NewHexWriter(w io.Writer) *HexWriter {
	return &HexWriter{w: bufio.NewWriterSize(w, 16*1024), now: time.Now}
}

// WritePacket appends one entry stamped with now.
func (hw *HexWriter) WritePacket(now time.Time, pkt []byte) error {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	if hw.closed {
		return errors.New("hex writer is closed")
	}
	if len(pkt) == 0 {
		return errors.New("packet is empty")
	}
	hw.seq++
	_, err := fmt.Fprintf(hw.w, "#%d [%s] len=%d\n%s\n\n",
		hw.seq, now.Format("2006-01-02 15:04:05"), len(pkt), strings.ToUpper(hex.EncodeToString(pkt)))
	return err
}

// Send appends pkt and flushes so the file can be followed while running.
func (hw *HexWriter) Send(pkt []byte) error {
	if err := hw.WritePacket(hw.now(), pkt); err != nil {
		return err
	}
	return hw.Flush()
}

// Count reports how many packets have been written.
func (hw *HexWriter) Count() int {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	return hw.seq
}

func (hw *HexWriter) String() string { return "hexlog" }

func (hw *HexWriter) Flush() error {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	if hw.closed {
		return nil
	}
	return hw.w.Flush()
}

func (hw *HexWriter) Close() error {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	if hw.closed {
		return nil
	}
	hw.closed = true
	err := hw.w.Flush()
	if hw.c != nil {
		if cerr := hw.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// HexEntry is one packet line of a hex log.
type HexEntry struct {
	Line int // 1-based line number in the source
	Hex  string
}

// Bytes decodes the entry. Odd-length lines fail here.
func (e HexEntry) Bytes() ([]byte, error) {
	b, err := hex.DecodeString(e.Hex)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", e.Line, err)
	}
	return b, nil
}

type HexReader struct {
	r io.Reader
}

func NewHexReader(r io.Reader) *HexReader {
	return &HexReader{r: r}
}

// ReadAll returns every packet line. ignored counts non-blank, non-comment
// lines that are not pure hex.
func (hr *HexReader) ReadAll() (entries []HexEntry, ignored int, err error) {
	s := bufio.NewScanner(hr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	n := 0
	for s.Scan() {
		n++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !isHex(line) {
			ignored++
			continue
		}
		entries = append(entries, HexEntry{Line: n, Hex: line})
	}
	if err := s.Err(); err != nil {
		return nil, ignored, err
	}
	return entries, ignored, nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
