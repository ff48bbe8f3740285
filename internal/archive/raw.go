package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// MaxRawPacket bounds what ReadRawPacket accepts. STAMP packets are well under
// 100 bytes; the limit only guards against pointing the reader at the wrong file.
const MaxRawPacket = 64 * 1024

// WriteRawPacket stores pkt as the whole content of path. The file is written
// under a temporary name and renamed into place.
func WriteRawPacket(path string, pkt []byte) error {
	if len(pkt) == 0 {
		return fmt.Errorf("packet is empty")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".stamp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(pkt); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadRawPacket returns the content of a single-packet file.
func ReadRawPacket(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, MaxRawPacket+1))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	if len(b) > MaxRawPacket {
		return nil, fmt.Errorf("%s: larger than %d bytes; not a single packet", path, MaxRawPacket)
	}
	return b, nil
}

// RawWriter stores every packet it is sent as its own raw file in dir,
// named after RawPattern with a sequence suffix.
type RawWriter struct {
	mu  sync.Mutex
	dir string
	seq int
	now func() time.Time
}

func NewRawWriter(dir string) (*RawWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &RawWriter{dir: dir, now: time.Now}, nil
}

func (w *RawWriter) Send(pkt []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	path, err := OutputPath(w.dir, RawPattern, w.now())
	if err != nil {
		return err
	}
	w.seq++
	path = fmt.Sprintf("%s_%06d.bin", strings.TrimSuffix(path, ".bin"), w.seq)
	return WriteRawPacket(path, pkt)
}

func (w *RawWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

func (w *RawWriter) String() string { return "raw:" + w.dir }

func (w *RawWriter) Close() error { return nil }
