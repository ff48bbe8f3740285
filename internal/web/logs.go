package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// maxPartial bounds an unterminated line held between writes.
	maxPartial  = 64 * 1024
	defaultTail = 200
	maxTail     = 5000
)

// Short level labels written by the text formatter.
var levelLabels = map[string]log.Level{
	"DEBU": log.DebugLevel,
	"INFO": log.InfoLevel,
	"WARN": log.WarnLevel,
	"ERRO": log.ErrorLevel,
	"FATA": log.FatalLevel,
}

type logLine struct {
	level log.Level
	text  string
}

// LogBuffer is an io.Writer ring of the process's recent log lines, served
// on /api/logs. Each line keeps the level parsed from its label so the
// endpoint can filter by severity.
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []logLine
	partial []byte
	dropped uint64
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 2000
	}
	return &LogBuffer{max: maxLines}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := append(b.partial, p...)
	b.partial = nil
	for {
		line, rest, ok := bytes.Cut(data, []byte{'\n'})
		if !ok {
			break
		}
		b.push(string(line))
		data = rest
	}
	switch {
	case len(data) > maxPartial:
		b.push(string(data))
	case len(data) > 0:
		b.partial = append([]byte(nil), data...)
	}
	return len(p), nil
}

func (b *LogBuffer) push(raw string) {
	text := stripANSI(strings.TrimRight(raw, "\r"))
	if strings.TrimSpace(text) == "" {
		return
	}
	b.lines = append(b.lines, logLine{level: lineLevel(text), text: text})
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = b.lines[over:]
		b.dropped += uint64(over)
	}
}

// lineLevel finds the first level label among the leading fields. Lines
// without one (continuations, foreign writers) count as info.
func lineLevel(text string) log.Level {
	fields := strings.Fields(text)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	for _, f := range fields {
		if lvl, ok := levelLabels[f]; ok {
			return lvl
		}
	}
	return log.InfoLevel
}

// Snapshot returns up to tail of the newest lines at or above floor, plus the
// number of lines evicted from the ring so far.
func (b *LogBuffer) Snapshot(tail int, floor log.Level) (lines []string, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tail <= 0 {
		tail = defaultTail
	}
	for i := len(b.lines) - 1; i >= 0 && len(lines) < tail; i-- {
		if b.lines[i].level >= floor {
			lines = append(lines, b.lines[i].text)
		}
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, b.dropped
}

type LogsResponse struct {
	NowUTC  string   `json:"now_utc"`
	Level   string   `json:"level"`
	Dropped uint64   `json:"dropped"`
	Lines   []string `json:"lines"`
}

// Handler serves GET /api/logs?tail=N&level=warn&format=text.
func (b *LogBuffer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()

		tail := defaultTail
		if s := strings.TrimSpace(q.Get("tail")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 || v > maxTail {
				http.Error(w, fmt.Sprintf("tail must be an integer in [1,%d]", maxTail), http.StatusBadRequest)
				return
			}
			tail = v
		}
		floor := log.DebugLevel
		if s := strings.TrimSpace(q.Get("level")); s != "" {
			lvl, err := log.ParseLevel(s)
			if err != nil {
				http.Error(w, "level must be one of debug, info, warn, error", http.StatusBadRequest)
				return
			}
			floor = lvl
		}

		lines, dropped := b.Snapshot(tail, floor)
		if strings.EqualFold(q.Get("format"), "text") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			if dropped > 0 {
				_, _ = fmt.Fprintf(w, "[dropped=%d]\n", dropped)
			}
			for _, line := range lines {
				_, _ = fmt.Fprintln(w, line)
			}
			return
		}
		if lines == nil {
			lines = []string{}
		}
		writeJSON(w, LogsResponse{
			NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
			Level:   floor.String(),
			Dropped: dropped,
			Lines:   lines,
		})
	})
}

// stripANSI drops CSI escape sequences so styled logger output reads cleanly
// in the browser.
func stripANSI(s string) string {
	if strings.IndexByte(s, 0x1b) < 0 {
		return s
	}
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
				j++
			}
			i = j
			continue
		}
		out.WriteByte(s[i])
	}
	return out.String()
}
