package gps

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// ErrPairPending means an RMC has been read but its GGA has not arrived yet.
// Calling Next again once more input is available resumes the pair.
var ErrPairPending = errors.New("gps: waiting for GGA")

// ggaWindow is how many lines after an RMC may hold its GGA.
const ggaWindow = 2

// Pair is an RMC sentence and the GGA that followed it.
type Pair struct {
	RMC  string
	GGA  string
	Line int // line number of the RMC, 1-based
}

type numberedLine struct {
	text string
	n    int
}

// PairReader extracts RMC+GGA pairs from line-oriented NMEA input. It keeps
// partial trailing lines, so it can follow a file that is still being written
// or a serial port.
type PairReader struct {
	r       *bufio.Reader
	partial []byte
	window  []numberedLine
	lines   int
	final   bool
}

func NewPairReader(r io.Reader) *PairReader {
	return &PairReader{r: bufio.NewReader(r)}
}

// Finish declares that the input will not grow: a trailing line without a
// newline is then taken as complete.
func (p *PairReader) Finish() { p.final = true }

// Lines reports how many complete lines have been consumed.
func (p *PairReader) Lines() int { return p.lines }

// Next returns the next pair, io.EOF when no RMC is left in the input seen so
// far, or ErrPairPending. An RMC followed by two lines that are not GGA is
// skipped.
func (p *PairReader) Next() (Pair, error) {
	for {
		for len(p.window) > 0 && sentenceType(p.window[0].text) != "RMC" {
			p.window = p.window[1:]
		}
		if len(p.window) == 0 {
			ok, err := p.fill()
			if err != nil {
				return Pair{}, err
			}
			if !ok {
				return Pair{}, io.EOF
			}
			continue
		}

		for len(p.window) < 1+ggaWindow && p.ggaIndex() == -1 {
			ok, err := p.fill()
			if err != nil {
				return Pair{}, err
			}
			if !ok {
				return Pair{}, ErrPairPending
			}
		}
		if i := p.ggaIndex(); i != -1 {
			pair := Pair{RMC: p.window[0].text, GGA: p.window[i].text, Line: p.window[0].n}
			p.window = p.window[i+1:]
			return pair, nil
		}
		p.window = p.window[1:]
	}
}

// ggaIndex finds a GGA within the window after the leading RMC.
func (p *PairReader) ggaIndex() int {
	for i := 1; i < len(p.window) && i <= ggaWindow; i++ {
		if sentenceType(p.window[i].text) == "GGA" {
			return i
		}
	}
	return -1
}

// fill appends one complete non-blank line to the window. It reports false
// when the input has no complete line available.
func (p *PairReader) fill() (bool, error) {
	for {
		chunk, err := p.r.ReadSlice('\n')
		p.partial = append(p.partial, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && p.final && len(p.partial) > 0 {
			err = nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
		line := strings.TrimSpace(string(p.partial))
		p.partial = p.partial[:0]
		p.lines++
		if line == "" {
			continue
		}
		p.window = append(p.window, numberedLine{text: line, n: p.lines})
		return true, nil
	}
}

// sentenceType returns "RMC", "GGA" or "" for a raw line.
func sentenceType(line string) string {
	if !strings.HasPrefix(line, "$") || len(line) < 6 {
		return ""
	}
	switch t := line[3:6]; t {
	case "RMC", "GGA":
		return t
	}
	return ""
}
