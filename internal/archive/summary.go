package archive

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SummaryEntry struct {
	Sequence      int    `json:"sequence"`
	Timestamp     string `json:"timestamp"`
	PayloadLength int    `json:"payload_length"`
	PayloadHex    string `json:"payload_hex"`
	SrcIP         string `json:"src_ip,omitempty"`
	DstIP         string `json:"dst_ip,omitempty"`
}

type SummaryMetadata struct {
	RunID           string `json:"run_id"`
	TotalPackets    int    `json:"total_packets"`
	GenerationTime  string `json:"generation_time"`
	SrcIP           string `json:"src_ip,omitempty"`
	DstIP           string `json:"dst_ip,omitempty"`
	OutputDirectory string `json:"output_directory,omitempty"`
}

type SummaryStatistics struct {
	TotalBytes        int     `json:"total_bytes"`
	AveragePacketSize float64 `json:"average_packet_size"`
	MinPacketSize     int     `json:"min_packet_size"`
	MaxPacketSize     int     `json:"max_packet_size"`
}

type SummaryDocument struct {
	Metadata   SummaryMetadata   `json:"metadata"`
	Packets    []SummaryEntry    `json:"packets"`
	Statistics SummaryStatistics `json:"statistics"`
}

// Summary collects every transmitted packet of a run for the JSON results
// file. It is safe for concurrent use.
type Summary struct {
	mu      sync.Mutex
	runID   string
	src     string
	dst     string
	outDir  string
	entries []SummaryEntry
	now     func() time.Time
}

// NewSummary starts a run with a fresh random run ID. src and dst are the
// IPv6 endpoints recorded with each packet; either may be empty.
func NewSummary(outDir, src, dst string) *Summary {
	return &Summary{
		runID:  uuid.NewString(),
		src:    src,
		dst:    dst,
		outDir: outDir,
		now:    time.Now,
	}
}

func (s *Summary) RunID() string { return s.runID }

func (s *Summary) Send(pkt []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, SummaryEntry{
		Sequence:      len(s.entries) + 1,
		Timestamp:     s.now().Format(time.RFC3339Nano),
		PayloadLength: len(pkt),
		PayloadHex:    strings.ToUpper(hex.EncodeToString(pkt)),
		SrcIP:         s.src,
		DstIP:         s.dst,
	})
	return nil
}

func (s *Summary) Close() error { return nil }

func (s *Summary) String() string { return "summary" }

func (s *Summary) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Document snapshots the collected packets and their size statistics.
func (s *Summary) Document() SummaryDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := SummaryDocument{
		Metadata: SummaryMetadata{
			RunID:           s.runID,
			TotalPackets:    len(s.entries),
			GenerationTime:  s.now().Format(time.RFC3339Nano),
			SrcIP:           s.src,
			DstIP:           s.dst,
			OutputDirectory: s.outDir,
		},
		Packets: append([]SummaryEntry{}, s.entries...),
	}
	for i, e := range s.entries {
		doc.Statistics.TotalBytes += e.PayloadLength
		if i == 0 || e.PayloadLength < doc.Statistics.MinPacketSize {
			doc.Statistics.MinPacketSize = e.PayloadLength
		}
		if e.PayloadLength > doc.Statistics.MaxPacketSize {
			doc.Statistics.MaxPacketSize = e.PayloadLength
		}
	}
	if n := len(s.entries); n > 0 {
		doc.Statistics.AveragePacketSize = float64(doc.Statistics.TotalBytes) / float64(n)
	}
	return doc
}

// WriteFile writes the document as indented JSON.
func (s *Summary) WriteFile(path string) error {
	b, err := json.MarshalIndent(s.Document(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
