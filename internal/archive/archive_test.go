package archive

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexWriter_Format(t *testing.T) {
	var buf bytes.Buffer
	hw := NewHexWriter(&buf)
	at := time.Date(2025, 5, 1, 8, 0, 12, 0, time.Local)
	require.NoError(t, hw.WritePacket(at, []byte{0x30, 0x0a, 0xff}))
	require.NoError(t, hw.WritePacket(at, []byte{0x01}))
	require.NoError(t, hw.Close())

	want := "#1 [2025-05-01 08:00:12] len=3\n300AFF\n\n" +
		"#2 [2025-05-01 08:00:12] len=1\n01\n\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 2, hw.Count())

	assert.Error(t, hw.WritePacket(at, []byte{0x01}), "closed")
}

func TestHexWriter_RejectsEmpty(t *testing.T) {
	hw := NewHexWriter(&bytes.Buffer{})
	assert.Error(t, hw.WritePacket(time.Now(), nil))
	assert.Equal(t, 0, hw.Count())
}

func TestHexLog_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.hex")
	hw, err := CreateHexWriter(path)
	require.NoError(t, err)

	packets := [][]byte{{0x30, 0x03, 0x02, 0x01, 0x01}, {0xde, 0xad, 0xbe, 0xef}}
	for _, p := range packets {
		require.NoError(t, hw.Send(p))
	}
	require.NoError(t, hw.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	entries, ignored, err := NewHexReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 0, ignored)
	require.Len(t, entries, 2)
	for i, e := range entries {
		b, err := e.Bytes()
		require.NoError(t, err)
		assert.Equal(t, packets[i], b)
	}
	assert.Equal(t, 2, entries[0].Line)
	assert.Equal(t, 5, entries[1].Line)
}

func TestHexReader_SkipsNonHex(t *testing.T) {
	in := strings.NewReader("# header\n\nabcDEF\nnot hex\n0\n  0102  \n")
	entries, ignored, err := NewHexReader(in).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 1, ignored)
	require.Len(t, entries, 3)
	assert.Equal(t, "abcDEF", entries[0].Hex)
	assert.Equal(t, "0102", entries[2].Hex)

	_, err = entries[1].Bytes()
	assert.Error(t, err, "odd length")
}

func TestRawPacket_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkt.bin")
	pkt := []byte{0x30, 0x03, 0x02, 0x01, 0x01}
	require.NoError(t, WriteRawPacket(path, pkt))

	got, err := ReadRawPacket(path)
	require.NoError(t, err)
	assert.Equal(t, pkt, got)

	assert.Error(t, WriteRawPacket(path, nil))

	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = ReadRawPacket(empty)
	assert.Error(t, err)

	big := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxRawPacket+1), 0o644))
	_, err = ReadRawPacket(big)
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	at := time.Date(2025, 5, 1, 13, 4, 5, 0, time.UTC)
	p, err := OutputPath("out", HexLogPattern, at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "stamp_encoded_20250501_130405.hex"), p)

	p, err = OutputPath("", SummaryPattern, at)
	require.NoError(t, err)
	assert.Equal(t, "stamp_results_20250501_130405.json", p)

	_, err = OutputPath("out", "a/%Y", at)
	assert.Error(t, err)

	assert.Equal(t, "stamp_encoded_20250501_130405", Stem("/tmp/run/stamp_encoded_20250501_130405.hex"))
}

func TestSummary_Document(t *testing.T) {
	s := NewSummary("IGS-Data/STAMP-Output", "2001:db8:1::1", "2001:db8:2::2")
	_, err := uuid.Parse(s.RunID())
	require.NoError(t, err)

	require.NoError(t, s.Send(make([]byte, 68)))
	require.NoError(t, s.Send(make([]byte, 70)))
	require.NoError(t, s.Send(make([]byte, 66)))

	doc := s.Document()
	assert.Equal(t, 3, doc.Metadata.TotalPackets)
	assert.Equal(t, s.RunID(), doc.Metadata.RunID)
	assert.Equal(t, 204, doc.Statistics.TotalBytes)
	assert.Equal(t, 68.0, doc.Statistics.AveragePacketSize)
	assert.Equal(t, 66, doc.Statistics.MinPacketSize)
	assert.Equal(t, 70, doc.Statistics.MaxPacketSize)
	assert.Equal(t, 3, doc.Packets[2].Sequence)
	assert.Equal(t, "2001:db8:2::2", doc.Packets[0].DstIP)
	assert.Equal(t, strings.Repeat("00", 68), doc.Packets[0].PayloadHex)
}

func TestSummary_WriteFileEmpty(t *testing.T) {
	s := NewSummary("", "", "")
	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, s.WriteFile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc SummaryDocument
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, 0, doc.Metadata.TotalPackets)
	assert.Empty(t, doc.Packets)
	assert.Equal(t, SummaryStatistics{}, doc.Statistics)
}

func TestRawWriter_OneFilePerPacket(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "raw")
	w, err := NewRawWriter(dir)
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2025, 5, 1, 0, 0, 12, 0, time.UTC) }

	require.NoError(t, w.Send([]byte{0x30, 0x00}))
	require.NoError(t, w.Send([]byte{0x30, 0x01}))
	assert.Equal(t, 2, w.Count())

	got, err := ReadRawPacket(filepath.Join(dir, "stamp_20250501_000012_000002.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x01}, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
