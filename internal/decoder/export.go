package decoder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gnss-stamp/internal/archive"
	"gnss-stamp/internal/stamp"
)

// FormatVersion identifies the layout of the exported JSON document.
const FormatVersion = "2.0.0"

type Document struct {
	Metadata Metadata       `json:"metadata"`
	Packets  []PacketResult `json:"decoded_packets"`
}

type Metadata struct {
	DecoderVersion  string     `json:"decoder_version"`
	DecodeTimestamp string     `json:"decode_timestamp"`
	RunID           string     `json:"run_id,omitempty"`
	SourceFileInfo  SourceInfo `json:"source_file_info"`
	Statistics      Statistics `json:"statistics"`
}

type SourceInfo struct {
	SourceFile   string `json:"source_file"`
	FileType     string `json:"file_type"`
	FileSize     int64  `json:"file_size"`
	FileModified string `json:"file_modified"`
	LogFile      string `json:"log_file,omitempty"`
}

type Statistics struct {
	Stats
	Rate float64 `json:"success_rate"`
}

type PacketResult struct {
	PacketIndex int            `json:"packet_index"`
	Version     uint8          `json:"version"`
	Timestamp   TimestampInfo  `json:"timestamp"`
	Position    PositionInfo   `json:"position"`
	DeviceInfo  DeviceInfo     `json:"device_info"`
	SyncInfo    SyncInfo       `json:"sync_info"`
	Validation  ValidationInfo `json:"validation"`
}

type TimestampInfo struct {
	Sec         int64  `json:"timestamp_sec"`
	Nsec        uint32 `json:"timestamp_nsec"`
	DatetimeUTC string `json:"datetime_utc"`
}

type PositionInfo struct {
	Latitude  stamp.Float `json:"latitude"`
	Longitude stamp.Float `json:"longitude"`
	Altitude  stamp.Float `json:"altitude"`
}

type DeviceInfo struct {
	DeviceID string `json:"device_id"`
	LinkID   uint16 `json:"link_id"`
}

type SyncInfo struct {
	SyncStatus int32  `json:"sync_status"`
	Name       string `json:"sync_status_name"`
}

type ValidationInfo struct {
	CRC      string `json:"crc"`
	CRCValid bool   `json:"crc_valid"`
}

func packetResult(d Decoded) PacketResult {
	r := d.Record
	return PacketResult{
		PacketIndex: d.Index,
		Version:     r.Version,
		Timestamp: TimestampInfo{
			Sec:         r.TimestampSec,
			Nsec:        r.TimestampNsec,
			DatetimeUTC: r.Timestamp(),
		},
		Position: PositionInfo{
			Latitude:  stamp.Float(r.Latitude),
			Longitude: stamp.Float(r.Longitude),
			Altitude:  stamp.Float(r.Altitude),
		},
		DeviceInfo: DeviceInfo{DeviceID: r.DeviceID.String(), LinkID: r.LinkID},
		SyncInfo:   SyncInfo{SyncStatus: int32(r.SyncStatus), Name: r.SyncStatus.String()},
		Validation: ValidationInfo{CRC: fmt.Sprintf("%04X", r.CRC), CRCValid: r.CRCValid},
	}
}

// Document assembles the export of the run so far.
func (b *Batch) Document(now time.Time) Document {
	packets := make([]PacketResult, 0, len(b.decoded))
	for _, d := range b.decoded {
		packets = append(packets, packetResult(d))
	}
	src := b.source
	info := SourceInfo{
		SourceFile: src.Path,
		FileType:   src.Type,
		FileSize:   src.Size,
		LogFile:    src.LogFile,
	}
	if !src.Modified.IsZero() {
		info.FileModified = src.Modified.Format(time.RFC3339)
	}
	return Document{
		Metadata: Metadata{
			DecoderVersion:  FormatVersion,
			DecodeTimestamp: now.UTC().Format(time.RFC3339Nano),
			RunID:           b.RunID,
			SourceFileInfo:  info,
			Statistics:      Statistics{Stats: b.stats, Rate: b.stats.SuccessRate()},
		},
		Packets: packets,
	}
}

// WriteJSON writes the run document to path, indented.
func (b *Batch) WriteJSON(path string, now time.Time) error {
	data, err := json.MarshalIndent(b.Document(now), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Per-run output names: decode_<stem>_<time>.log and decoded_<stem>_<time>.json.
func LogPath(dir, input string, t time.Time) (string, error) {
	return archive.OutputPath(dir, "decode_"+escapeStem(input)+"_%Y%m%d_%H%M%S.log", t)
}

func JSONPath(dir, input string, t time.Time) (string, error) {
	return archive.OutputPath(dir, "decoded_"+escapeStem(input)+"_%Y%m%d_%H%M%S.json", t)
}

func escapeStem(input string) string {
	return strings.ReplaceAll(archive.Stem(input), "%", "%%")
}
