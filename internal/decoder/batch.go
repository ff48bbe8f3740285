package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"gnss-stamp/internal/archive"
	"gnss-stamp/internal/ipv6"
	"gnss-stamp/internal/stamp"
	"gnss-stamp/internal/store"
)

// Input file types.
const (
	TypeHex    = "hex"
	TypeBinary = "binary"
)

// Stats are the counters of one decode run.
type Stats struct {
	Total        int `json:"total_packets"`
	Success      int `json:"successful_decodes"`
	CRCFailures  int `json:"crc_failures"`
	FormatErrors int `json:"format_errors"`
	OtherErrors  int `json:"other_errors"`
	// OutOfBounds counts verified records whose coordinates fall outside
	// [-90,90]/[-180,180]. They are still counted as successes.
	OutOfBounds int `json:"out_of_bounds"`
}

// SuccessRate is the percentage of packets decoded, 0 when there were none.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total) * 100
}

// Decoded is one verified packet of a run.
type Decoded struct {
	Index  int
	Raw    []byte
	Record stamp.Record
}

// Source describes the file a run read from.
type Source struct {
	Path     string
	Type     string
	Size     int64
	Modified time.Time
	LogFile  string
}

// Batch decodes the packets of one input file. It is not safe for
// concurrent use.
type Batch struct {
	// IPv6 strips and checks an outer IPv6 header before decoding.
	IPv6 bool
	// Store, when set, receives every verified record under RunID.
	Store *store.Store
	RunID string
	// OnPacket is called for every verified packet, e.g. for verbose output.
	OnPacket func(Decoded)
	Log      *log.Logger

	source  Source
	stats   Stats
	decoded []Decoded
}

func (b *Batch) logger() *log.Logger {
	if b.Log == nil {
		return log.Default()
	}
	return b.Log
}

func (b *Batch) Stats() Stats { return b.stats }

func (b *Batch) Source() Source { return b.source }

func (b *Batch) Decoded() []Decoded { return b.decoded }

// DecodeFile reads path as typ (TypeHex or TypeBinary) and decodes every
// packet in it.
func (b *Batch) DecodeFile(ctx context.Context, path, typ string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	b.source.Path = abs
	b.source.Type = typ
	b.source.Size = fi.Size()
	b.source.Modified = fi.ModTime()

	b.logger().Info("decoding file", "path", path, "type", typ, "size", fi.Size())
	switch typ {
	case TypeHex:
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return b.DecodeHex(ctx, f)
	case TypeBinary:
		raw, err := archive.ReadRawPacket(path)
		if err != nil {
			return err
		}
		b.stats.Total++
		_, _ = b.decodePacket(ctx, 1, raw)
		return nil
	default:
		return fmt.Errorf("unknown input type %q", typ)
	}
}

// SetLogFile records the per-run log path in the source metadata.
func (b *Batch) SetLogFile(path string) { b.source.LogFile = path }

// DecodeHex decodes every hex packet line of r. Comment, blank and non-hex
// lines are skipped.
func (b *Batch) DecodeHex(ctx context.Context, r io.Reader) error {
	entries, ignored, err := archive.NewHexReader(r).ReadAll()
	if err != nil {
		return err
	}
	if ignored > 0 {
		b.logger().Debug("skipped non-hex lines", "count", ignored)
	}
	b.logger().Info("hex packets found", "count", len(entries))
	b.stats.Total += len(entries)

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := e.Bytes()
		if err != nil {
			b.stats.OtherErrors++
			b.logger().Error("invalid hex line", "packet", i+1, "line", e.Line, "err", err)
			continue
		}
		_, _ = b.decodePacket(ctx, i+1, raw)
	}
	return nil
}

// Decode verifies a single packet and accounts for it in the run statistics.
func (b *Batch) Decode(ctx context.Context, raw []byte) (stamp.Record, error) {
	b.stats.Total++
	return b.decodePacket(ctx, b.stats.Total, raw)
}

func (b *Batch) decodePacket(ctx context.Context, index int, raw []byte) (stamp.Record, error) {
	logger := b.logger()
	payload := raw
	if b.IPv6 {
		hdr, p, err := ipv6.Extract(raw)
		if err != nil {
			b.stats.OtherErrors++
			logger.Error("ipv6 header rejected", "packet", index, "err", err)
			return stamp.Record{}, err
		}
		logger.Debug("ipv6 header", "packet", index, "src", hdr.Src, "dst", hdr.Dst, "hop_limit", hdr.HopLimit)
		payload = p
	}

	rec, err := stamp.Decode(payload)
	if err != nil {
		var crcErr *stamp.CRCError
		switch {
		case errors.As(err, &crcErr):
			b.stats.CRCFailures++
			logger.Error("crc check failed", "packet", index,
				"stored", fmt.Sprintf("%X", crcErr.Stored), "computed", fmt.Sprintf("%X", crcErr.Computed))
		case errors.Is(err, stamp.ErrFormat):
			b.stats.FormatErrors++
			logger.Error("malformed packet", "packet", index, "len", len(payload), "err", err)
		default:
			b.stats.OtherErrors++
			logger.Error("decode failed", "packet", index, "err", err)
		}
		return stamp.Record{}, err
	}

	if !rec.InBounds() {
		b.stats.OutOfBounds++
		logger.Warn("coordinates out of range", "packet", index, "lat", rec.Latitude, "lon", rec.Longitude)
	}
	if !rec.SyncStatus.Known() {
		logger.Warn("unrecognized sync status", "packet", index, "sync", rec.SyncStatus)
	}

	if b.Store != nil {
		if err := b.Store.InsertRecord(ctx, b.RunID, index, payload, rec); err != nil {
			b.stats.OtherErrors++
			logger.Error("store record failed", "packet", index, "err", err)
			return stamp.Record{}, err
		}
	}

	b.stats.Success++
	d := Decoded{Index: index, Raw: payload, Record: rec}
	b.decoded = append(b.decoded, d)
	logger.Debug("packet verified", "packet", index, "time", rec.Timestamp(), "device", rec.DeviceID, "crc", fmt.Sprintf("%04X", rec.CRC))
	if b.OnPacket != nil {
		b.OnPacket(d)
	}
	return rec, nil
}

// Finish logs the final statistics and stores them when a store is set.
func (b *Batch) Finish(ctx context.Context) error {
	s := b.stats
	b.logger().Info("decode finished",
		"success", s.Success,
		"total", s.Total,
		"rate", fmt.Sprintf("%.1f%%", s.SuccessRate()),
		"crc_failures", s.CRCFailures,
		"format_errors", s.FormatErrors,
		"other_errors", s.OtherErrors,
	)
	if b.Store == nil {
		return nil
	}
	return b.Store.FinishRun(ctx, b.RunID, store.RunStats{
		Total:        s.Total,
		Success:      s.Success,
		CRCFailures:  s.CRCFailures,
		FormatErrors: s.FormatErrors,
		OtherErrors:  s.OtherErrors,
	})
}
