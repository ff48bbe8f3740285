package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"gnss-stamp/internal/decoder"
	"gnss-stamp/internal/store"
)

type options struct {
	input   string
	typ     string
	outDir  string
	verbose bool
	debug   bool
	ipv6    bool
	sqlite  string
}

func main() {
	var o options
	pflag.StringVarP(&o.typ, "type", "t", decoder.TypeHex, "Input file type: hex or binary.")
	pflag.StringVarP(&o.outDir, "output-dir", "d", "STAMP-Decoded", "Output directory for the log and JSON files.")
	pflag.BoolVarP(&o.verbose, "verbose", "v", false, "Print every decoded packet.")
	pflag.BoolVar(&o.debug, "debug", false, "Enable debug logging.")
	pflag.BoolVar(&o.ipv6, "ipv6", false, "Input packets carry an outer IPv6 header.")
	pflag.StringVar(&o.sqlite, "sqlite", "", "Also store verified records in this SQLite database.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - decode STAMP packets and verify their CRC.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] INPUT\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}
	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}
	o.input = pflag.Arg(0)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, o, os.Stdout, os.Stderr))
}

// run decodes one input file and returns the process exit code.
func run(ctx context.Context, o options, stdout, stderr io.Writer) int {
	if o.typ != decoder.TypeHex && o.typ != decoder.TypeBinary {
		fmt.Fprintf(stderr, "unknown type %q (want hex or binary)\n", o.typ)
		return 2
	}
	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		fmt.Fprintf(stderr, "output dir: %v\n", err)
		return 1
	}

	started := time.Now()
	logPath, err := decoder.LogPath(o.outDir, o.input, started)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		fmt.Fprintf(stderr, "log file: %v\n", err)
		return 1
	}
	defer logFile.Close()

	level := log.WarnLevel
	switch {
	case o.debug:
		level = log.DebugLevel
	case o.verbose:
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(io.MultiWriter(stderr, logFile), log.Options{
		Level:           level,
		Prefix:          "stamp-decode",
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})

	b := &decoder.Batch{IPv6: o.ipv6, RunID: uuid.NewString(), Log: logger}
	b.SetLogFile(logPath)
	if o.verbose {
		b.OnPacket = func(d decoder.Decoded) { printPacket(stdout, d) }
	}

	if o.sqlite != "" {
		st, err := store.Open(o.sqlite, logger)
		if err != nil {
			fmt.Fprintf(stderr, "sqlite: %v\n", err)
			return 1
		}
		defer st.Close()
		if err := st.BeginRun(ctx, b.RunID, o.input); err != nil {
			fmt.Fprintf(stderr, "sqlite: %v\n", err)
			return 1
		}
		b.Store = st
	}

	fmt.Fprintf(stdout, "input: %s\ntype: %s\noutput dir: %s\n", o.input, o.typ, o.outDir)
	if err := b.DecodeFile(ctx, o.input, o.typ); err != nil {
		logger.Error("decode failed", "input", o.input, "err", err)
		return 1
	}
	if err := b.Finish(ctx); err != nil {
		logger.Error("finishing run", "err", err)
	}

	s := b.Stats()
	if s.Success == 0 {
		logger.Error("no packet decoded", "total", s.Total, "log", logPath)
		return 1
	}

	jsonPath, err := decoder.JSONPath(o.outDir, o.input, time.Now())
	if err == nil {
		err = b.WriteJSON(jsonPath, time.Now())
	}
	if err != nil {
		logger.Error("export failed", "err", err)
		return 1
	}

	fmt.Fprintf(stdout, "decoded: %d/%d (%.1f%%)\n", s.Success, s.Total, s.SuccessRate())
	fmt.Fprintf(stdout, "crc_failures: %d\nformat_errors: %d\nother_errors: %d\n", s.CRCFailures, s.FormatErrors, s.OtherErrors)
	fmt.Fprintf(stdout, "json: %s\nlog: %s\n", jsonPath, logPath)
	return 0
}

func printPacket(w io.Writer, d decoder.Decoded) {
	r := d.Record
	fmt.Fprintf(w, "packet #%d (%d bytes)\n", d.Index, len(d.Raw))
	fmt.Fprintf(w, "  position: lat=%.8f lon=%.8f alt=%.3fm\n", r.Latitude, r.Longitude, r.Altitude)
	fmt.Fprintf(w, "  time:     %d.%09d  %s\n", r.TimestampSec, r.TimestampNsec, r.Timestamp())
	fmt.Fprintf(w, "  device:   %s link=%d\n", r.DeviceID, r.LinkID)
	fmt.Fprintf(w, "  sync:     %d (%s)\n", int32(r.SyncStatus), r.SyncStatus)
	fmt.Fprintf(w, "  crc:      %04X version=%d\n", r.CRC, r.Version)
}
