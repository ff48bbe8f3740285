package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"gnss-stamp/internal/archive"
	"gnss-stamp/internal/gps"
	"gnss-stamp/internal/ipv6"
	"gnss-stamp/internal/stamp"
)

type options struct {
	rmc            string
	gga            string
	deviceID       string
	linkID         int
	sync           string
	version        int
	output         string
	verifyChecksum bool
	ipv6           bool
	src            string
	dst            string
}

func main() {
	var o options
	pflag.StringVar(&o.rmc, "rmc", "", "RMC sentence.")
	pflag.StringVar(&o.gga, "gga", "", "GGA sentence.")
	pflag.StringVar(&o.deviceID, "device-id", "DEADBEEFCAFEBABE", "Device ID, 16 hex digits.")
	pflag.IntVar(&o.linkID, "link-id", 1024, "Link ID, 0-65535.")
	pflag.StringVar(&o.sync, "sync", stamp.SyncBeidouLocked.String(), "Sync status name.")
	pflag.IntVar(&o.version, "version", stamp.DefaultVersion, "Packet format version, 0-255.")
	pflag.StringVarP(&o.output, "output", "o", "", "Also write the raw packet to this file.")
	pflag.BoolVar(&o.verifyChecksum, "verify-checksum", false, "Require valid NMEA *hh checksums.")
	pflag.BoolVar(&o.ipv6, "ipv6", false, "Wrap the packet in an IPv6 header before output.")
	pflag.StringVar(&o.src, "src", "2001:db8:1::1", "IPv6 source address (with --ipv6).")
	pflag.StringVar(&o.dst, "dst", "2001:db8:2::2", "IPv6 destination address (with --ipv6).")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - encode one RMC/GGA pair into a STAMP packet.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s --rmc SENTENCE --gga SENTENCE [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if err := run(o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "stamp-encode: %v\n", err)
		os.Exit(1)
	}
}

func run(o options, stdout io.Writer) error {
	if o.rmc == "" || o.gga == "" {
		return fmt.Errorf("both --rmc and --gga are required")
	}
	dev, err := hex.DecodeString(o.deviceID)
	if err != nil {
		return fmt.Errorf("--device-id: %w", err)
	}
	sync, err := stamp.ParseSyncStatus(o.sync)
	if err != nil {
		return fmt.Errorf("--sync: %w", err)
	}
	if o.version < 0 || o.version > 255 {
		return fmt.Errorf("--version must be in [0, 255]")
	}

	fix, err := gps.ParseOptions{VerifyChecksum: o.verifyChecksum}.ParsePair(o.rmc, o.gga)
	if err != nil {
		return err
	}
	session := stamp.NewSession(dev, o.linkID, sync)
	session.Version = uint8(o.version)
	pkt, err := stamp.Encode(fix, session)
	if err != nil {
		return err
	}

	if o.ipv6 {
		ep, err := ipv6.ParseEndpoints(o.src, o.dst)
		if err != nil {
			return err
		}
		if pkt, err = ep.Encapsulate(pkt); err != nil {
			return err
		}
	}

	if o.output != "" {
		if err := archive.WriteRawPacket(o.output, pkt); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(stdout, strings.ToUpper(hex.EncodeToString(pkt)))
	return err
}
