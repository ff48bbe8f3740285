// Package ipv6 wraps STAMP payloads in a bare IPv6 header and unwraps them.
//
// The header uses next header 254 (reserved for experimentation, RFC 3692)
// so receivers can tell a STAMP payload from regular traffic.
package ipv6

import (
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// NextHeaderSTAMP is the IPv6 next-header value carried by STAMP datagrams.
	NextHeaderSTAMP = layers.IPProtocol(254)
	// HeaderLen is the fixed IPv6 header size.
	HeaderLen = 40

	defaultHopLimit = 64
)

var (
	ErrNotSTAMP  = errors.New("ipv6: next header is not STAMP")
	ErrTruncated = errors.New("ipv6: payload length does not match packet")
)

// Endpoints is a validated source/destination pair.
type Endpoints struct {
	Src net.IP
	Dst net.IP
}

// ParseEndpoints parses two IPv6 literals. IPv4 addresses are rejected.
func ParseEndpoints(src, dst string) (Endpoints, error) {
	s, err := parseV6(src)
	if err != nil {
		return Endpoints{}, fmt.Errorf("src: %w", err)
	}
	d, err := parseV6(dst)
	if err != nil {
		return Endpoints{}, fmt.Errorf("dst: %w", err)
	}
	return Endpoints{Src: s, Dst: d}, nil
}

func parseV6(s string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() != nil {
		return nil, fmt.Errorf("%q is not an IPv6 address", s)
	}
	return ip, nil
}

// Encapsulate prefixes payload with an IPv6 header from e.Src to e.Dst.
func (e Endpoints) Encapsulate(payload []byte) ([]byte, error) {
	if len(payload) == 0 || len(payload) > 0xFFFF {
		return nil, fmt.Errorf("ipv6: payload size %d out of range", len(payload))
	}
	hdr := &layers.IPv6{
		Version:    6,
		NextHeader: NextHeaderSTAMP,
		HopLimit:   defaultHopLimit,
		SrcIP:      e.Src,
		DstIP:      e.Dst,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, hdr, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("ipv6: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// Header is the subset of the IPv6 header callers care about.
type Header struct {
	Src      net.IP
	Dst      net.IP
	HopLimit uint8
	Length   uint16
}

// Extract validates the IPv6 header of pkt and returns it with the STAMP
// payload. The returned payload aliases pkt.
func Extract(pkt []byte) (Header, []byte, error) {
	if len(pkt) < HeaderLen {
		return Header{}, nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncated, len(pkt), HeaderLen)
	}
	var ip layers.IPv6
	if err := ip.DecodeFromBytes(pkt, gopacket.NilDecodeFeedback); err != nil {
		return Header{}, nil, fmt.Errorf("ipv6: decode: %w", err)
	}
	if ip.Version != 6 {
		return Header{}, nil, fmt.Errorf("ipv6: version %d", ip.Version)
	}
	if ip.NextHeader != NextHeaderSTAMP {
		return Header{}, nil, fmt.Errorf("%w: got %d", ErrNotSTAMP, ip.NextHeader)
	}
	if int(ip.Length) != len(pkt)-HeaderLen {
		return Header{}, nil, fmt.Errorf("%w: header says %d, have %d", ErrTruncated, ip.Length, len(pkt)-HeaderLen)
	}
	h := Header{Src: ip.SrcIP, Dst: ip.DstIP, HopLimit: ip.HopLimit, Length: ip.Length}
	return h, pkt[HeaderLen:], nil
}
