// Package udp sends each STAMP payload as one UDP datagram.
package udp

import (
	"fmt"
	"net"
	"sync/atomic"

	"gnss-stamp/internal/ipv6"
)

type udpConn interface {
	Write([]byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

// Config selects the destination and optional IPv6 wrapping.
type Config struct {
	Dest string
	// Encapsulate, when set, prefixes every payload with an IPv6 header
	// (next header 254) before it is sent.
	Encapsulate *ipv6.Endpoints
}

type Broadcaster struct {
	dest  string
	conn  udpConn
	wrap  *ipv6.Endpoints
	sent  atomic.Uint64
	bytes atomic.Uint64
}

func NewBroadcaster(cfg Config) (*Broadcaster, error) {
	return newBroadcaster(cfg, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newBroadcaster(cfg Config, resolve resolveFunc, dial dialFunc) (*Broadcaster, error) {
	addr, err := resolve("udp", cfg.Dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &Broadcaster{dest: cfg.Dest, conn: conn, wrap: cfg.Encapsulate}, nil
}

// Send writes payload as a single datagram. Empty payloads are ignored.
func (b *Broadcaster) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if b.wrap != nil {
		p, err := b.wrap.Encapsulate(payload)
		if err != nil {
			return err
		}
		payload = p
	}
	n, err := b.conn.Write(payload)
	if err != nil {
		return fmt.Errorf("udp send to %s: %w", b.dest, err)
	}
	b.sent.Add(1)
	b.bytes.Add(uint64(n))
	return nil
}

// Sent reports datagrams and bytes written so far.
func (b *Broadcaster) Sent() (datagrams, bytes uint64) {
	return b.sent.Load(), b.bytes.Load()
}

func (b *Broadcaster) String() string { return "udp:" + b.dest }

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
