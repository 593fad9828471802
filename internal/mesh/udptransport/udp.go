/*
 * FANET mesh routing core. Copyright (C) 2021-present the fanet-mesh authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

// Package udptransport is the infrastructure-path half of the dual
// transport (§6.3): frames addressed to the sink travel over UDP when
// the node's upstream Wi-Fi link is up, instead of radio hops. There
// is no third-party UDP client library in the example corpus worth
// adopting here; net.UDPConn is the idiomatic choice and is what even
// library-heavy stacks like caddy fall back to for raw datagram I/O
// (see SPEC_FULL.md §11.2).
package udptransport

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Transport implements mesh.UDPTransport over a single UDP socket
// dialed to the sink's address. Received datagrams are buffered by a
// background reader goroutine so TryRecv is non-blocking, matching
// the cooperative-tick model the core's event loop expects (§5).
type Transport struct {
	conn   *net.UDPConn
	sink   netip.AddrPort
	logger *zap.Logger

	up atomic.Bool

	mu   sync.Mutex
	inbox [][]byte

	closed chan struct{}
}

// Dial opens a UDP socket bound locally and connected to sink, and
// starts the background reader. The connection is considered "up"
// from the moment Dial succeeds; IsUp reflects local socket health
// only, not whether the sink is actually reachable (§4.10 notes this
// is a known limitation without a reply-based liveness check).
func Dial(sink netip.AddrPort, logger *zap.Logger) (*Transport, error) {
	conn, err := net.DialUDP("udp", nil, net.UDPAddrFromAddrPort(sink))
	if err != nil {
		return nil, fmt.Errorf("udptransport: dial %s: %w", sink, err)
	}

	t := &Transport{
		conn:   conn,
		sink:   sink,
		logger: logger,
		closed: make(chan struct{}),
	}
	t.up.Store(true)

	go t.readLoop()

	return t, nil
}

func (t *Transport) readLoop() {
	buf := make([]byte, 2048)
	for {
		select {
		case <-t.closed:
			return
		default:
		}

		n, err := t.conn.Read(buf)
		if err != nil {
			if t.logger != nil {
				t.logger.Debug("udp read error, marking link down", zap.Error(err))
			}
			t.up.Store(false)
			return
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])

		t.mu.Lock()
		t.inbox = append(t.inbox, frame)
		t.mu.Unlock()
	}
}

// Send writes frame to the sink. A write failure marks the transport
// down, so IsUp reports false; the core's upstream flag is driven
// separately, by the scheduler's IsAvailable probe.
func (t *Transport) Send(frame []byte) error {
	if _, err := t.conn.Write(frame); err != nil {
		t.up.Store(false)
		return fmt.Errorf("udptransport: send: %w", err)
	}
	return nil
}

// TryRecv returns the oldest buffered frame, if any, without
// blocking (§6.3's non-blocking collaborator contract).
func (t *Transport) TryRecv() ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.inbox) == 0 {
		return nil, false
	}
	frame := t.inbox[0]
	t.inbox = t.inbox[1:]
	return frame, true
}

// IsUp reports the last-known health of the local socket.
func (t *Transport) IsUp() bool {
	return t.up.Load()
}

// Close releases the underlying socket and stops the reader goroutine.
func (t *Transport) Close() error {
	close(t.closed)
	return t.conn.Close()
}

// markUp is used by the scheduler after a successful reconnect.
func (t *Transport) markUp() {
	t.up.Store(true)
}

// Link adapts a dial target to mesh.UpstreamLink (§4.10). Wi-Fi
// association itself is the external collaborator named out of scope
// in §1; the Available func is how the caller plugs that signal in
// (e.g. reading an OS-reported link-state flag). Link owns the
// resulting *Transport once OpenAndSync succeeds.
type Link struct {
	Sink      netip.AddrPort
	Logger    *zap.Logger
	Available func() bool

	mu        sync.Mutex
	transport *Transport
}

// IsAvailable reports whether the underlying Wi-Fi association is up,
// per the caller-supplied probe.
func (l *Link) IsAvailable() bool {
	if l.Available == nil {
		return false
	}
	return l.Available()
}

// OpenAndSync dials the UDP socket to the sink. There is no separate
// time-sync handshake in this transport (§4.10 notes clock sync is
// out of scope); dialing successfully is the whole of "sync" here.
func (l *Link) OpenAndSync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.transport != nil {
		l.transport.markUp()
		return nil
	}

	t, err := Dial(l.Sink, l.Logger)
	if err != nil {
		return err
	}
	l.transport = t
	return nil
}

// Transport returns the live UDP transport, or nil before the first
// successful OpenAndSync.
func (l *Link) Transport() *Transport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transport
}

// Send implements mesh.UDPTransport by delegating to the dialed
// transport, letting callers wire a *Link in directly before the
// first successful OpenAndSync.
func (l *Link) Send(frame []byte) error {
	t := l.Transport()
	if t == nil {
		return fmt.Errorf("udptransport: link not yet connected")
	}
	return t.Send(frame)
}

// TryRecv implements mesh.UDPTransport; it reports no frame available
// until a transport has been dialed.
func (l *Link) TryRecv() ([]byte, bool) {
	t := l.Transport()
	if t == nil {
		return nil, false
	}
	return t.TryRecv()
}

// IsUp implements mesh.UDPTransport.
func (l *Link) IsUp() bool {
	t := l.Transport()
	return t != nil && t.IsUp()
}
