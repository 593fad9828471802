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

package udptransport

import (
	"net"
	"net/netip"
	"testing"
	"time"
)

func TestSendAndTryRecvRoundTrip(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer serverConn.Close()

	serverAddr := serverConn.LocalAddr().(*net.UDPAddr)
	sink := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(serverAddr.Port))

	tr, err := Dial(sink, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	if !tr.IsUp() {
		t.Fatalf("expected transport up immediately after dial")
	}

	if err := tr.Send([]byte{1, 2, 3}); err != nil {
		t.Fatalf("send: %v", err)
	}

	buf := make([]byte, 16)
	serverConn.SetReadDeadline(time.Now().Add(time.Second))
	n, clientAddr, err := serverConn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 bytes, got %d", n)
	}

	if _, err := serverConn.WriteToUDP([]byte{9, 8, 7, 6}, clientAddr); err != nil {
		t.Fatalf("server write: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if frame, ok := tr.TryRecv(); ok {
			if len(frame) != 4 || frame[0] != 9 {
				t.Fatalf("unexpected frame: %v", frame)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for reply frame")
}

func TestLinkOpenAndSyncIsIdempotent(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer serverConn.Close()

	serverAddr := serverConn.LocalAddr().(*net.UDPAddr)
	sink := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(serverAddr.Port))

	available := true
	link := &Link{Sink: sink, Available: func() bool { return available }}

	if !link.IsAvailable() {
		t.Fatalf("expected available")
	}
	if err := link.OpenAndSync(); err != nil {
		t.Fatalf("first OpenAndSync: %v", err)
	}
	first := link.Transport()
	if first == nil {
		t.Fatalf("expected a transport after OpenAndSync")
	}
	if err := link.OpenAndSync(); err != nil {
		t.Fatalf("second OpenAndSync: %v", err)
	}
	if link.Transport() != first {
		t.Fatalf("expected OpenAndSync to reuse the existing transport")
	}
}
