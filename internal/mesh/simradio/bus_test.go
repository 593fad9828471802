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

package simradio

import (
	"testing"

	"github.com/mhmdangga28/fanet-mesh/internal/mesh"
)

var (
	addrA = mesh.HWAddr{0xAA, 0, 0, 0, 0, 0}
	addrB = mesh.HWAddr{0xBB, 0, 0, 0, 0, 0}
	addrC = mesh.HWAddr{0xCC, 0, 0, 0, 0, 0}
)

func TestUnicastRequiresLink(t *testing.T) {
	bus := NewBus()
	ra := bus.Register(addrA, func([]byte, mesh.HWAddr, int8) {})
	bus.Register(addrB, func([]byte, mesh.HWAddr, int8) {})

	if err := ra.Unicast(addrB, []byte("hi")); err == nil {
		t.Fatalf("expected ErrNoLink before Connect")
	}

	bus.Connect(addrA, addrB, -40)
	if err := ra.Unicast(addrB, []byte("hi")); err != nil {
		t.Fatalf("unexpected error after Connect: %v", err)
	}
}

func TestUnicastDeliversOnlyToTarget(t *testing.T) {
	bus := NewBus()
	var gotB, gotC bool

	ra := bus.Register(addrA, func([]byte, mesh.HWAddr, int8) {})
	bus.Register(addrB, func(frame []byte, from mesh.HWAddr, rssi int8) { gotB = true })
	bus.Register(addrC, func(frame []byte, from mesh.HWAddr, rssi int8) { gotC = true })

	bus.Connect(addrA, addrB, -30)
	bus.Connect(addrA, addrC, -30)

	if err := ra.Unicast(addrB, []byte("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotB {
		t.Fatalf("expected B to receive the frame")
	}
	if gotC {
		t.Fatalf("C must not receive a unicast addressed to B")
	}
}

func TestBroadcastReachesAllLinkedNeighbours(t *testing.T) {
	bus := NewBus()
	var gotB, gotC bool

	ra := bus.Register(addrA, func([]byte, mesh.HWAddr, int8) {})
	bus.Register(addrB, func(frame []byte, from mesh.HWAddr, rssi int8) { gotB = true })
	bus.Register(addrC, func(frame []byte, from mesh.HWAddr, rssi int8) { gotC = true })

	// Chain topology: A-B linked, A-C NOT linked (models §8.2 S2).
	bus.Connect(addrA, addrB, -35)

	if err := ra.Broadcast([]byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotB {
		t.Fatalf("expected linked neighbour B to receive broadcast")
	}
	if gotC {
		t.Fatalf("unlinked node C must not receive broadcast")
	}
}

func TestEnsurePeerReflectsLinkState(t *testing.T) {
	bus := NewBus()
	ra := bus.Register(addrA, func([]byte, mesh.HWAddr, int8) {})
	bus.Register(addrB, func([]byte, mesh.HWAddr, int8) {})

	if err := ra.EnsurePeer(addrB); err == nil {
		t.Fatalf("expected error before Connect")
	}
	bus.Connect(addrA, addrB, -20)
	if err := ra.EnsurePeer(addrB); err != nil {
		t.Fatalf("unexpected error after Connect: %v", err)
	}
}
