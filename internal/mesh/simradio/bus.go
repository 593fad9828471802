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

// Package simradio provides an in-memory broadcast medium standing in
// for the real ESP-NOW-like radio transport (§6.3), which is an
// external collaborator outside this module's boundary (§1). It
// drives the end-to-end scenarios of §8.2 and the cmd/meshd
// "sim" subcommand without real hardware, the way davidcoles-bgp's
// tests build protocol messages directly against hand-constructed
// byte sequences rather than a live socket.
package simradio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mhmdangga28/fanet-mesh/internal/mesh"
)

// ErrNoLink is returned by Unicast/EnsurePeer when the two nodes have
// not been connected on the bus, standing in for §7's
// PeerRegistrationFailed / a failed radio send.
var ErrNoLink = errors.New("simradio: no link between nodes")

type receiveFunc func(frame []byte, from mesh.HWAddr, rssi int8)

type peer struct {
	addr      mesh.HWAddr
	onReceive receiveFunc
}

// Bus is a shared broadcast medium connecting N nodes in one process.
// Links are explicit and directional-symmetric: two nodes only reach
// each other if Connect was called for that pair, modelling realistic
// multi-hop topologies (§8.2 S2, S3).
type Bus struct {
	mu    sync.Mutex
	peers map[mesh.HWAddr]*peer
	links map[mesh.HWAddr]map[mesh.HWAddr]int8 // addr -> neighbour -> simulated RSSI
}

// NewBus creates an empty medium.
func NewBus() *Bus {
	return &Bus{
		peers: make(map[mesh.HWAddr]*peer),
		links: make(map[mesh.HWAddr]map[mesh.HWAddr]int8),
	}
}

// Register attaches a node's receive callback to the bus and returns
// a Radio adapter implementing the core's RadioTransport interface.
func (b *Bus) Register(addr mesh.HWAddr, onReceive func(frame []byte, from mesh.HWAddr, rssi int8)) *Radio {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.peers[addr] = &peer{addr: addr, onReceive: onReceive}
	if _, ok := b.links[addr]; !ok {
		b.links[addr] = make(map[mesh.HWAddr]int8)
	}

	return &Radio{bus: b, self: addr}
}

// Connect establishes a bidirectional link between a and b with the
// given simulated RSSI, used symmetrically for both directions.
func (b *Bus) Connect(a, bAddr mesh.HWAddr, rssi int8) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.links[a]; !ok {
		b.links[a] = make(map[mesh.HWAddr]int8)
	}
	if _, ok := b.links[bAddr]; !ok {
		b.links[bAddr] = make(map[mesh.HWAddr]int8)
	}
	b.links[a][bAddr] = rssi
	b.links[bAddr][a] = rssi
}

// Radio adapts one bus-registered node to the core's RadioTransport
// interface (§6.3).
type Radio struct {
	bus  *Bus
	self mesh.HWAddr
}

// Broadcast delivers frame to every node linked to this one.
func (r *Radio) Broadcast(frame []byte) error {
	r.bus.mu.Lock()
	neighbours := r.bus.links[r.self]
	targets := make([]*peer, 0, len(neighbours))
	rssis := make([]int8, 0, len(neighbours))
	for addr, rssi := range neighbours {
		if p, ok := r.bus.peers[addr]; ok {
			targets = append(targets, p)
			rssis = append(rssis, rssi)
		}
	}
	r.bus.mu.Unlock()

	for i, p := range targets {
		p.onReceive(frame, r.self, rssis[i])
	}
	return nil
}

// Unicast delivers frame only to dst, failing with ErrNoLink if the
// two nodes were never connected (§7 PeerRegistrationFailed).
func (r *Radio) Unicast(dst mesh.HWAddr, frame []byte) error {
	r.bus.mu.Lock()
	rssi, linked := r.bus.links[r.self][dst]
	p, known := r.bus.peers[dst]
	r.bus.mu.Unlock()

	if !linked || !known {
		return fmt.Errorf("unicast to %s: %w", dst, ErrNoLink)
	}
	p.onReceive(frame, r.self, rssi)
	return nil
}

// EnsurePeer reports whether dst is reachable; the in-memory bus has
// no separate peer-registration step, so this just checks for a link.
func (r *Radio) EnsurePeer(dst mesh.HWAddr) error {
	r.bus.mu.Lock()
	_, linked := r.bus.links[r.self][dst]
	r.bus.mu.Unlock()

	if !linked {
		return fmt.Errorf("ensure peer %s: %w", dst, ErrNoLink)
	}
	return nil
}
