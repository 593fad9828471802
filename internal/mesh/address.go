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

package mesh

import (
	"fmt"
)

// NodeID identifies a mesh participant in [0, N). SinkID is reserved
// and has no entry in the hardware address table.
type NodeID uint8

// HWAddr is a 48-bit hardware address, as carried in every frame header.
type HWAddr [6]byte

// Broadcast is the reserved all-ones destination used for flooding.
var Broadcast = HWAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

func (a HWAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

func (a HWAddr) isBroadcast() bool { return a == Broadcast }

// AddressMap is the bijection between node id and hardware address
// described in §3.1: a static ordered table plus the reverse lookup
// used at boot to discover the local node's own id.
type AddressMap struct {
	table  []HWAddr
	sinkID NodeID
	byAddr map[HWAddr]NodeID
}

// NewAddressMap builds the bijection from an ordered hardware address
// table and the reserved sink id. It returns ConfigError if the table
// contains duplicate addresses.
func NewAddressMap(table []HWAddr, sinkID NodeID) (*AddressMap, error) {
	byAddr := make(map[HWAddr]NodeID, len(table))
	for i, addr := range table {
		if _, dup := byAddr[addr]; dup {
			return nil, &ConfigErr{Reason: fmt.Sprintf("duplicate hw address %s in address table", addr)}
		}
		byAddr[addr] = NodeID(i)
	}
	return &AddressMap{table: table, sinkID: sinkID, byAddr: byAddr}, nil
}

// N is the number of mesh-addressable nodes (excludes the sink).
func (m *AddressMap) N() int { return len(m.table) }

// SinkID returns the reserved off-mesh collector id.
func (m *AddressMap) SinkID() NodeID { return m.sinkID }

// AddrOf returns the hardware address for a mesh node id.
func (m *AddressMap) AddrOf(id NodeID) (HWAddr, bool) {
	if int(id) >= len(m.table) {
		return HWAddr{}, false
	}
	return m.table[id], true
}

// IDOf resolves a hardware address back to a node id, used both for
// boot-time self-detection and for mapping an inbound frame's src_mac
// to an immediate-hop node id.
func (m *AddressMap) IDOf(addr HWAddr) (NodeID, bool) {
	id, ok := m.byAddr[addr]
	return id, ok
}

// SelfID performs the boot-time self-detection described in §3.1: the
// local radio MAC is matched against the table. ConfigError is fatal
// and must halt the node per §7.
func (m *AddressMap) SelfID(localMAC HWAddr) (NodeID, error) {
	id, ok := m.byAddr[localMAC]
	if !ok {
		return 0, &ConfigErr{Reason: fmt.Sprintf("local mac %s not present in hw_addr_table", localMAC)}
	}
	return id, nil
}
