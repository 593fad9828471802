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

// RadioTransport is the collaborator interface for the short-range
// broadcast/unicast link (§6.3), modelled after ESP-NOW. It is
// connectionless and per-frame addressed; Unicast may fail (no flow
// control, §5 "Backpressure").
type RadioTransport interface {
	Broadcast(frame []byte) error
	Unicast(dst HWAddr, frame []byte) error
	// EnsurePeer registers dst with the radio driver if not already
	// known, required before Unicast on some radio drivers (§4.9,
	// DropPeerRegFailed in §7).
	EnsurePeer(dst HWAddr) error
}

// UDPTransport is the collaborator interface for the infrastructure
// path to the sink (§6.3).
type UDPTransport interface {
	Send(frame []byte) error
	TryRecv() ([]byte, bool)
	IsUp() bool
}

// Clock is the collaborator interface for time (§6.3). The core calls
// only NowMs, for routing logic and for DATA payload timestamps alike;
// it never calls WallSeconds.
type Clock interface {
	NowMs() uint32
	WallSeconds() int64
}
