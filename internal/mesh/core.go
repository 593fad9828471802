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

// Package mesh implements the hybrid AODV-style mesh routing core for
// a FANET node: frame framing, route discovery and maintenance, TTL
// flooding control, duplicate suppression, end-to-end ack relay, and
// the radio/UDP transport selection decision. All mutable state is
// owned by a single Core value driven by one cooperative event loop
// (§5); there is no internal locking.
package mesh

import (
	"go.uber.org/zap"
)

// DiscoveryState mirrors the control-plane FSM summary in §4.11. It is
// kept for observability only: the core never arms a retry timer, so
// "discovering" simply means a route request is in flight and no
// route exists yet.
type DiscoveryState int

const (
	StateIdle DiscoveryState = iota
	StateDiscovering
)

// DeliverFunc is invoked when a DATA payload's destination is this
// node. The application layer owns interpreting the opaque body.
type DeliverFunc func(source NodeID, packetID uint32, body []byte)

// Core owns every piece of mutable mesh-routing state for one node:
// the route table, the three dedup caches, the sequence counters and
// the upstream-link flag (§5, §9). Tests and the simulation harness
// instantiate one isolated Core per simulated node.
type Core struct {
	self   NodeID
	addr   *AddressMap
	selfHW HWAddr

	routes      *RouteTable
	reversePath *reversePathTable
	dataSeen    *dataSeenTable
	ackSeen     *ackSeenTable

	localSeq      sequenceCounter
	packetCounter sequenceCounter

	maxTTL          uint8
	helloIntervalMs uint32

	radio RadioTransport
	udp   UDPTransport
	clock Clock

	upstreamUp bool

	discovery map[NodeID]DiscoveryState

	logger  *zap.Logger
	metrics *Metrics

	onDeliver DeliverFunc
}

// Options configures a new Core beyond the wiring it needs to run
// (transports, clock, address map).
type Options struct {
	MaxTTL          uint8
	HelloIntervalMs uint32
	Logger          *zap.Logger
	Metrics         *Metrics
	OnDeliver       DeliverFunc
}

// NewCore builds a Core for node self, given the shared address map
// and the collaborator transports/clock (§6.3). selfHW is the local
// node's own hardware address, used as src_mac on every frame this
// node originates.
func NewCore(self NodeID, addr *AddressMap, selfHW HWAddr, radio RadioTransport, udp UDPTransport, clock Clock, opts Options) *Core {
	if opts.MaxTTL == 0 {
		opts.MaxTTL = MaxTTL
	}
	if opts.HelloIntervalMs == 0 {
		opts.HelloIntervalMs = HelloIntervalMs
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Core{
		self:            self,
		addr:            addr,
		selfHW:          selfHW,
		routes:          NewRouteTable(addr.N(), RouteTimeoutMs),
		reversePath:     newReversePathTable(opts.Metrics),
		dataSeen:        newDataSeenTable(opts.Metrics),
		ackSeen:         newAckSeenTable(opts.Metrics),
		maxTTL:          opts.MaxTTL,
		helloIntervalMs: opts.HelloIntervalMs,
		radio:           radio,
		udp:             udp,
		clock:           clock,
		discovery:       make(map[NodeID]DiscoveryState),
		logger:          opts.Logger.Named("mesh"),
		metrics:         opts.Metrics,
		onDeliver:       opts.OnDeliver,
	}
}

// Self returns the local node id.
func (c *Core) Self() NodeID { return c.self }

// Routes exposes the live route table, for diagnostics/tests.
func (c *Core) Routes() *RouteTable { return c.routes }

// UpstreamUp reports the current upstream-link flag (§7, §9).
func (c *Core) UpstreamUp() bool { return c.upstreamUp }

// SetUpstreamUp is driven by the tick scheduler's periodic sampling
// (§4.10); it logs the up/down-edge transition.
func (c *Core) SetUpstreamUp(up bool) {
	if up == c.upstreamUp {
		return
	}
	c.upstreamUp = up
	if c.metrics != nil {
		if up {
			c.metrics.upstreamUp.Set(1)
		} else {
			c.metrics.upstreamUp.Set(0)
		}
	}
	c.logger.Info("upstream link transition", zap.Bool("up", up))
}

func (c *Core) now() uint32 { return c.clock.NowMs() }

func (c *Core) addrOf(id NodeID) (HWAddr, bool) { return c.addr.AddrOf(id) }

func (c *Core) idOf(addr HWAddr) (NodeID, bool) { return c.addr.IDOf(addr) }

func (c *Core) isSink(id NodeID) bool { return id == c.addr.SinkID() }
