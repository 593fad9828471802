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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock drives scenario tests without depending on wall time.
type manualClock struct{ ms uint32 }

func (c *manualClock) NowMs() uint32          { return c.ms }
func (c *manualClock) WallSeconds() int64     { return int64(c.ms) / 1000 }
func (c *manualClock) advance(deltaMs uint32) { c.ms += deltaMs }

// loopbackRadio is a minimal RadioTransport: a broadcast reaches every
// linked node and a unicast reaches only its linked dst, used to build
// scenario topologies without pulling in the simradio package (kept
// separate to avoid an import cycle between mesh and its own test
// harness consumer).
type loopbackRadio struct {
	self  HWAddr
	links map[HWAddr]bool
	bus   *scenarioBus
}

type scenarioBus struct {
	nodes map[HWAddr]*Core
}

func newScenarioBus() *scenarioBus {
	return &scenarioBus{nodes: make(map[HWAddr]*Core)}
}

func (b *scenarioBus) radioFor(self HWAddr, linked []HWAddr) *loopbackRadio {
	links := make(map[HWAddr]bool, len(linked))
	for _, l := range linked {
		links[l] = true
	}
	return &loopbackRadio{self: self, links: links, bus: b}
}

func (r *loopbackRadio) Broadcast(frame []byte) error {
	for addr := range r.links {
		if core, ok := r.bus.nodes[addr]; ok {
			core.HandleRadioFrame(frame, -40)
		}
	}
	return nil
}

func (r *loopbackRadio) Unicast(dst HWAddr, frame []byte) error {
	if !r.links[dst] {
		return fmt.Errorf("no link to %s", dst)
	}
	core, ok := r.bus.nodes[dst]
	if !ok {
		return fmt.Errorf("unknown peer %s", dst)
	}
	core.HandleRadioFrame(frame, -40)
	return nil
}

func (r *loopbackRadio) EnsurePeer(dst HWAddr) error {
	if !r.links[dst] {
		return fmt.Errorf("no link to %s", dst)
	}
	return nil
}

type noUpstream struct{}

func (noUpstream) Send([]byte) error       { return fmt.Errorf("no upstream") }
func (noUpstream) TryRecv() ([]byte, bool) { return nil, false }
func (noUpstream) IsUp() bool              { return false }

type capturingUpstream struct {
	sent [][]byte
	up   bool
}

func (u *capturingUpstream) Send(frame []byte) error {
	u.sent = append(u.sent, frame)
	return nil
}
func (u *capturingUpstream) TryRecv() ([]byte, bool) { return nil, false }
func (u *capturingUpstream) IsUp() bool              { return u.up }

// scenarioNode pairs a Core with the delivery log its OnDeliver
// callback appends to.
type scenarioNode struct {
	id        NodeID
	hw        HWAddr
	core      *Core
	delivered []string
}

// buildChainTopology builds n nodes addressed 0..n-1 plus a sink at
// id n, linking each node i only to its neighbours i-1 and i+1 (a
// straight chain), matching
// §8.2 S2's "0-1-2, no direct 0-2 link".
func buildChainTopology(t *testing.T, n int, clock *manualClock) ([]*scenarioNode, *AddressMap) {
	t.Helper()

	table := make([]HWAddr, n)
	for i := range table {
		table[i] = HWAddr{0xAA, 0, 0, 0, 0, byte(i)}
	}
	addrMap, err := NewAddressMap(table, NodeID(n))
	require.NoError(t, err)

	bus := newScenarioBus()
	nodes := make([]*scenarioNode, n)
	for i := 0; i < n; i++ {
		var linked []HWAddr
		if i > 0 {
			linked = append(linked, table[i-1])
		}
		if i < n-1 {
			linked = append(linked, table[i+1])
		}

		sn := &scenarioNode{id: NodeID(i), hw: table[i]}
		nodes[i] = sn
		radio := bus.radioFor(table[i], linked)

		sn.core = NewCore(NodeID(i), addrMap, table[i], radio, noUpstream{}, clock, Options{
			OnDeliver: func(source NodeID, packetID uint32, body []byte) {
				sn.delivered = append(sn.delivered, string(body))
			},
		})
		bus.nodes[table[i]] = sn.core
	}

	return nodes, addrMap
}

// buildTriangleTopology links every pair of the first 3 nodes,
// matching §8.2 S3.
func buildTriangleTopology(t *testing.T, clock *manualClock) ([]*scenarioNode, *AddressMap) {
	t.Helper()

	n := 3
	table := []HWAddr{
		{0xAA, 0, 0, 0, 0, 0},
		{0xAA, 0, 0, 0, 0, 1},
		{0xAA, 0, 0, 0, 0, 2},
	}
	addrMap, err := NewAddressMap(table, NodeID(n))
	require.NoError(t, err)

	bus := newScenarioBus()
	nodes := make([]*scenarioNode, n)
	for i := 0; i < n; i++ {
		var linked []HWAddr
		for j := 0; j < n; j++ {
			if j != i {
				linked = append(linked, table[j])
			}
		}

		sn := &scenarioNode{id: NodeID(i), hw: table[i]}
		nodes[i] = sn
		radio := bus.radioFor(table[i], linked)

		sn.core = NewCore(NodeID(i), addrMap, table[i], radio, noUpstream{}, clock, Options{
			OnDeliver: func(source NodeID, packetID uint32, body []byte) {
				sn.delivered = append(sn.delivered, string(body))
			},
		})
		bus.nodes[table[i]] = sn.core
	}

	return nodes, addrMap
}

// TestScenarioDirectDelivery covers §8.2 S1: two directly linked
// nodes, HELLO installs the route, DATA delivers with no discovery.
func TestScenarioDirectDelivery(t *testing.T) {
	clock := &manualClock{}
	nodes, _ := buildChainTopology(t, 2, clock)

	nodes[0].core.SendHello()
	nodes[1].core.SendHello()
	clock.advance(10)

	nodes[0].core.SendData(1, nodes[0].core.NextPacketID(), []byte("direct"))

	assert.Equal(t, []string{"direct"}, nodes[1].delivered)
}

// TestScenarioMultiHopDiscovery covers §8.2 S2: node 0 must discover
// a route to node 2 across the 0-1-2 chain before DATA can reach it.
func TestScenarioMultiHopDiscovery(t *testing.T) {
	clock := &manualClock{}
	nodes, _ := buildChainTopology(t, 3, clock)

	for _, n := range nodes {
		n.core.SendHello()
	}
	clock.advance(10)

	nodes[0].core.OriginateRREQ(2)
	clock.advance(10)

	entry, ok := nodes[0].core.Routes().Lookup(2)
	require.True(t, ok)
	assert.True(t, entry.valid())

	nodes[0].core.SendData(2, nodes[0].core.NextPacketID(), []byte("multihop"))
	assert.Equal(t, []string{"multihop"}, nodes[2].delivered)
}

// TestScenarioLoopAvoidance covers a triangle topology: node 2 is
// reachable directly and via node 1. Node 1 already holds a
// HELLO-learned route to node 2, so it answers the RREQ itself instead
// of rebroadcasting it; DATA must reach node 2 exactly once.
func TestScenarioLoopAvoidance(t *testing.T) {
	clock := &manualClock{}
	nodes, _ := buildTriangleTopology(t, clock)

	for _, n := range nodes {
		n.core.SendHello()
	}
	clock.advance(10)

	nodes[0].core.OriginateRREQ(2)
	clock.advance(10)

	nodes[0].core.SendData(2, nodes[0].core.NextPacketID(), []byte("triangle"))
	assert.Equal(t, []string{"triangle"}, nodes[2].delivered)
}

// TestScenarioUpstreamHandoff covers §8.2 S4: once a node's upstream
// link is up, DATA addressed to the sink is sent over UDP instead of
// flooded over radio.
func TestScenarioUpstreamHandoff(t *testing.T) {
	clock := &manualClock{}
	table := []HWAddr{{0xAA, 0, 0, 0, 0, 0}}
	addrMap, err := NewAddressMap(table, NodeID(1))
	require.NoError(t, err)

	up := &capturingUpstream{up: true}
	core := NewCore(0, addrMap, table[0], &loopbackRadio{self: table[0], links: map[HWAddr]bool{}, bus: newScenarioBus()}, up, clock, Options{})
	core.SetUpstreamUp(true)

	core.SendData(addrMap.SinkID(), core.NextPacketID(), []byte("to-sink"))

	require.Len(t, up.sent, 1)
	f, err := decode(up.sent[0])
	require.NoError(t, err)
	assert.Equal(t, TypeData, f.Type)
}

// TestScenarioRouteTimeout covers §8.2 S5: a route not refreshed
// within RouteTimeoutMs is invalidated by the next cleanup pass.
func TestScenarioRouteTimeout(t *testing.T) {
	clock := &manualClock{}
	nodes, _ := buildChainTopology(t, 2, clock)

	nodes[0].core.Routes().Update(1, 0, 1, 1, clock.NowMs())
	require.True(t, nodes[0].core.Routes().Has(1))

	clock.advance(RouteTimeoutMs + 1)
	n := nodes[0].core.Routes().Cleanup(clock.NowMs())

	assert.Equal(t, 1, n)
	assert.False(t, nodes[0].core.Routes().Has(1))
}

// TestScenarioRERRInvalidatesRoute covers §8.2 S6: receiving an RERR
// for a destination immediately invalidates any route to it.
func TestScenarioRERRInvalidatesRoute(t *testing.T) {
	clock := &manualClock{}
	nodes, _ := buildChainTopology(t, 2, clock)

	nodes[0].core.Routes().Update(1, 0, 1, 1, clock.NowMs())
	require.True(t, nodes[0].core.Routes().Has(1))

	nodes[0].core.handleRERR(rerrPayload{Unreachable: 1}.encode())
	assert.False(t, nodes[0].core.Routes().Has(1))
}

// TestScenarioZeroPacketIDNeverAcked covers the §8.3 boundary:
// packet_id == 0 is the sentinel for "no ack requested".
func TestScenarioZeroPacketIDNeverAcked(t *testing.T) {
	clock := &manualClock{}
	table := []HWAddr{{0xAA, 0, 0, 0, 0, 0}, {0xAA, 0, 0, 0, 0, 1}}
	addrMap, err := NewAddressMap(table, NodeID(2))
	require.NoError(t, err)

	bus := newScenarioBus()
	var ackSent bool

	radio0 := bus.radioFor(table[0], []HWAddr{table[1]})
	core0 := NewCore(0, addrMap, table[0], radio0, noUpstream{}, clock, Options{})
	bus.nodes[table[0]] = core0

	radio1 := bus.radioFor(table[1], []HWAddr{table[0]})
	radio1Wrapped := &ackWatchingRadio{loopbackRadio: radio1, onBroadcast: func() { ackSent = true }}
	core1 := NewCore(1, addrMap, table[1], radio1Wrapped, noUpstream{}, clock, Options{})
	bus.nodes[table[1]] = core1

	core0.Routes().Update(1, 1, 1, 1, clock.NowMs())
	core0.SendData(1, 0, []byte("no-ack-wanted"))
	assert.False(t, ackSent, "packet_id 0 must never trigger an ack")

	core0.SendData(1, core0.NextPacketID(), []byte("ack-wanted"))
	assert.True(t, ackSent, "a non-zero packet_id must trigger an ack broadcast")
}

// ackWatchingRadio wraps loopbackRadio to observe whether a broadcast
// (an ack would be sent as one) ever occurs.
type ackWatchingRadio struct {
	*loopbackRadio
	onBroadcast func()
}

func (r *ackWatchingRadio) Broadcast(frame []byte) error {
	r.onBroadcast()
	return r.loopbackRadio.Broadcast(frame)
}
