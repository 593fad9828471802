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

import "go.uber.org/zap"

// HelloIntervalMs is the default HELLO cadence from §6.2.
const HelloIntervalMs = 2000

// SendHello broadcasts {node_id, seq_num = local_seq++} per §4.3. If
// the upstream link is up, the HELLO is mirrored to the sink over
// UDP for telemetry (non-routing).
func (c *Core) SendHello() {
	seq := c.localSeq.next()
	payload := helloPayload{NodeID: c.self, Seq: seq}.encode()
	frame := encode(TypeHello, c.selfHW, Broadcast, c.maxTTL, payload)

	if err := c.radio.Broadcast(frame); err != nil {
		c.logger.Debug("hello broadcast failed", zap.Error(err))
	}
	if c.metrics != nil {
		c.metrics.frame(TypeHello)
	}

	if c.upstreamUp {
		if err := c.udp.Send(frame); err != nil {
			c.logger.Debug("hello udp mirror failed", zap.Error(err))
		}
	}
}

// handleHello processes a received HELLO from neighbour prev (§4.3):
// it unconditionally offers a direct route to the sender, with the
// replacement rule in §3.3 governing acceptance.
func (c *Core) handleHello(prev NodeID, payload []byte) {
	h, ok := decodeHello(payload)
	if !ok {
		c.drop(DropMalformedFrame)
		return
	}

	if c.routes.Update(h.NodeID, prev, 1, h.Seq, c.now()) {
		c.logger.Debug("route installed from hello", zap.Uint8("neighbour", uint8(h.NodeID)))
	}
}

// OriginateRREQ starts route discovery for destination d (§4.4): a
// new rreq_id is allocated from local_seq and the RREQ is flooded at
// MaxTTL. Multiple concurrent RREQs for the same destination are
// permitted; receivers' dedup caches absorb the storm.
func (c *Core) OriginateRREQ(dest NodeID) {
	rreqID := c.localSeq.next()
	c.discovery[dest] = StateDiscovering

	payload := rreqPayload{Source: c.self, Dest: dest, RREQID: rreqID, Seq: rreqID}.encode()
	frame := encode(TypeRREQ, c.selfHW, Broadcast, c.maxTTL, payload)

	if err := c.radio.Broadcast(frame); err != nil {
		c.logger.Debug("rreq broadcast failed", zap.Error(err))
	}
	if c.metrics != nil {
		c.metrics.frame(TypeRREQ)
		c.metrics.rreqOriginated.Inc()
	}

	c.logger.Debug("rreq originated", zap.Uint8("dest", uint8(dest)), zap.Uint32("rreq_id", rreqID))
}

// handleRREQ implements the receiver steps of §4.4.
func (c *Core) handleRREQ(prev NodeID, ttl uint8, payload []byte) {
	r, ok := decodeRREQ(payload)
	if !ok {
		c.drop(DropMalformedFrame)
		return
	}
	now := c.now()

	// Step 1: suppress if already seen.
	if c.reversePath.has(now, r.Source, r.RREQID) {
		c.drop(DropDuplicate)
		return
	}

	// Step 2: record reverse path.
	c.reversePath.insert(now, r.Source, r.RREQID, prev)

	// Step 3: offer a route back to the originator. Hop count 1 only
	// reflects the last segment, not the true distance to the
	// originator (see DESIGN.md).
	c.routes.Update(r.Source, prev, 1, r.RREQID, now)

	// Step 4: this node is the destination.
	if r.Dest == c.self {
		c.sendRREP(r.Source, r.Dest, r.RREQID, r.RREQID, 0)
		return
	}

	// Step 5: a valid route to the destination already exists.
	if entry, ok := c.routes.Lookup(r.Dest); ok && entry.valid() {
		c.sendRREP(r.Source, r.Dest, r.RREQID, entry.Seq, entry.HopCount)
		return
	}

	// Step 6: rebroadcast with ttl-1, rewriting only src_mac.
	if ttl == 0 {
		c.drop(DropTTLExpired)
		return
	}
	frame := encode(TypeRREQ, c.selfHW, Broadcast, ttl-1, payload)
	if err := c.radio.Broadcast(frame); err != nil {
		c.logger.Debug("rreq rebroadcast failed", zap.Error(err))
	}
	if c.metrics != nil {
		c.metrics.rreqForwarded.Inc()
	}
}

// sendRREP unicasts an RREP along the reverse path recorded for
// (requester, rreqID), per §4.5.
func (c *Core) sendRREP(requester NodeID, dest NodeID, rreqID uint32, destSeq uint32, hopCount uint8) {
	prevHop, ok := c.reversePath.lookup(c.now(), requester, rreqID)
	if !ok {
		c.logger.Debug("no reverse path for rrep", zap.Uint8("requester", uint8(requester)))
		return
	}

	dstHW, ok := c.addrOf(prevHop)
	if !ok {
		return
	}

	payload := rrepPayload{
		Requester: requester,
		Dest:      dest,
		RREQID:    rreqID,
		DestSeq:   destSeq,
		HopCount:  hopCount,
	}.encode()
	frame := encode(TypeRREP, c.selfHW, dstHW, c.maxTTL, payload)

	if err := c.radio.EnsurePeer(dstHW); err != nil {
		c.drop(DropPeerRegFailed)
		return
	}
	if err := c.radio.Unicast(dstHW, frame); err != nil {
		c.logger.Debug("rrep unicast failed", zap.Error(err))
	}
	if c.metrics != nil {
		c.metrics.frame(TypeRREP)
	}
}

// handleRREP implements the receiver steps of §4.5.
func (c *Core) handleRREP(prev NodeID, ttl uint8, payload []byte) {
	r, ok := decodeRREP(payload)
	if !ok {
		c.drop(DropMalformedFrame)
		return
	}

	// Step 1: install the route at hop_count+1, accounting for this
	// hop. Known under-count along multi-hop RREP paths (see DESIGN.md).
	if c.routes.Update(r.Dest, prev, r.HopCount+1, r.DestSeq, c.now()) {
		delete(c.discovery, r.Dest)
		if c.metrics != nil {
			c.metrics.rrepInstalled.Inc()
		}
	}

	// Step 2: terminal at the requester.
	if r.Requester == c.self {
		return
	}

	// Step 3: forward along the reverse path, verbatim payload.
	prevHop, ok := c.reversePath.lookup(c.now(), r.Requester, r.RREQID)
	if !ok || ttl == 0 {
		c.drop(DropTTLExpired)
		return
	}
	dstHW, ok := c.addrOf(prevHop)
	if !ok {
		return
	}
	frame := encode(TypeRREP, c.selfHW, dstHW, ttl-1, payload)
	if err := c.radio.EnsurePeer(dstHW); err != nil {
		c.drop(DropPeerRegFailed)
		return
	}
	if err := c.radio.Unicast(dstHW, frame); err != nil {
		c.logger.Debug("rrep forward failed", zap.Error(err))
	}
}

// handleRERR implements §4.6: invalidate the unreachable destination
// locally; RERR is a one-hop notice and is not rebroadcast.
func (c *Core) handleRERR(payload []byte) {
	r, ok := decodeRERR(payload)
	if !ok {
		c.drop(DropMalformedFrame)
		return
	}
	c.routes.Invalidate(r.Unreachable)
	if c.metrics != nil {
		c.metrics.rerrReceived.Inc()
	}
	c.logger.Info("route invalidated by rerr", zap.Uint8("unreachable", uint8(r.Unreachable)))
}

func (c *Core) drop(reason DropReason) {
	if c.metrics != nil {
		c.metrics.drop(reason)
	}
	c.logger.Debug("frame dropped", zap.String("reason", string(reason)))
}
