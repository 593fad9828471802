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

// SendData originates a DATA packet at this node for destination
// dest, per the originator half of §4.7. packetID == 0 is the
// sentinel meaning "no ack requested" (§8.3). If no valid route
// exists and dest isn't the sink, discovery is triggered and the
// caller must retry (§4.7 step 6, §9 open question 4: no retry
// queue).
func (c *Core) SendData(dest NodeID, packetID uint32, body []byte) {
	now := c.now()
	d := dataPayload{
		SourceID:      c.self,
		DestinationID: dest,
		PacketID:      packetID,
		TimestampMs:   now,
		Body:          body,
	}
	c.dataSeen.insert(now, c.self, packetID)
	c.routeAndSendData(d, c.maxTTL, true)
}

// NextPacketID allocates the next packet_counter value (§3.5).
func (c *Core) NextPacketID() uint32 { return c.packetCounter.next() }

// handleData implements the forwarding decision of §4.7 for a DATA
// frame arriving from immediate previous hop prev with the given
// radio RSSI and header ttl.
func (c *Core) handleData(prev NodeID, ttl uint8, rssi int8, payload []byte) {
	now := c.now()
	d, ok := decodeData(payload)
	if !ok {
		c.drop(DropMalformedFrame)
		return
	}

	// Step 1/2: dedup by (source_id, packet_id); this is what bounds
	// each node to processing a given packet at most once (§8.1).
	if c.dataSeen.has(now, d.SourceID, d.PacketID) {
		c.drop(DropDuplicate)
		return
	}
	c.dataSeen.insert(now, d.SourceID, d.PacketID)

	// Step 3: annotate with a hop metric and extend the path list.
	delay := now - d.TimestampMs
	d.HopMetrics = append(d.HopMetrics, hopMetric{U: prev, V: c.self, RSSI: rssi, DelayMs: delay})
	d.Path = append(d.Path, c.self)

	if c.metrics != nil {
		c.metrics.frame(TypeData)
	}

	// Step 4: local delivery.
	if d.DestinationID == c.self {
		if c.onDeliver != nil {
			c.onDeliver(d.SourceID, d.PacketID, d.Body)
		}
		if d.PacketID != 0 {
			c.sendAck(d.SourceID, d.DestinationID, d.PacketID)
		}
		return
	}

	c.routeAndSendData(d, ttl, false)
}

// routeAndSendData carries out steps 5-7 of §4.7. When isOrigin is
// true (a fresh SendData call) the frame is written with ttl
// unmodified, per §4.1 ("TTL written by origin is MAX_TTL"); when
// false, ttl is the incoming (not yet decremented) header TTL of a
// frame being forwarded, and each branch below decrements and
// TTL-checks independently rather than a single upfront check (step
// 6, originating a fresh RREQ, is not gated on TTL at all).
func (c *Core) routeAndSendData(d dataPayload, ttl uint8, isOrigin bool) {
	payload := d.encode()

	// Step 5: destination is the sink.
	if c.isSink(d.DestinationID) {
		if c.upstreamUp {
			frame := encode(TypeData, c.selfHW, Broadcast, ttl, payload)
			if err := c.udp.Send(frame); err != nil {
				c.logger.Debug("data udp handoff failed", zap.Error(err))
			}
			return
		}
		outTTL := ttl
		if !isOrigin {
			if ttl == 0 {
				c.drop(DropTTLExpired)
				return
			}
			outTTL = ttl - 1
		}
		frame := encode(TypeData, c.selfHW, Broadcast, outTTL, payload)
		if err := c.radio.Broadcast(frame); err != nil {
			c.logger.Debug("data relay-mode broadcast failed", zap.Error(err))
		}
		return
	}

	// Step 6: no valid route -> originate discovery, drop this packet.
	entry, ok := c.routes.Lookup(d.DestinationID)
	if !ok || !entry.valid() {
		c.OriginateRREQ(d.DestinationID)
		c.drop(DropNoRoute)
		return
	}

	// Step 7: unicast to the next hop.
	outTTL := ttl
	if !isOrigin {
		if ttl == 0 {
			c.drop(DropTTLExpired)
			return
		}
		outTTL = ttl - 1
	}
	dstHW, ok := c.addrOf(entry.NextHop)
	if !ok {
		c.drop(DropNoRoute)
		return
	}
	if err := c.radio.EnsurePeer(dstHW); err != nil {
		c.drop(DropPeerRegFailed)
		return
	}
	frame := encode(TypeData, c.selfHW, dstHW, outTTL, payload)
	if err := c.radio.Unicast(dstHW, frame); err != nil {
		c.logger.Debug("data unicast failed", zap.Error(err))
	}
}

// sendAck builds and transmits the end-to-end ACK described in §4.8
// when this node delivers a DATA addressed to itself.
func (c *Core) sendAck(origSource, origDestination NodeID, packetID uint32) {
	now := c.now()
	ack := ackPayload{
		PacketID:        packetID,
		AckFrom:         c.self,
		Destination:     c.addr.SinkID(),
		OrigSource:      origSource,
		OrigDestination: origDestination,
		SentTs:          now,
		AckTs:           now,
	}
	payload := ack.encode()

	c.ackSeen.insert(now, packetID, c.self)

	if c.upstreamUp {
		frame := encode(TypeAck, c.selfHW, Broadcast, c.maxTTL, payload)
		if err := c.udp.Send(frame); err != nil {
			c.logger.Debug("ack udp send failed", zap.Error(err))
		}
		return
	}

	frame := encode(TypeAck, c.selfHW, Broadcast, c.maxTTL, payload)
	if err := c.radio.Broadcast(frame); err != nil {
		c.logger.Debug("ack broadcast failed", zap.Error(err))
	}
}

// handleAck implements the intermediate-node ACK processing of §4.8.
func (c *Core) handleAck(ttl uint8, payload []byte) {
	now := c.now()
	a, ok := decodeAck(payload)
	if !ok {
		c.drop(DropMalformedFrame)
		return
	}

	// Step 1: dedup by (packet_id, ack_from).
	if c.ackSeen.has(now, a.PacketID, a.AckFrom) {
		c.drop(DropDuplicate)
		return
	}
	c.ackSeen.insert(now, a.PacketID, a.AckFrom)

	payloadOut := a.encode()

	// Step 2: sink-bound and we have upstream -> gateway bridge.
	if a.Destination == c.addr.SinkID() && c.upstreamUp {
		frame := encode(TypeAck, c.selfHW, Broadcast, ttl, payloadOut)
		if err := c.udp.Send(frame); err != nil {
			c.logger.Debug("ack gateway bridge failed", zap.Error(err))
		}
		if c.metrics != nil {
			c.metrics.acksTerminated.Inc()
		}
		return
	}

	// Step 3: rebroadcast with ttl-1.
	if ttl == 0 {
		c.drop(DropTTLExpired)
		return
	}
	frame := encode(TypeAck, c.selfHW, Broadcast, ttl-1, payloadOut)
	if err := c.radio.Broadcast(frame); err != nil {
		c.logger.Debug("ack rebroadcast failed", zap.Error(err))
	}
	if c.metrics != nil {
		c.metrics.acksRelayed.Inc()
	}
}
