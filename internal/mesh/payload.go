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

// Payload encodings for the control and data messages the core
// extracts fields from (§9: "opaque payload fields"). The source
// parsed JSON to reach these fields; this rewrite uses a compact
// fixed/variable binary layout instead, per the recommendation in §9.
// Multi-byte integers are big-endian throughout (§6.1).

// helloPayload carries {node_id, seq_num} (§4.3).
type helloPayload struct {
	NodeID NodeID
	Seq    uint32
}

func (h helloPayload) encode() []byte {
	b := make([]byte, 5)
	b[0] = byte(h.NodeID)
	s := htonl(h.Seq)
	copy(b[1:5], s[:])
	return b
}

func decodeHello(b []byte) (helloPayload, bool) {
	if len(b) < 5 {
		return helloPayload{}, false
	}
	return helloPayload{NodeID: NodeID(b[0]), Seq: ntohl(b[1:5])}, true
}

// rreqPayload carries {source, dest, rreq_id, seq} (§4.4).
type rreqPayload struct {
	Source NodeID
	Dest   NodeID
	RREQID uint32
	Seq    uint32
}

func (r rreqPayload) encode() []byte {
	b := make([]byte, 10)
	b[0] = byte(r.Source)
	b[1] = byte(r.Dest)
	id := htonl(r.RREQID)
	copy(b[2:6], id[:])
	s := htonl(r.Seq)
	copy(b[6:10], s[:])
	return b
}

func decodeRREQ(b []byte) (rreqPayload, bool) {
	if len(b) < 10 {
		return rreqPayload{}, false
	}
	return rreqPayload{
		Source: NodeID(b[0]),
		Dest:   NodeID(b[1]),
		RREQID: ntohl(b[2:6]),
		Seq:    ntohl(b[6:10]),
	}, true
}

// rrepPayload carries {requester, dest, rreq_id, dest_seq, hop_count} (§4.5).
type rrepPayload struct {
	Requester NodeID
	Dest      NodeID
	RREQID    uint32
	DestSeq   uint32
	HopCount  uint8
}

func (r rrepPayload) encode() []byte {
	b := make([]byte, 11)
	b[0] = byte(r.Requester)
	b[1] = byte(r.Dest)
	id := htonl(r.RREQID)
	copy(b[2:6], id[:])
	s := htonl(r.DestSeq)
	copy(b[6:10], s[:])
	b[10] = r.HopCount
	return b
}

func decodeRREP(b []byte) (rrepPayload, bool) {
	if len(b) < 11 {
		return rrepPayload{}, false
	}
	return rrepPayload{
		Requester: NodeID(b[0]),
		Dest:      NodeID(b[1]),
		RREQID:    ntohl(b[2:6]),
		DestSeq:   ntohl(b[6:10]),
		HopCount:  b[10],
	}, true
}

// rerrPayload carries {unreachable_node} (§4.6).
type rerrPayload struct {
	Unreachable NodeID
}

func (r rerrPayload) encode() []byte { return []byte{byte(r.Unreachable)} }

func decodeRERR(b []byte) (rerrPayload, bool) {
	if len(b) < 1 {
		return rerrPayload{}, false
	}
	return rerrPayload{Unreachable: NodeID(b[0])}, true
}

// hopMetric is one entry the data-plane forwarder appends per hop
// traversed, per §4.7 step 3: (u, v, rssi, delay_ms).
type hopMetric struct {
	U       NodeID
	V       NodeID
	RSSI    int8
	DelayMs uint32
}

// dataPayload carries the fields the core extracts and mutates by
// contract (§4.7, §9): source_id, destination_id, packet_id, a
// hop-metrics list and a path list, plus the origin timestamp used to
// compute per-hop delay.
type dataPayload struct {
	SourceID      NodeID
	DestinationID NodeID
	PacketID      uint32
	TimestampMs   uint32
	Path          []NodeID
	HopMetrics    []hopMetric
	Body          []byte
}

func (d dataPayload) encode() []byte {
	b := make([]byte, 0, 12+len(d.Path)+len(d.HopMetrics)*7+len(d.Body))
	b = append(b, byte(d.SourceID), byte(d.DestinationID))
	pid := htonl(d.PacketID)
	ts := htonl(d.TimestampMs)
	b = append(b, pid[:]...)
	b = append(b, ts[:]...)

	b = append(b, byte(len(d.Path)))
	for _, p := range d.Path {
		b = append(b, byte(p))
	}

	b = append(b, byte(len(d.HopMetrics)))
	for _, m := range d.HopMetrics {
		dl := htonl(m.DelayMs)
		b = append(b, byte(m.U), byte(m.V), byte(m.RSSI))
		b = append(b, dl[:]...)
	}

	bodyLen := htonl(uint32(len(d.Body)))
	b = append(b, bodyLen[:]...)
	b = append(b, d.Body...)

	return b
}

func decodeData(b []byte) (dataPayload, bool) {
	if len(b) < 10 {
		return dataPayload{}, false
	}
	var d dataPayload
	d.SourceID = NodeID(b[0])
	d.DestinationID = NodeID(b[1])
	d.PacketID = ntohl(b[2:6])
	d.TimestampMs = ntohl(b[6:10])

	off := 10
	if off >= len(b) {
		return dataPayload{}, false
	}
	pathLen := int(b[off])
	off++
	if off+pathLen > len(b) {
		return dataPayload{}, false
	}
	for i := 0; i < pathLen; i++ {
		d.Path = append(d.Path, NodeID(b[off+i]))
	}
	off += pathLen

	if off >= len(b) {
		return dataPayload{}, false
	}
	hmLen := int(b[off])
	off++
	for i := 0; i < hmLen; i++ {
		if off+7 > len(b) {
			return dataPayload{}, false
		}
		d.HopMetrics = append(d.HopMetrics, hopMetric{
			U:       NodeID(b[off]),
			V:       NodeID(b[off+1]),
			RSSI:    int8(b[off+2]),
			DelayMs: ntohl(b[off+3 : off+7]),
		})
		off += 7
	}

	if off+4 > len(b) {
		return dataPayload{}, false
	}
	bodyLen := int(ntohl(b[off : off+4]))
	off += 4
	if off+bodyLen > len(b) {
		return dataPayload{}, false
	}
	if bodyLen > 0 {
		d.Body = make([]byte, bodyLen)
		copy(d.Body, b[off:off+bodyLen])
	}

	return d, true
}

// ackPayload carries {packet_id, ack_from, destination, orig_source,
// orig_destination, sent_ts, ack_ts} (§4.8).
type ackPayload struct {
	PacketID        uint32
	AckFrom         NodeID
	Destination     NodeID
	OrigSource      NodeID
	OrigDestination NodeID
	SentTs          uint32
	AckTs           uint32
}

func (a ackPayload) encode() []byte {
	b := make([]byte, 16)
	pid := htonl(a.PacketID)
	copy(b[0:4], pid[:])
	b[4] = byte(a.AckFrom)
	b[5] = byte(a.Destination)
	b[6] = byte(a.OrigSource)
	b[7] = byte(a.OrigDestination)
	st := htonl(a.SentTs)
	copy(b[8:12], st[:])
	at := htonl(a.AckTs)
	copy(b[12:16], at[:])
	return b
}

func decodeAck(b []byte) (ackPayload, bool) {
	if len(b) < 16 {
		return ackPayload{}, false
	}
	return ackPayload{
		PacketID:        ntohl(b[0:4]),
		AckFrom:         NodeID(b[4]),
		Destination:     NodeID(b[5]),
		OrigSource:      NodeID(b[6]),
		OrigDestination: NodeID(b[7]),
		SentTs:          ntohl(b[8:12]),
		AckTs:           ntohl(b[12:16]),
	}, true
}
