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

// HandleRadioFrame is the radio-side half of the ingress demultiplexer
// (C9): it decodes the frame and dispatches to the control plane (C5)
// or data plane (C6). rssi is as reported by the radio driver's
// on_receive callback (§6.3).
func (c *Core) HandleRadioFrame(raw []byte, rssi int8) {
	c.dispatch(raw, rssi, false)
}

// HandleUDPFrame is the UDP-side half of the demultiplexer. UDP
// frames carry the same 14-byte header (§6.1); RSSI is meaningless
// off-mesh so it's reported as 0.
func (c *Core) HandleUDPFrame(raw []byte) {
	c.dispatch(raw, 0, true)
}

func (c *Core) dispatch(raw []byte, rssi int8, fromUDP bool) {
	frame, err := decode(raw)
	if err != nil {
		c.drop(DropMalformedFrame)
		return
	}

	// HELLO/RREQ/RREP/RERR always carry a real mesh src_mac; DATA/ACK
	// arriving over UDP come from the sink and have no mesh node id.
	prev, known := c.idOf(frame.SrcMAC)

	switch frame.Type {
	case TypeHello:
		if !known {
			c.drop(DropMalformedFrame)
			return
		}
		c.metricsFrame(frame.Type)
		c.handleHello(prev, frame.Payload)

	case TypeRREQ:
		if !known {
			c.drop(DropMalformedFrame)
			return
		}
		c.metricsFrame(frame.Type)
		c.handleRREQ(prev, frame.TTL, frame.Payload)

	case TypeRREP:
		if !known {
			c.drop(DropMalformedFrame)
			return
		}
		c.handleRREP(prev, frame.TTL, frame.Payload)

	case TypeRERR:
		c.metricsFrame(frame.Type)
		c.handleRERR(frame.Payload)

	case TypeData:
		c.handleData(prev, frame.TTL, rssi, frame.Payload)

	case TypeAck:
		c.handleAck(frame.TTL, frame.Payload)

	default:
		c.logger.Debug("unknown frame type", zap.Uint8("type", uint8(frame.Type)))
		c.drop(DropMalformedFrame)
	}
}

func (c *Core) metricsFrame(t FrameType) {
	if c.metrics != nil {
		c.metrics.frame(t)
	}
}
