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

// sequenceCounter is a wrapping uint32 counter used both for
// local_seq (AODV source sequence + RREQ id) and packet_counter
// (§3.5). The first value returned by next() is 1, never 0: 0 is
// reserved as the "no ack requested" sentinel for packet ids and as
// "never updated" for route sequence numbers.
type sequenceCounter struct {
	value uint32
}

// next increments then returns the counter, wrapping on overflow. Per
// §3.5 the wraparound comparison hazard is an accepted limitation,
// mitigated in practice by the 30 s dedup retention window.
func (c *sequenceCounter) next() uint32 {
	c.value++
	if c.value == 0 {
		c.value = 1
	}
	return c.value
}
