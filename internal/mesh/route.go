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

// RouteTimeoutMs is the default staleness window from §3.3.
const RouteTimeoutMs = 10_000

// RouteEntry is one per-destination route (§3.3). An entry is valid
// iff Seq != 0 and HasNextHop is true.
type RouteEntry struct {
	NextHop      NodeID
	HasNextHop   bool
	HopCount     uint8
	Seq          uint32
	LastUpdateMs uint32
}

func (e RouteEntry) valid() bool { return e.Seq != 0 && e.HasNextHop }

// RouteTable holds one entry per possible destination, indexed by
// NodeID, per §4.2.
type RouteTable struct {
	entries   []RouteEntry
	timeoutMs uint32
}

// NewRouteTable allocates a table sized for n mesh destinations.
func NewRouteTable(n int, timeoutMs uint32) *RouteTable {
	return &RouteTable{entries: make([]RouteEntry, n), timeoutMs: timeoutMs}
}

// Has reports whether destination d currently has a valid route.
func (t *RouteTable) Has(d NodeID) bool {
	if int(d) >= len(t.entries) {
		return false
	}
	return t.entries[d].valid()
}

// Lookup returns the current entry for d (valid or not).
func (t *RouteTable) Lookup(d NodeID) (RouteEntry, bool) {
	if int(d) >= len(t.entries) {
		return RouteEntry{}, false
	}
	return t.entries[d], true
}

// Update offers a candidate route to destination d and applies the
// replacement rule from §3.3:
//  1. the entry is invalid, or
//  2. s > entry.seq (newer destination sequence), or
//  3. s == entry.seq && hc < entry.hop_count (equal freshness, shorter).
//
// Ties otherwise lose. Returns true if the candidate was installed.
func (t *RouteTable) Update(d NodeID, nextHop NodeID, hopCount uint8, seq uint32, nowMs uint32) bool {
	if int(d) >= len(t.entries) {
		return false
	}
	cur := t.entries[d]

	accept := !cur.valid() ||
		seq > cur.Seq ||
		(seq == cur.Seq && hopCount < cur.HopCount)

	if !accept {
		return false
	}

	t.entries[d] = RouteEntry{
		NextHop:      nextHop,
		HasNextHop:   true,
		HopCount:     hopCount,
		Seq:          seq,
		LastUpdateMs: nowMs,
	}
	return true
}

// Invalidate clears the route to d, e.g. on a matching RERR (§4.6,
// §8.2 S6).
func (t *RouteTable) Invalidate(d NodeID) {
	if int(d) >= len(t.entries) {
		return
	}
	t.entries[d] = RouteEntry{}
}

// Cleanup invalidates every entry whose age exceeds the configured
// timeout (§4.2, §8.2 S5). Idempotent; safe to call on every tick.
func (t *RouteTable) Cleanup(nowMs uint32) (invalidated int) {
	for d := range t.entries {
		e := &t.entries[d]
		if !e.valid() {
			continue
		}
		if nowMs-e.LastUpdateMs > t.timeoutMs {
			*e = RouteEntry{}
			invalidated++
		}
	}
	return invalidated
}

// Size reports the number of currently valid entries, for metrics.
func (t *RouteTable) Size() int {
	n := 0
	for _, e := range t.entries {
		if e.valid() {
			n++
		}
	}
	return n
}
