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

// dedupCache is a bounded FIFO with wall-time eviction, per §3.4: three
// instances of this same shape back the reverse-path, data-seen and
// ack-seen tables, differing only in key type, capacity and retention.
type dedupCache struct {
	name      string
	capacity  int
	retention uint32 // ms
	order     []string
	seen      map[string]uint32 // key -> insertion time (ms)
	metrics   *Metrics
}

func newDedupCache(name string, capacity int, retentionMs uint32, metrics *Metrics) *dedupCache {
	return &dedupCache{
		name:      name,
		capacity:  capacity,
		retention: retentionMs,
		seen:      make(map[string]uint32, capacity),
		metrics:   metrics,
	}
}

// evictExpired drops entries older than the retention window. Called
// on every lookup per §3.4 ("entries older than the retention window
// are evicted first"). Reports each eviction and the resulting
// occupancy to the cache's §10.5 series.
func (c *dedupCache) evictExpired(now uint32) {
	if len(c.order) == 0 {
		return
	}
	i := 0
	for ; i < len(c.order); i++ {
		ts, ok := c.seen[c.order[i]]
		if !ok {
			continue
		}
		if now-ts <= c.retention {
			break
		}
		delete(c.seen, c.order[i])
	}
	if i > 0 {
		c.order = c.order[i:]
		c.metrics.dedupEvicted(c.name, i)
		c.metrics.setDedupOccupancy(c.name, len(c.order))
	}
}

// has reports whether key is present, after evicting expired entries.
func (c *dedupCache) has(now uint32, key string) bool {
	c.evictExpired(now)
	_, ok := c.seen[key]
	return ok
}

// insert records key at time now, evicting the oldest entry if the
// cache is at capacity (FIFO, §3.4). No-op if key is already present
// (invariant: no duplicate keys).
func (c *dedupCache) insert(now uint32, key string) {
	c.evictExpired(now)
	if _, dup := c.seen[key]; dup {
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
		c.metrics.dedupEvicted(c.name, 1)
	}
	c.order = append(c.order, key)
	c.seen[key] = now
	c.metrics.setDedupOccupancy(c.name, len(c.order))
}

func (c *dedupCache) len() int { return len(c.order) }

// Cache capacities and retention from §3.4.
const (
	reversePathCapacity = 30
	dataSeenCapacity    = 60
	ackSeenCapacity     = 40
	dedupRetentionMs    = 30_000
)

// reversePathTable maps (source_id, rreq_id) -> prev_hop, the
// reverse-path bookkeeping RREP unicast relies on (§3.4, §4.5).
type reversePathTable struct {
	cache *dedupCache
	hops  map[string]NodeID
}

func newReversePathTable(metrics *Metrics) *reversePathTable {
	return &reversePathTable{
		cache: newDedupCache("reverse_path", reversePathCapacity, dedupRetentionMs, metrics),
		hops:  make(map[string]NodeID, reversePathCapacity),
	}
}

func reversePathKey(source NodeID, rreqID uint32) string {
	return keyOf2(uint32(source), rreqID)
}

// has reports whether a reverse-path entry already exists for
// (source, rreqID); RREQ receivers use this to suppress storms (§4.4
// step 1).
func (t *reversePathTable) has(now uint32, source NodeID, rreqID uint32) bool {
	return t.cache.has(now, reversePathKey(source, rreqID))
}

// insert records prevHop as the reverse path for (source, rreqID).
func (t *reversePathTable) insert(now uint32, source NodeID, rreqID uint32, prevHop NodeID) {
	key := reversePathKey(source, rreqID)
	t.cache.insert(now, key)
	t.hops[key] = prevHop
	t.pruneHops()
}

// lookup returns the previous hop recorded for (source, rreqID), used
// to unicast the RREP back along the reverse path (§4.5).
func (t *reversePathTable) lookup(now uint32, source NodeID, rreqID uint32) (NodeID, bool) {
	key := reversePathKey(source, rreqID)
	if !t.cache.has(now, key) {
		return 0, false
	}
	hop, ok := t.hops[key]
	return hop, ok
}

// pruneHops drops hop entries whose cache key has fallen out of the
// FIFO, keeping the side table from growing unbounded.
func (t *reversePathTable) pruneHops() {
	if len(t.hops) <= t.cache.capacity {
		return
	}
	live := make(map[string]struct{}, len(t.cache.order))
	for _, k := range t.cache.order {
		live[k] = struct{}{}
	}
	for k := range t.hops {
		if _, ok := live[k]; !ok {
			delete(t.hops, k)
		}
	}
}

// dataSeenTable dedups DATA packets by (source_id, packet_id) (§3.4,
// §4.7 step 1), the mechanism that guarantees "no packet looping"
// (§8.1): a given node processes any (source, packet_id) at most once.
type dataSeenTable struct {
	cache *dedupCache
}

func newDataSeenTable(metrics *Metrics) *dataSeenTable {
	return &dataSeenTable{cache: newDedupCache("data_seen", dataSeenCapacity, dedupRetentionMs, metrics)}
}

func dataSeenKey(source NodeID, packetID uint32) string {
	return keyOf2(uint32(source), packetID)
}

func (t *dataSeenTable) has(now uint32, source NodeID, packetID uint32) bool {
	return t.cache.has(now, dataSeenKey(source, packetID))
}

func (t *dataSeenTable) insert(now uint32, source NodeID, packetID uint32) {
	t.cache.insert(now, dataSeenKey(source, packetID))
}

// ackSeenTable dedups ACKs by (packet_id, ack_from) (§3.4, §4.8).
type ackSeenTable struct {
	cache *dedupCache
}

func newAckSeenTable(metrics *Metrics) *ackSeenTable {
	return &ackSeenTable{cache: newDedupCache("ack_seen", ackSeenCapacity, dedupRetentionMs, metrics)}
}

func ackSeenKey(packetID uint32, ackFrom NodeID) string {
	return keyOf2(packetID, uint32(ackFrom))
}

func (t *ackSeenTable) has(now uint32, packetID uint32, ackFrom NodeID) bool {
	return t.cache.has(now, ackSeenKey(packetID, ackFrom))
}

func (t *ackSeenTable) insert(now uint32, packetID uint32, ackFrom NodeID) {
	t.cache.insert(now, ackSeenKey(packetID, ackFrom))
}

func keyOf2(a, b uint32) string {
	buf := make([]byte, 8)
	x := htonl(a)
	y := htonl(b)
	copy(buf[0:4], x[:])
	copy(buf[4:8], y[:])
	return string(buf)
}
