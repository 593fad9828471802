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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus series a Core publishes (§10.5). A
// nil *Metrics is valid everywhere it's used; Core checks for nil
// before touching it, so metrics remain opt-in.
type Metrics struct {
	framesProcessed *prometheus.CounterVec
	drops           *prometheus.CounterVec
	routeTableSize  prometheus.Gauge
	dedupOccupancy  *prometheus.GaugeVec
	dedupEvictions  *prometheus.CounterVec
	rreqOriginated  prometheus.Counter
	rreqForwarded   prometheus.Counter
	rrepInstalled   prometheus.Counter
	rerrReceived    prometheus.Counter
	upstreamUp      prometheus.Gauge
	acksRelayed     prometheus.Counter
	acksTerminated  prometheus.Counter
}

// NewMetrics registers the mesh core's series against reg, grounded
// on caddy's promauto-based metrics.go. Pass prometheus.NewRegistry()
// for an isolated registry (as cmd/meshd run does) or
// prometheus.DefaultRegisterer for the global one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	const ns = "mesh"

	return &Metrics{
		framesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "frames_processed_total",
			Help: "Frames processed by type.",
		}, []string{"type"}),
		drops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "drops_total",
			Help: "Frames dropped by reason.",
		}, []string{"reason"}),
		routeTableSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "route_table_size",
			Help: "Number of valid route-table entries.",
		}),
		dedupOccupancy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "dedup_cache_occupancy",
			Help: "Entries currently held in each dedup cache.",
		}, []string{"cache"}),
		dedupEvictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "dedup_cache_evictions_total",
			Help: "Entries evicted from each dedup cache.",
		}, []string{"cache"}),
		rreqOriginated: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "rreq_originated_total",
			Help: "RREQs originated locally.",
		}),
		rreqForwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "rreq_forwarded_total",
			Help: "RREQs rebroadcast as a forwarder.",
		}),
		rrepInstalled: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "rrep_installed_total",
			Help: "Routes installed from an RREP.",
		}),
		rerrReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "rerr_received_total",
			Help: "RERRs processed.",
		}),
		upstreamUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "upstream_link_up",
			Help: "1 if the upstream UDP link is currently available.",
		}),
		acksRelayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "acks_relayed_total",
			Help: "ACKs rebroadcast on the radio toward the sink.",
		}),
		acksTerminated: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "acks_terminated_total",
			Help: "ACKs handed off to UDP as a gateway bridge.",
		}),
	}
}

func (m *Metrics) frame(t FrameType) {
	if m == nil {
		return
	}
	m.framesProcessed.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) drop(reason DropReason) {
	if m == nil {
		return
	}
	m.drops.WithLabelValues(string(reason)).Inc()
}

// setDedupOccupancy reports a cache's current entry count (§10.5).
func (m *Metrics) setDedupOccupancy(cache string, n int) {
	if m == nil {
		return
	}
	m.dedupOccupancy.WithLabelValues(cache).Set(float64(n))
}

// dedupEvicted reports n entries evicted from cache (§10.5).
func (m *Metrics) dedupEvicted(cache string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dedupEvictions.WithLabelValues(cache).Add(float64(n))
}
