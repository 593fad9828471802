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
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	routeCleanupIntervalMs  = 1000
	upstreamProbeIntervalMs = 3000
	reconnectIntervalMs     = 10_000
)

// UpstreamLink is the collaborator the tick scheduler samples for the
// boolean "upstream link available" signal (§1, out of scope: Wi-Fi
// association itself). OpenAndSync is invoked once on the down->up
// edge to open the UDP endpoint and attempt a time sync (§4.10); it
// returns an error if either step fails, in which case the edge is
// not considered complete.
type UpstreamLink interface {
	IsAvailable() bool
	OpenAndSync() error
}

// Scheduler is the single cooperative timer loop of §4.10/§5: it
// drives periodic HELLO emission, route-table aging and upstream-link
// probing/reconnection. It owns no state the event loop doesn't also
// drive through Tick; there is nothing to lock.
type Scheduler struct {
	core  *Core
	clock Clock
	link  UpstreamLink

	lastHelloMs      uint32
	lastCleanupMs    uint32
	lastProbeMs      uint32
	lastReconnectMs  uint32
	haveTicked       bool
	reconnectLimiter *rate.Limiter

	logger *zap.Logger
}

// NewScheduler builds a Scheduler for core, sampling link for
// upstream availability. A golang.org/x/time/rate limiter bounds how
// often reconnect attempts actually dial out, so a fast-forwarded
// clock (as the simulation harness uses) can't busy-loop reconnects.
func NewScheduler(core *Core, clock Clock, link UpstreamLink, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		core:             core,
		clock:            clock,
		link:             link,
		reconnectLimiter: rate.NewLimiter(rate.Every(reconnectIntervalMs*time.Millisecond), 1),
		logger:           logger.Named("scheduler"),
	}
}

// Tick runs one cooperative pass: it checks each of the periodic
// actions in §4.10 against the elapsed time since it last ran, and
// fires whichever are due. It is safe to call as often as the event
// loop wakes (on frame arrival or a coarse sleep), since each action
// is itself interval-gated.
func (s *Scheduler) Tick() {
	now := s.clock.NowMs()

	if !s.haveTicked {
		s.lastHelloMs = now
		s.lastCleanupMs = now
		s.lastProbeMs = now
		s.lastReconnectMs = now
		s.haveTicked = true
	}

	if now-s.lastHelloMs >= s.core.helloIntervalMs {
		s.core.SendHello()
		s.lastHelloMs = now
	}

	if now-s.lastCleanupMs >= routeCleanupIntervalMs {
		if n := s.core.routes.Cleanup(now); n > 0 {
			s.logger.Debug("route cleanup invalidated entries", zap.Int("count", n))
		}
		if s.core.metrics != nil {
			s.core.metrics.routeTableSize.Set(float64(s.core.routes.Size()))
		}
		s.lastCleanupMs = now
	}

	if now-s.lastProbeMs >= upstreamProbeIntervalMs {
		s.probeUpstream()
		s.lastProbeMs = now
	}

	if !s.core.UpstreamUp() && now-s.lastReconnectMs >= reconnectIntervalMs {
		s.tryReconnect()
		s.lastReconnectMs = now
	}
}

// probeUpstream implements the 3000 ms sample in §4.10: on the
// down->up edge it opens the UDP endpoint and attempts a time sync
// once; on the up->down edge it just marks the link unavailable.
func (s *Scheduler) probeUpstream() {
	if s.link == nil {
		return
	}

	available := s.link.IsAvailable()
	wasUp := s.core.UpstreamUp()

	if available && !wasUp {
		corrID := xid.New().String()
		if err := s.link.OpenAndSync(); err != nil {
			s.logger.Debug("upstream open/sync failed", zap.String("correlation_id", corrID), zap.Error(err))
			return
		}
		s.logger.Info("upstream link up", zap.String("correlation_id", corrID))
		s.core.SetUpstreamUp(true)
		return
	}

	if !available && wasUp {
		s.core.SetUpstreamUp(false)
	}
}

// tryReconnect implements the 10000 ms retry-while-down cadence in
// §4.10, rate-limited so repeated ticks under a fast-forwarded test
// clock cannot spam the external Wi-Fi collaborator.
func (s *Scheduler) tryReconnect() {
	if s.link == nil || !s.reconnectLimiter.Allow() {
		return
	}
	corrID := xid.New().String()
	if s.link.IsAvailable() {
		if err := s.link.OpenAndSync(); err != nil {
			s.logger.Debug("upstream reconnect failed", zap.String("correlation_id", corrID), zap.Error(err))
			return
		}
		s.logger.Info("upstream reconnected", zap.String("correlation_id", corrID))
		s.core.SetUpstreamUp(true)
	}
}
