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

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mhmdangga28/fanet-mesh/internal/mesh"
	"github.com/mhmdangga28/fanet-mesh/internal/mesh/udptransport"
)

// nullRadio stands in for the ESP-NOW-like driver a real board would
// supply; wiring a physical driver is a board-support-package concern
// outside this module's boundary (§1). It satisfies
// mesh.RadioTransport so the daemon still boots and exercises the
// UDP-only path on hardware without a radio attached yet.
type nullRadio struct {
	logger *zap.Logger
}

func (r *nullRadio) Broadcast(frame []byte) error {
	r.logger.Debug("radio broadcast dropped: no radio driver wired")
	return fmt.Errorf("run: no radio driver configured")
}

func (r *nullRadio) Unicast(dst mesh.HWAddr, frame []byte) error {
	r.logger.Debug("radio unicast dropped: no radio driver wired", zap.Stringer("dst", dst))
	return fmt.Errorf("run: no radio driver configured")
}

func (r *nullRadio) EnsurePeer(dst mesh.HWAddr) error {
	return fmt.Errorf("run: no radio driver configured")
}

type wallClock struct{}

func (wallClock) NowMs() uint32     { return uint32(time.Now().UnixMilli()) }
func (wallClock) WallSeconds() int64 { return time.Now().Unix() }

func newRunCommand() *cobra.Command {
	var configPath string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the mesh routing daemon against a live config",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return fmt.Errorf("run: building logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			return runDaemon(cmd.Context(), logger, configPath, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "meshd.yaml", "path to the YAML config file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve Prometheus metrics on")

	return cmd
}

func runDaemon(ctx context.Context, logger *zap.Logger, configPath, metricsAddr string) error {
	cfg, err := mesh.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("run: loading config: %w", err)
	}

	table, err := cfg.ParseHWAddrTable()
	if err != nil {
		return fmt.Errorf("run: parsing hw address table: %w", err)
	}
	addrMap, err := mesh.NewAddressMap(table, mesh.NodeID(cfg.SinkID))
	if err != nil {
		return fmt.Errorf("run: building address map: %w", err)
	}

	// ResolveSelf covers both configured and autodetected node_id
	// (§10.3): when node_id is omitted, local_mac is matched against
	// hw_addr_table via the same AddressMap.SelfID a board's boot
	// sequence would call.
	selfID, selfHW, err := cfg.ResolveSelf(addrMap)
	if err != nil {
		return fmt.Errorf("run: resolving local node id: %w", err)
	}

	sinkAddr, err := netip.ParseAddr(cfg.SinkIP)
	if err != nil {
		return fmt.Errorf("run: parsing sink_ip: %w", err)
	}
	sink := netip.AddrPortFrom(sinkAddr, cfg.SinkUDPPort)

	reg := prometheus.NewRegistry()
	metrics := mesh.NewMetrics(reg)

	link := &udptransport.Link{
		Sink:      sink,
		Logger:    logger,
		Available: func() bool { return true },
	}
	if err := link.OpenAndSync(); err != nil {
		logger.Warn("initial upstream dial failed, will retry via scheduler", zap.Error(err))
	}

	core := mesh.NewCore(selfID, addrMap, selfHW, &nullRadio{logger: logger}, link, wallClock{}, mesh.Options{
		MaxTTL:          cfg.MaxTTL,
		HelloIntervalMs: cfg.HelloIntervalMs,
		Logger:          logger,
		Metrics:         metrics,
	})

	scheduler := mesh.NewScheduler(core, wallClock{}, link, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("meshd started", zap.Uint8("node_id", uint8(selfID)), zap.String("metrics_addr", metricsAddr))

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("meshd shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			scheduler.Tick()
			for {
				frame, ok := link.TryRecv()
				if !ok {
					break
				}
				core.HandleUDPFrame(frame)
			}
		}
	}
}

