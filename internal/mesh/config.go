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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration described in §6.2, loaded from
// YAML (§10.3) rather than parsed by hand.
type Config struct {
	NodeID          *uint8   `yaml:"node_id,omitempty"`
	LocalMAC        string   `yaml:"local_mac,omitempty"`
	HWAddrTable     []string `yaml:"hw_addr_table"`
	SinkID          uint8    `yaml:"sink_id"`
	SinkIP          string   `yaml:"sink_ip"`
	SinkUDPPort     uint16   `yaml:"sink_udp_port"`
	UpstreamSSID    string   `yaml:"upstream_ssid"`
	UpstreamPSK     string   `yaml:"upstream_psk"`
	HelloIntervalMs uint32   `yaml:"hello_interval_ms"`
	RouteTimeoutMs  uint32   `yaml:"route_timeout_ms"`
	MaxTTL          uint8    `yaml:"max_ttl"`
}

// DefaultConfig returns a Config with the constants from §6.2 applied,
// to be overridden by whatever the YAML file sets.
func DefaultConfig() Config {
	return Config{
		HelloIntervalMs: HelloIntervalMs,
		RouteTimeoutMs:  RouteTimeoutMs,
		MaxTTL:          MaxTTL,
	}
}

// LoadConfig reads and parses a YAML config file, grounded on the way
// caddy's config subsystem favors structured formats over hand-rolled
// flag parsing. Zero-value numeric fields are filled from
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("mesh: reading config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("mesh: parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ParseHWAddrTable converts the string table from YAML into HWAddr
// values.
func (c Config) ParseHWAddrTable() ([]HWAddr, error) {
	out := make([]HWAddr, 0, len(c.HWAddrTable))
	for _, s := range c.HWAddrTable {
		addr, err := ParseHWAddr(s)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// ParseHWAddr parses a colon-separated MAC string ("aa:bb:cc:dd:ee:ff").
func ParseHWAddr(s string) (HWAddr, error) {
	var a HWAddr
	n, err := fmt.Sscanf(s, "%02x:%02x:%02x:%02x:%02x:%02x",
		&a[0], &a[1], &a[2], &a[3], &a[4], &a[5])
	if err != nil || n != 6 {
		return HWAddr{}, &ConfigErr{Reason: fmt.Sprintf("invalid hw address %q", s)}
	}
	return a, nil
}

// Validate applies the uniqueness invariant from §3.1 and basic
// sanity checks, surfacing ConfigErr (§7) on failure.
func (c Config) Validate() error {
	if len(c.HWAddrTable) == 0 {
		return &ConfigErr{Reason: "hw_addr_table must not be empty"}
	}

	addrs, err := c.ParseHWAddrTable()
	if err != nil {
		return err
	}

	_, err = NewAddressMap(addrs, NodeID(c.SinkID))
	if err != nil {
		return err
	}

	if int(c.SinkID) < len(addrs) {
		return &ConfigErr{Reason: "sink_id must not collide with a mesh node id"}
	}

	if c.SinkIP == "" || c.SinkUDPPort == 0 {
		return &ConfigErr{Reason: "sink_ip and sink_udp_port are required"}
	}

	if c.NodeID == nil && c.LocalMAC == "" {
		return &ConfigErr{Reason: "local_mac is required when node_id is omitted, for boot-time self-detection"}
	}

	return nil
}

// ResolveSelf performs the §3.1 boot-time self-detection this Config
// describes: an explicit node_id is used as-is, otherwise local_mac is
// matched against addr via AddressMap.SelfID. Either path returns the
// local node's id and hardware address together so the caller never
// has to reconcile two separately-resolved values.
func (c Config) ResolveSelf(addr *AddressMap) (NodeID, HWAddr, error) {
	if c.NodeID != nil {
		id := NodeID(*c.NodeID)
		hw, ok := addr.AddrOf(id)
		if !ok {
			return 0, HWAddr{}, &ConfigErr{Reason: fmt.Sprintf("node_id %d not present in hw_addr_table", id)}
		}
		return id, hw, nil
	}

	localMAC, err := ParseHWAddr(c.LocalMAC)
	if err != nil {
		return 0, HWAddr{}, err
	}
	id, err := addr.SelfID(localMAC)
	if err != nil {
		return 0, HWAddr{}, err
	}
	return id, localMAC, nil
}
