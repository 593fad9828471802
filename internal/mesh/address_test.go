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

import "testing"

var (
	macA = HWAddr{0xAA, 0, 0, 0, 0, 0}
	macB = HWAddr{0xBB, 0, 0, 0, 0, 0}
	macC = HWAddr{0xCC, 0, 0, 0, 0, 0}
)

func TestAddressMapSelfDetection(t *testing.T) {
	m, err := NewAddressMap([]HWAddr{macA, macB, macC}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, err := m.SelfID(macB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
}

func TestAddressMapSelfDetectionFailsConfigError(t *testing.T) {
	m, err := NewAddressMap([]HWAddr{macA, macB}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.SelfID(macC); err == nil {
		t.Fatalf("expected ConfigErr for unknown local mac")
	} else if _, ok := err.(*ConfigErr); !ok {
		t.Fatalf("expected *ConfigErr, got %T", err)
	}
}

func TestAddressMapRejectsDuplicates(t *testing.T) {
	if _, err := NewAddressMap([]HWAddr{macA, macA}, 4); err == nil {
		t.Fatalf("expected error for duplicate addresses")
	}
}

func TestAddressMapRoundTrip(t *testing.T) {
	m, err := NewAddressMap([]HWAddr{macA, macB}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	addr, ok := m.AddrOf(1)
	if !ok || addr != macB {
		t.Fatalf("expected macB, got %v (ok=%v)", addr, ok)
	}

	id, ok := m.IDOf(macA)
	if !ok || id != 0 {
		t.Fatalf("expected id 0, got %d (ok=%v)", id, ok)
	}
}
