/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package cache

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNetworkRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.Network("net-1"); err != nil || ok {
		t.Fatalf("expected miss on empty store, got ok=%v err=%v", ok, err)
	}

	if err := s.PutNetwork(NetworkRow{NetworkUUID: "net-1", Revision: 3, NetworkJSON: `{"units":[]}`}); err != nil {
		t.Fatal(err)
	}

	row, ok, err := s.Network("net-1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if row.Revision != 3 || row.CacheVersion != Version {
		t.Fatalf("row = %+v, want revision 3 and current cache version", row)
	}
}

func TestNetworkVersionMismatchIsTreatedAsMiss(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutNetwork(NetworkRow{NetworkUUID: "net-1"}); err != nil {
		t.Fatal(err)
	}

	// simulate a stale row written by an older cache version
	if err := s.db.Model(&NetworkRow{}).Where("network_uuid = ?", "net-1").
		Update("cache_version", Version+1000).Error; err != nil {
		t.Fatal(err)
	}

	if _, ok, err := s.Network("net-1"); err != nil || ok {
		t.Fatalf("expected version mismatch to read as a miss, got ok=%v err=%v", ok, err)
	}
}

func TestInvalidateRemovesRow(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutNetwork(NetworkRow{NetworkUUID: "net-1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Invalidate("net-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Network("net-1"); err != nil || ok {
		t.Fatalf("expected miss after invalidate, got ok=%v err=%v", ok, err)
	}
}

func TestFixtureTTLExpiry(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return base }
	t.Cleanup(func() { timeNow = time.Now })

	if err := s.PutFixture(7, `{"controls":[]}`, true); err != nil {
		t.Fatal(err)
	}

	// still within the 28-day success TTL
	timeNow = func() time.Time { return base.Add(27 * 24 * time.Hour) }
	if _, ok, err := s.Fixture(7); err != nil || !ok {
		t.Fatalf("expected hit within TTL, got ok=%v err=%v", ok, err)
	}

	// past the 28-day TTL
	timeNow = func() time.Time { return base.Add(29 * 24 * time.Hour) }
	if _, ok, err := s.Fixture(7); err != nil || ok {
		t.Fatalf("expected expiry past TTL, got ok=%v err=%v", ok, err)
	}
}

func TestFixtureFailureUsesShorterTTL(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return base }
	t.Cleanup(func() { timeNow = time.Now })

	if err := s.PutFixture(8, "", false); err != nil {
		t.Fatal(err)
	}

	timeNow = func() time.Time { return base.Add(8 * 24 * time.Hour) }
	if _, ok, err := s.Fixture(8); err != nil || ok {
		t.Fatalf("expected failed-lookup entry to expire after 7 days, got ok=%v err=%v", ok, err)
	}
}
