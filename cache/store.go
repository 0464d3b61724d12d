/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package cache implements the on-disk persistent-state collaborator
// (§6): one row per network UUID holding the serialised session,
// keystore and last-seen network descriptor, plus a separate unit-type
// catalogue table with one row per fixture id, shared across networks. Modelled on leebo-zerogo's
// gorm.io/driver/sqlite-backed controller.InitDB, generalised from its
// AutoMigrate-on-open style to our own tables.
package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Version is bumped whenever the schema or serialised formats change
// incompatibly; a mismatch between a stored NetworkRow.CacheVersion and
// this value forces that network's cache to be recreated from scratch.
const Version = 1

// FixtureTTLSuccess and FixtureTTLFailure are the unit-type catalogue
// entry lifetimes (§9 supplemented feature): a successfully resolved
// fixture is trusted for 28 days, a failed lookup is retried after 7.
const (
	FixtureTTLSuccess = 28 * 24 * time.Hour
	FixtureTTLFailure = 7 * 24 * time.Hour
)

// NetworkRow is the persisted row for one network UUID.
type NetworkRow struct {
	NetworkUUID  string `gorm:"primarykey"`
	CacheVersion int    `gorm:"not null"`

	SessionCookie string    `json:"-"`
	SessionExpiry time.Time `json:"-"`
	KeyID         int

	KeystoreJSON string
	NetworkJSON  string
	Revision     int

	UpdatedAt time.Time
}

// FixtureRow is one cached unit-type descriptor, keyed by fixture id
// and shared across networks.
type FixtureRow struct {
	FixtureID  int `gorm:"primarykey"`
	PayloadJSON string
	Success    bool
	CachedAt   time.Time
	ExpiresAt  time.Time
}

// Store is the on-disk cache handle. It owns one *gorm.DB and a table
// of per-UUID locks (§5): the network-row methods serialise access to a
// given network's cache entry by acquiring that network's lock, never a
// package-level global.
type Store struct {
	db       *gorm.DB
	dirLocks sync.Map // map[string]*sync.Mutex, keyed by network UUID
}

// Open opens (creating if necessary) the sqlite-backed cache at path
// and migrates its schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}
	if err := db.AutoMigrate(&NetworkRow{}, &FixtureRow{}); err != nil {
		return nil, fmt.Errorf("cache: migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// lockFor returns the mutex guarding networkUUID's cache entry,
// creating it on first use.
func (s *Store) lockFor(networkUUID string) *sync.Mutex {
	v, _ := s.dirLocks.LoadOrStore(networkUUID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Network loads the cached row for networkUUID. A version mismatch is
// treated as a miss: the caller should fall back to the cloud and
// overwrite with PutNetwork. ok is false on genuine miss or version mismatch.
func (s *Store) Network(networkUUID string) (row NetworkRow, ok bool, err error) {
	lock := s.lockFor(networkUUID)
	lock.Lock()
	defer lock.Unlock()

	var r NetworkRow
	result := s.db.First(&r, "network_uuid = ?", networkUUID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return NetworkRow{}, false, nil
	}
	if result.Error != nil {
		return NetworkRow{}, false, fmt.Errorf("cache: load network %s: %w", networkUUID, result.Error)
	}
	if r.CacheVersion != Version {
		return NetworkRow{}, false, nil
	}
	return r, true, nil
}

// PutNetwork upserts the cached row for row.NetworkUUID, stamping the
// current cache Version and UpdatedAt.
func (s *Store) PutNetwork(row NetworkRow) error {
	lock := s.lockFor(row.NetworkUUID)
	lock.Lock()
	defer lock.Unlock()

	row.CacheVersion = Version
	row.UpdatedAt = timeNow()

	result := s.db.Save(&row)
	if result.Error != nil {
		return fmt.Errorf("cache: save network %s: %w", row.NetworkUUID, result.Error)
	}
	return nil
}

// Invalidate deletes the cached row for networkUUID, e.g. on a cloud
// HTTP 410 (§6).
func (s *Store) Invalidate(networkUUID string) error {
	lock := s.lockFor(networkUUID)
	lock.Lock()
	defer lock.Unlock()

	result := s.db.Delete(&NetworkRow{}, "network_uuid = ?", networkUUID)
	if result.Error != nil {
		return fmt.Errorf("cache: invalidate network %s: %w", networkUUID, result.Error)
	}
	return nil
}

// Fixture loads the cached fixture entry, returning ok=false if it is
// missing or has expired per its recorded TTL.
func (s *Store) Fixture(fixtureID int) (row FixtureRow, ok bool, err error) {
	var r FixtureRow
	result := s.db.First(&r, "fixture_id = ?", fixtureID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return FixtureRow{}, false, nil
	}
	if result.Error != nil {
		return FixtureRow{}, false, fmt.Errorf("cache: load fixture %d: %w", fixtureID, result.Error)
	}
	if timeNow().After(r.ExpiresAt) {
		return FixtureRow{}, false, nil
	}
	return r, true, nil
}

// PutFixture upserts a fixture catalogue entry with a TTL depending on
// whether the underlying lookup succeeded (§9 supplemented feature).
func (s *Store) PutFixture(fixtureID int, payloadJSON string, success bool) error {
	ttl := FixtureTTLFailure
	if success {
		ttl = FixtureTTLSuccess
	}
	now := timeNow()
	row := FixtureRow{
		FixtureID:   fixtureID,
		PayloadJSON: payloadJSON,
		Success:     success,
		CachedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}
	result := s.db.Save(&row)
	if result.Error != nil {
		return fmt.Errorf("cache: save fixture %d: %w", fixtureID, result.Error)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// timeNow is a var so tests can pin the clock used for UpdatedAt
// stamps and fixture TTLs.
var timeNow = time.Now
