/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package channel

import "fmt"

// Key is a single network key, scoped to one Keystore by Id. Role is
// 0..3; the active key is the one with the highest role.
type Key struct {
	ID   uint8
	Type uint8
	Role uint8
	Name string
	Key  [16]byte
}

// Keystore is an in-memory collection of network keys. It never
// persists itself; persistence is the caller's job (cache.Store).
type Keystore struct {
	keys []Key
}

// NewKeystore returns an empty keystore.
func NewKeystore() *Keystore {
	return &Keystore{}
}

// Add inserts a key, ignoring duplicates by Id (the original client's
// behaviour: re-adding an existing key id is a silent no-op).
func (ks *Keystore) Add(k Key) error {
	if k.Role > 3 {
		return fmt.Errorf("channel: key role %d out of range 0..3", k.Role)
	}
	for _, existing := range ks.keys {
		if existing.ID == k.ID {
			return nil
		}
	}
	ks.keys = append(ks.keys, k)
	return nil
}

// Clear empties the keystore.
func (ks *Keystore) Clear() {
	ks.keys = nil
}

// Keys returns a copy of all keys currently held.
func (ks *Keystore) Keys() []Key {
	out := make([]Key, len(ks.keys))
	copy(out, ks.keys)
	return out
}

// ActiveKey returns the key with the highest Role, or false if the
// keystore is empty (a keyless network). Stable under insertion order:
// the first-inserted key among ties for the max role wins.
func (ks *Keystore) ActiveKey() (Key, bool) {
	var best Key
	found := false
	for _, k := range ks.keys {
		if !found || k.Role > best.Role {
			best = k
			found = true
		}
	}
	return best, found
}
