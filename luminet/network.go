/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package luminet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luminet/luminet-go/cache"
	"github.com/luminet/luminet-go/cloud"
	"github.com/luminet/luminet-go/unit"
)

// PrepareNetwork resolves macAddress to a logical network id, logs in
// (reusing a cached, unexpired session where possible) and refreshes
// the network descriptor, sending the cached revision and falling back
// to the cached copy when the refresh fails (§6). The id lookup and the
// login have no cache fallback: a cloud failure there is returned as an
// error. An HTTP 410 from the descriptor refresh invalidates the cached
// entry for this network, per §6.
func (c *Client) PrepareNetwork(ctx context.Context, macAddress, password, deviceName string) (networkID string, err error) {
	networkID, err = c.cloud.ResolveNetworkID(ctx, macAddress)
	if err != nil {
		if errors.Is(err, cloud.ErrNotFound) {
			return "", wrap(KindNetworkNotFound, err)
		}
		return "", wrap(KindNetworkNotFound, err)
	}

	var cached cache.NetworkRow
	var haveCache bool
	if c.store != nil {
		cached, haveCache, err = c.store.Network(networkID)
		if err != nil {
			return "", wrap(KindNetworkUpdate, err)
		}
	}

	session := cached.SessionCookie
	if session == "" || (haveCache && !cached.SessionExpiry.IsZero() && cached.SessionExpiry.Before(time.Now())) {
		s, sessErr := c.cloud.CreateSession(ctx, networkID, password, deviceName)
		if sessErr != nil {
			if errors.Is(sessErr, cloud.ErrUnauthorized) {
				return "", wrap(KindAuthentication, sessErr)
			}
			return "", wrap(KindAuthentication, sessErr)
		}
		session = s.Cookie
		cached.SessionCookie = s.Cookie
		cached.SessionExpiry = time.UnixMilli(s.ExpiresAt)
		cached.KeyID = s.KeyID
	}

	revision := 0
	if haveCache {
		revision = cached.Revision
	}

	httpClient, ok := c.cloud.(*cloud.HTTPClient)
	cloudForFetch := c.cloud
	if ok {
		cloudForFetch = httpClient.WithSession(session)
	}

	network, fetchErr := cloudForFetch.FetchNetwork(ctx, networkID, cloud.NetworkRequest{
		FormatVersion: 1,
		DeviceName:    deviceName,
		Revision:      revision,
	})
	switch {
	case fetchErr == nil:
		cached.NetworkUUID = networkID
		cached.Revision = network.Revision
		raw, _ := json.Marshal(network)
		cached.NetworkJSON = string(raw)
		if c.store != nil {
			if err := c.store.PutNetwork(cached); err != nil {
				return "", wrap(KindNetworkUpdate, err)
			}
		}
		return networkID, nil

	case errors.Is(fetchErr, cloud.ErrCacheInvalidated):
		if c.store != nil {
			_ = c.store.Invalidate(networkID)
		}
		if !haveCache {
			return "", wrap(KindOnlineUpdateNeeded, fetchErr)
		}
		c.log.Warn("network cache invalidated by cloud, continuing with stale copy until next refresh", "network", networkID)
		return networkID, nil

	default:
		if haveCache {
			c.log.Warn("network refresh failed, falling back to cache", "network", networkID, "err", fetchErr)
			return networkID, nil
		}
		return "", wrap(KindNetworkUpdate, fetchErr)
	}
}

// ResolveFixture returns the unit type descriptor for fixtureID,
// consulting the cache first (28 day / 7 day TTL per §9 supplemented
// feature) and falling back to the cloud on a miss or expiry. A cached
// failed lookup that has not yet expired is returned as an error
// without asking the cloud again.
func (c *Client) ResolveFixture(ctx context.Context, fixtureID int) (unit.Type, error) {
	if c.store != nil {
		row, ok, err := c.store.Fixture(fixtureID)
		if err != nil {
			return unit.Type{}, wrap(KindNetworkUpdate, err)
		}
		if ok && row.Success {
			var typ unit.Type
			if err := json.Unmarshal([]byte(row.PayloadJSON), &typ); err == nil {
				return typ, nil
			}
		}
		if ok && !row.Success {
			return unit.Type{}, wrap(KindNetworkUpdate, fmt.Errorf("resolve fixture %d: cached lookup failure", fixtureID))
		}
	}

	fixture, err := c.cloud.FetchFixture(ctx, fixtureID)
	success := err == nil

	if c.store != nil {
		payload := ""
		if success {
			if raw, marshalErr := json.Marshal(fixture); marshalErr == nil {
				payload = string(raw)
			}
		}
		_ = c.store.PutFixture(fixtureID, payload, success)
	}

	if err != nil {
		return unit.Type{}, wrap(KindNetworkUpdate, fmt.Errorf("resolve fixture %d: %w", fixtureID, err))
	}

	var controls []unit.Control
	if err := json.Unmarshal(fixture.Controls, &controls); err != nil {
		return unit.Type{}, wrap(KindProtocol, fmt.Errorf("decode fixture %d controls: %w", fixtureID, err))
	}
	return unit.Type{
		ID:       fixture.ID,
		Model:    fixture.Model,
		Controls: controls,
	}, nil
}
