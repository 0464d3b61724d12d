/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package cloud

import "errors"

var (
	// ErrCacheInvalidated is returned for any call that received an
	// HTTP 410: the caller must drop its local cache for that network.
	ErrCacheInvalidated = errors.New("cloud: resource gone, cache invalidated")
	ErrNotFound         = errors.New("cloud: not found")
	ErrUnauthorized     = errors.New("cloud: session rejected")
)
