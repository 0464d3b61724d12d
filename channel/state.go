/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package channel implements the secure on-device channel to a single
// mesh lighting unit: the ECDH/challenge handshake, AES-CTR+CMAC framed
// encryption, the outgoing operation builder, and the inbound broadcast
// demultiplexer.
package channel

import "fmt"

// State is the connection state of a Channel. Transitions are monotonic
// forward during handshake; a transport drop always returns to StateNone.
type State uint32

const (
	StateNone State = iota
	StateConnected
	StateKeyExchanged
	StateAuthenticated
	StateError
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateConnected:
		return "connected"
	case StateKeyExchanged:
		return "key_exchanged"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// MinProtocolVersion is the lowest hello protocol version this client
// will accept; anything below is UnsupportedProtocolVersion.
const MinProtocolVersion = 10

// MaxProtocolVersion is the highest protocol version this client has
// been validated against. Higher versions are accepted with a warning.
const MaxProtocolVersion = 10
