/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package luminet

import (
	"errors"
	"fmt"
)

// Kind is the semantic error category of a luminet Error, per §7. It
// generalises the teacher's device/uapi.go IPCError (a numeric code
// plus wrapped cause) into a small closed enum with errors.Is support.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetworkNotFound
	KindNetworkUpdate
	KindOnlineUpdateNeeded
	KindAuthentication
	KindUnsupportedProtocolVersion
	KindConnectionState
	KindBluetooth
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindNetworkNotFound:
		return "network_not_found"
	case KindNetworkUpdate:
		return "network_update"
	case KindOnlineUpdateNeeded:
		return "online_update_needed"
	case KindAuthentication:
		return "authentication"
	case KindUnsupportedProtocolVersion:
		return "unsupported_protocol_version"
	case KindConnectionState:
		return "connection_state"
	case KindBluetooth:
		return "bluetooth"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// sentinel per Kind, so errors.Is(err, luminet.ErrAuthentication) works
// without exposing Error's fields to callers who only want to branch on
// kind.
var (
	ErrNetworkNotFound             = errors.New("luminet: network not found")
	ErrNetworkUpdate               = errors.New("luminet: network update failed")
	ErrOnlineUpdateNeeded          = errors.New("luminet: online update needed, no usable cache")
	ErrAuthentication              = errors.New("luminet: authentication failed")
	ErrUnsupportedProtocolVersion  = errors.New("luminet: unsupported protocol version")
	ErrConnectionState             = errors.New("luminet: invalid connection state for operation")
	ErrBluetooth                   = errors.New("luminet: bluetooth transport error")
	ErrProtocol                    = errors.New("luminet: protocol error")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindNetworkNotFound:
		return ErrNetworkNotFound
	case KindNetworkUpdate:
		return ErrNetworkUpdate
	case KindOnlineUpdateNeeded:
		return ErrOnlineUpdateNeeded
	case KindAuthentication:
		return ErrAuthentication
	case KindUnsupportedProtocolVersion:
		return ErrUnsupportedProtocolVersion
	case KindConnectionState:
		return ErrConnectionState
	case KindBluetooth:
		return ErrBluetooth
	case KindProtocol:
		return ErrProtocol
	default:
		return errors.New("luminet: unknown error")
	}
}

// Error is the public error type returned by every luminet API. Kind
// lets callers branch with errors.Is against the package sentinels;
// Cause, when present, is the wrapped underlying error (a BLE transport
// failure, a cloud error, a channel protocol error, …).
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", sentinelFor(e.Kind), e.Cause)
	}
	return sentinelFor(e.Kind).Error()
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

func wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}
