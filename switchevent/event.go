/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package switchevent decodes the multiplexed sensor/button broadcast
// body described in §4.8: a concatenation of submessages, each with a
// type/subflags/length header, covering the classic (0x08) and
// extended (0x10) button event sub-formats.
package switchevent

// Kind is the normalised press/release/hold classification of an Event.
type Kind int

const (
	KindUnknown Kind = iota
	KindPress
	KindRelease
	KindHold
	KindReleaseAfterHold
)

func (k Kind) String() string {
	switch k {
	case KindPress:
		return "press"
	case KindRelease:
		return "release"
	case KindHold:
		return "hold"
	case KindReleaseAfterHold:
		return "release_after_hold"
	default:
		return "unknown"
	}
}

// Event is one parsed submessage.
type Event struct {
	Type     byte
	Button   uint8
	UnitID   uint8
	Action   byte
	Kind     Kind
	Flags    byte
	Extra    []byte
}
