/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package unit

import "testing"

func lookupDimmerType(id uint8) (Type, bool) {
	if id != 31 {
		return Type{}, false
	}
	return Type{
		ID:          31,
		StateLength: 1,
		Controls: []Control{
			{Kind: ControlDimmer, OffsetBits: 0, LengthBits: 8},
		},
	}, true
}

func TestParseBroadcastSingleRecord(t *testing.T) {
	// unit 31, flags = on|online, state_header = state_len(1)-1 << 4,
	// one state byte.
	body := []byte{31, 0x03, 0x00, 0x7F}

	records := ParseBroadcast(body, lookupDimmerType, nil)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.ID != 31 || !r.On || !r.Online {
		t.Fatalf("record = %+v, want on+online unit 31", r)
	}
	if r.State.Dimmer == nil || *r.State.Dimmer != 0x7F {
		t.Fatalf("dimmer = %v, want 0x7f", r.State.Dimmer)
	}
}

func TestParseBroadcastTruncatedRecordAbandonsRemainder(t *testing.T) {
	complete := []byte{31, 0x03, 0x00, 0x7F}
	truncated := []byte{31, 0x03, 0x00} // declares 1 state byte but none follow
	body := append(append([]byte{}, complete...), truncated...)

	records := ParseBroadcast(body, lookupDimmerType, nil)
	if len(records) != 1 {
		t.Fatalf("got %d records, want exactly the prior complete one", len(records))
	}
}

func TestParseBroadcastOptionalFieldsShiftOffsets(t *testing.T) {
	// flags bit 2 (con present) and bit 3 (sid present) each add one
	// skipped byte before the state bytes begin.
	body := []byte{31, 0x03 | 0x04 | 0x08, 0x00, 0xAA, 0xBB, 0x7F}

	records := ParseBroadcast(body, lookupDimmerType, nil)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if d := records[0].State.Dimmer; d == nil || *d != 0x7F {
		t.Fatalf("dimmer = %v, want 0x7f", d)
	}
}

func TestParseBroadcastUnknownUnitSkipped(t *testing.T) {
	body := []byte{99, 0x03, 0x00, 0x7F}
	records := ParseBroadcast(body, lookupDimmerType, nil)
	if len(records) != 0 {
		t.Fatalf("got %d records for unknown unit, want 0", len(records))
	}
}
