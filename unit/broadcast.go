/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package unit

import "log/slog"

// TypeLookup resolves a unit id to its static type, so the broadcast
// parser can decode that unit's state bytes against the right control
// layout.
type TypeLookup func(unitID uint8) (Type, bool)

// ParseBroadcast decodes the concatenated per-unit records of a
// UnitState broadcast body (§4.7):
//
//	id(1) || flags(1) || state_header(1) || optional fields || state_bytes || padding
//
// A truncated record at the end of the buffer is logged and the rest of
// the packet is abandoned; every complete record parsed so far is still
// returned (never propagated as an error).
func ParseBroadcast(data []byte, lookup TypeLookup, log *slog.Logger) []Record {
	if log == nil {
		log = slog.Default()
	}

	var records []Record
	pos := 0

	for pos+3 <= len(data) {
		start := pos
		id := data[pos]
		flags := data[pos+1]
		header := data[pos+2]
		pos += 3

		stateLen := int(header>>4) + 1
		priority := header & 0x0F

		if flags&0x04 != 0 {
			pos++
		}
		if flags&0x08 != 0 {
			pos++
		}
		if flags&0x10 != 0 {
			pos++
		}

		if pos+stateLen > len(data) {
			log.Warn("truncated unit-state record, abandoning remainder of packet",
				"unit_id", id, "available", len(data)-pos, "declared", stateLen)
			return records
		}

		stateBytes := data[pos : pos+stateLen]
		pos += stateLen

		padding := int(flags>>6) & 0x03
		pos += padding
		if pos > len(data) {
			pos = len(data)
		}

		typ, ok := lookup(id)
		if !ok {
			log.Warn("unit-state record for unknown unit type, skipping decode", "unit_id", id)
			continue
		}

		st, err := Unpack(stateBytes, typ)
		if err != nil {
			log.Warn("failed to decode unit state", "unit_id", id, "err", err, "record_start", start)
			continue
		}

		records = append(records, Record{
			ID:       id,
			Priority: priority,
			On:       flags&0x01 != 0,
			Online:   flags&0x02 != 0,
			State:    st,
		})
	}

	return records
}
