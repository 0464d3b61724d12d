/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package switchevent

import "log/slog"

const (
	typeClassic  = 0x08
	typeExtended = 0x10
	typeDropAll  = 0x29
)

// resyncThreshold: a submessage type byte above this value is not a
// recognised header at all; skip one byte and keep scanning rather than
// treating it as a zero-length submessage.
const resyncThreshold = 0x80

// Parse decodes the concatenated submessages of a switch/sensor
// broadcast body (§4.8). Each submessage is:
//
//	type(1) || subflags(1) || length_param(1) || payload(length bytes)
//
// where length = (length_param>>4)+1.
//
// A type-0x29 submessage means the whole containing frame is not a
// switch event and must be dropped in its entirety — Parse returns nil
// as soon as one is seen, discarding any events already decoded from
// earlier in the same body. A truncated trailing submessage stops the
// scan and returns everything decoded so far.
func Parse(body []byte, log *slog.Logger) []Event {
	if log == nil {
		log = slog.Default()
	}

	var events []Event
	pos := 0

	for pos < len(body) {
		typ := body[pos]

		if typ > resyncThreshold {
			pos++
			continue
		}

		if typ == typeDropAll {
			log.Debug("switch-event frame contains drop-frame submessage, discarding", "offset", pos)
			return nil
		}

		if pos+3 > len(body) {
			log.Warn("truncated switch-event submessage header, abandoning remainder", "offset", pos)
			break
		}

		subflags := body[pos+1]
		lengthParam := body[pos+2]
		length := int(lengthParam>>4) + 1
		payloadStart := pos + 3

		if payloadStart+length > len(body) {
			log.Warn("truncated switch-event submessage payload, abandoning remainder",
				"offset", pos, "declared", length, "available", len(body)-payloadStart)
			break
		}
		payload := body[payloadStart : payloadStart+length]

		switch typ {
		case typeClassic:
			if ev, ok := decodeClassic(lengthParam, payload); ok {
				ev.Type = typ
				ev.Flags = subflags
				events = append(events, ev)
			}
		case typeExtended:
			if ev, ok := decodeExtended(lengthParam, body, pos, payload); ok {
				ev.Type = typ
				ev.Flags = subflags
				events = append(events, ev)
			}
		default:
			log.Debug("skipping unrecognised switch-event submessage type", "type", typ, "offset", pos)
		}

		pos = payloadStart + length
	}

	return events
}

// decodeClassic handles a type-0x08 submessage: unit_id(1) action(1)
// extra(...). Button id is the low nibble of the length parameter. A
// fully zero length parameter (both nibbles) is the spurious,
// no-button notification that §4.8 says to suppress; a zero low
// nibble paired with a non-zero upper nibble is a real button press
// and still reports button 0. The press/release bit is bit 1 of the
// action byte.
func decodeClassic(lengthParam byte, payload []byte) (Event, bool) {
	if len(payload) < 2 {
		return Event{}, false
	}
	if lengthParam == 0 {
		return Event{}, false
	}
	button := lengthParam & 0x0F

	action := payload[1]
	kind := KindPress
	if action&0x02 != 0 {
		kind = KindRelease
	}

	return Event{
		Button: button,
		UnitID: payload[0],
		Action: action,
		Kind:   kind,
		Extra:  append([]byte(nil), payload[2:]...),
	}, true
}

// decodeExtended handles a type-0x10 submessage: a(1) action(1)
// unit_id(1) extra(...). Button id is the low nibble of the length
// parameter, falling back to the upper nibble when the low nibble is
// zero. Press/release/hold state is read from a separate byte at a
// fixed offset from the start of the submessage header.
func decodeExtended(lengthParam byte, body []byte, submsgStart int, payload []byte) (Event, bool) {
	if len(payload) < 3 {
		return Event{}, false
	}

	button := lengthParam & 0x0F
	if button == 0 {
		button = (lengthParam >> 4) & 0x0F
	}

	const stateByteOffset = 9
	kind := KindUnknown
	if idx := submsgStart + stateByteOffset; idx < len(body) {
		switch body[idx] {
		case 0x01:
			kind = KindPress
		case 0x02:
			kind = KindRelease
		case 0x09:
			kind = KindHold
		case 0x0C:
			kind = KindReleaseAfterHold
		}
	}

	return Event{
		Button: button,
		UnitID: payload[2],
		Action: payload[1],
		Kind:   kind,
		Extra:  append([]byte(nil), payload[3:]...),
	}, true
}
