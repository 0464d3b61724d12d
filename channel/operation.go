/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package channel

import (
	"encoding/binary"
	"fmt"
)

// OpCode identifies an outgoing operation, per §4.4.
type OpCode uint8

const (
	OpResponse       OpCode = 0
	OpSetLevel       OpCode = 1
	OpSetVertical    OpCode = 4
	OpSetWhite       OpCode = 5
	OpSetColor       OpCode = 7
	OpSetTemperature OpCode = 10
	OpSetState       OpCode = 48
)

// MaxPayloadLen is the largest command_payload accepted by the builder,
// per the invariant in §3.
const MaxPayloadLen = 63

// Lifetime is the fixed operation lifetime this library sets in every
// outgoing packet's flags field.
const Lifetime = 5

// TargetUnit builds the 16-bit address of a single unit.
func TargetUnit(deviceID uint8) uint16 { return uint16(deviceID)<<8 | 0x01 }

// TargetGroup builds the 16-bit address of a group.
func TargetGroup(groupID uint8) uint16 { return uint16(groupID)<<8 | 0x02 }

// TargetScene builds the 16-bit address of a scene.
func TargetScene(sceneID uint8) uint16 { return uint16(sceneID)<<8 | 0x04 }

// TargetNetwork is the whole-network broadcast address.
const TargetNetwork uint16 = 0x0000

// Builder packs outgoing operations into wire payloads and owns the
// per-connection origin counter (§4.4). Zero value is not usable; use
// NewBuilder.
type Builder struct {
	origin uint16
}

// NewBuilder returns a Builder with the origin counter at its initial
// value of 1, per the original implementation's OperationsContext.
func NewBuilder() *Builder {
	return &Builder{origin: 1}
}

// PrepareOperation implements §4.4: builds
// flags_and_len(2) || opcode(1) || origin(2) || target(2) || reserved(2,=0) || payload
// and advances the origin counter (wrapping mod 2^16).
func (b *Builder) PrepareOperation(op OpCode, target uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("channel: payload of %d bytes exceeds max %d", len(payload), MaxPayloadLen)
	}

	flags := uint16(Lifetime&0x0F)<<11 | uint16(len(payload))

	out := make([]byte, 11+len(payload))
	binary.BigEndian.PutUint16(out[0:2], flags)
	out[2] = byte(op)
	binary.BigEndian.PutUint16(out[3:5], b.origin)
	binary.BigEndian.PutUint16(out[5:7], target)
	binary.BigEndian.PutUint16(out[7:9], 0)
	copy(out[9:], payload)

	b.origin++

	return out, nil
}

// TurnOnPayload is the canonical SetLevel payload for "restore last
// level, use full time": level byte 0xFF combined with flags bit 0
// (restore last level) and bit 2 (use full time).
func TurnOnPayload() []byte {
	return []byte{0xFF, 0x05}
}

// SetLevelPayload builds the SetLevel command payload for an explicit
// 0..255 level: a single byte, per the flags_and_len field's length
// count (§8 scenario 6). Only turnOn's restore-last-level sentinel
// carries the extra flags byte.
func SetLevelPayload(level uint8) []byte {
	return []byte{level}
}

// SceneLevelPayload builds the payload for switching to a scene at the
// given level (255 = restore last level, matching turnOn's convention).
func SceneLevelPayload(level uint8) []byte {
	if level == 0xFF {
		return TurnOnPayload()
	}
	return SetLevelPayload(level)
}

// HueSatPayload quantises a normalised (hue, sat) pair in [0,1) / [0,1]
// to the wire encoding used by SetColor: hue as u16 little-endian
// quantised to 1024 steps, saturation as u8 quantised to 256 steps.
func HueSatPayload(hue, sat float64) []byte {
	h := uint16(quantise(hue, 1024))
	s := uint8(quantise(sat, 256))

	out := make([]byte, 3)
	binary.LittleEndian.PutUint16(out[0:2], h)
	out[2] = s
	return out
}

func quantise(v float64, steps int) int {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	q := int(v*float64(steps-1) + 0.5)
	if q >= steps {
		q = steps - 1
	}
	return q
}
