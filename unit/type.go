/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package unit models a lighting unit's static capabilities (Type,
// Control) and its decoded runtime state (State, Unit), and
// implements the bit-packed control pack/unpack algorithms of §4.7.
package unit

// ControlKind enumerates the closed set of control kinds a unit can
// expose. Unknown carries the raw field bytes for debugging rather than
// silently dropping them (§9 REDESIGN of the original Unknown=99
// sentinel).
type ControlKind int

const (
	ControlDimmer ControlKind = iota
	ControlWhite
	ControlRGB
	ControlOnOff
	ControlTemperature
	ControlVertical
	ControlColorSource
	ControlXY
	ControlSlider
	ControlSensor
	ControlKindUnknown
)

// Control describes one bit-packed field within a unit's state bytes.
type Control struct {
	Kind       ControlKind
	OffsetBits int
	LengthBits int
	Default    int
	ReadOnly   bool
	Min        int
	Max        int
}

// Type is the static descriptor shared by every unit of the same
// model: id, model/manufacturer metadata, the length of its packed
// state in bytes, and its ordered controls.
type Type struct {
	ID           int
	Model        string
	Manufacturer string
	Mode         string
	StateLength  int
	Controls     []Control
}

// Control returns the first control of the given kind, if any.
func (t Type) Control(kind ControlKind) (Control, bool) {
	for _, c := range t.Controls {
		if c.Kind == kind {
			return c, true
		}
	}
	return Control{}, false
}
