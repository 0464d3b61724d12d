/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package unit

import "fmt"

// State is a parsed representation of a unit's state: at most one
// value per control kind, all optional (not every unit exposes every
// kind). Unset values are nil.
type State struct {
	Dimmer      *uint8
	White       *uint8
	Vertical    *uint8
	Slider      *uint8
	RGB         *RGBValue
	Temperature *int
	ColorSource *ColorSource
	XY          *XYValue
	Unknown     map[int][]byte // offset_bits -> raw field bytes, for debugging
}

// RGBValue is the internal (hue, sat) representation a unit's RGB
// control actually carries on the wire (§4.7); value is implicitly 1.
type RGBValue struct {
	Hue float64
	Sat float64
}

// XYValue is a normalised CIE xy chromaticity pair.
type XYValue struct {
	X, Y float64
}

// ColorSource is the active colour-mode tag of a multi-mode light.
type ColorSource int

const (
	ColorSourceTemperature ColorSource = 0
	ColorSourceRGB         ColorSource = 1
	ColorSourceXY          ColorSource = 2
)

// readField extracts the raw value of one bit-packed control field
// from data, per §4.7 step 1-2: read the minimal byte span, interpret
// little-endian, shift off the sub-byte offset, and mask to length_bits.
func readField(data []byte, offsetBits, lengthBits int) (uint64, error) {
	startByte := offsetBits / 8
	bitShift := offsetBits % 8
	nBytes := (lengthBits + bitShift + 7) / 8

	if startByte+nBytes > len(data) {
		return 0, fmt.Errorf("unit: control field at bit %d/%d exceeds state of %d bytes", offsetBits, lengthBits, len(data))
	}

	var raw uint64
	for i := nBytes - 1; i >= 0; i-- {
		raw = raw<<8 | uint64(data[startByte+i])
	}
	raw >>= uint(bitShift)
	mask := uint64(1)<<uint(lengthBits) - 1
	return raw & mask, nil
}

// writeField is the inverse of readField: OR a masked, shifted value
// into the minimal byte span of out.
func writeField(out []byte, offsetBits, lengthBits int, value uint64) error {
	startByte := offsetBits / 8
	bitShift := offsetBits % 8
	nBytes := (lengthBits + bitShift + 7) / 8

	if startByte+nBytes > len(out) {
		return fmt.Errorf("unit: control field at bit %d/%d exceeds state of %d bytes", offsetBits, lengthBits, len(out))
	}

	mask := uint64(1)<<uint(lengthBits) - 1
	shifted := (value & mask) << uint(bitShift)

	for i := 0; i < nBytes; i++ {
		out[startByte+i] |= byte(shifted >> uint(8*i))
	}
	return nil
}

// Unpack decodes a unit's raw state bytes against its type's controls,
// per §4.7. Unsupported/unknown-kind fields are recorded in
// State.Unknown rather than dropped.
func Unpack(data []byte, t Type) (State, error) {
	var s State

	for _, c := range t.Controls {
		raw, err := readField(data, c.OffsetBits, c.LengthBits)
		if err != nil {
			return s, err
		}

		switch c.Kind {
		case ControlDimmer:
			v := scaleTo8(raw, c.LengthBits)
			s.Dimmer = &v
		case ControlWhite:
			v := scaleTo8(raw, c.LengthBits)
			s.White = &v
		case ControlVertical:
			v := scaleTo8(raw, c.LengthBits)
			s.Vertical = &v
		case ControlSlider:
			v := scaleTo8(raw, c.LengthBits)
			s.Slider = &v
		case ControlRGB:
			hueBits := (c.LengthBits * 10) / 18
			satBits := c.LengthBits - hueBits
			hueMax := uint64(1)<<uint(hueBits) - 1
			satMax := uint64(1)<<uint(satBits) - 1
			satMask := uint64(1)<<uint(satBits) - 1

			hueRaw := (raw >> uint(satBits)) & hueMax
			satRaw := raw & satMask

			s.RGB = &RGBValue{
				Hue: float64(hueRaw) / float64(hueMax),
				Sat: float64(satRaw) / float64(satMax),
			}
		case ControlTemperature:
			if c.Min == 0 && c.Max == 0 {
				break // no calibration data; skip per §4.7
			}
			span := uint64(1)<<uint(c.LengthBits) - 1
			v := c.Min + int((float64(raw)/float64(span))*float64(c.Max-c.Min)+0.5)
			s.Temperature = &v
		case ControlColorSource:
			cs := ColorSource(raw)
			s.ColorSource = &cs
		case ControlXY:
			half := c.LengthBits / 2
			xMax := uint64(1)<<uint(half) - 1
			xRaw := raw >> uint(half)
			yRaw := raw & xMax
			s.XY = &XYValue{X: float64(xRaw) / float64(xMax), Y: float64(yRaw) / float64(xMax)}
		case ControlOnOff, ControlSensor:
			// Carried via the containing unit-state record's flags
			// byte, not a bit-packed field here.
		default:
			if s.Unknown == nil {
				s.Unknown = make(map[int][]byte)
			}
			nBytes := (c.LengthBits + c.OffsetBits%8 + 7) / 8
			start := c.OffsetBits / 8
			end := start + nBytes
			if end > len(data) {
				end = len(data)
			}
			s.Unknown[c.OffsetBits] = append([]byte(nil), data[start:end]...)
		}
	}

	return s, nil
}

// Pack is the exact inverse of Unpack: any unset field in s falls back
// to the control's default (§4.7).
func Pack(s State, t Type) ([]byte, error) {
	out := make([]byte, t.StateLength)

	for _, c := range t.Controls {
		var raw uint64
		set := false

		switch c.Kind {
		case ControlDimmer:
			if s.Dimmer != nil {
				raw, set = scaleFrom8(*s.Dimmer, c.LengthBits), true
			}
		case ControlWhite:
			if s.White != nil {
				raw, set = scaleFrom8(*s.White, c.LengthBits), true
			}
		case ControlVertical:
			if s.Vertical != nil {
				raw, set = scaleFrom8(*s.Vertical, c.LengthBits), true
			}
		case ControlSlider:
			if s.Slider != nil {
				raw, set = scaleFrom8(*s.Slider, c.LengthBits), true
			}
		case ControlRGB:
			if s.RGB != nil {
				hueBits := (c.LengthBits * 10) / 18
				satBits := c.LengthBits - hueBits
				hueMax := uint64(1)<<uint(hueBits) - 1
				satMax := uint64(1)<<uint(satBits) - 1

				hueRaw := uint64(s.RGB.Hue*float64(hueMax) + 0.5)
				satRaw := uint64(s.RGB.Sat*float64(satMax) + 0.5)
				raw = (hueRaw << uint(satBits)) | satRaw
				set = true
			}
		case ControlTemperature:
			if s.Temperature != nil && (c.Min != 0 || c.Max != 0) && c.Max != c.Min {
				span := uint64(1)<<uint(c.LengthBits) - 1
				frac := float64(*s.Temperature-c.Min) / float64(c.Max-c.Min)
				raw = uint64(frac*float64(span) + 0.5)
				set = true
			}
		case ControlColorSource:
			if s.ColorSource != nil {
				raw, set = uint64(*s.ColorSource), true
			}
		case ControlXY:
			if s.XY != nil {
				half := c.LengthBits / 2
				xMax := uint64(1)<<uint(half) - 1
				xRaw := uint64(s.XY.X*float64(xMax) + 0.5)
				yRaw := uint64(s.XY.Y*float64(xMax) + 0.5)
				raw = (xRaw << uint(half)) | yRaw
				set = true
			}
		case ControlOnOff, ControlSensor, ControlKindUnknown:
			// Not bit-packed fields; left at default below.
		}

		if !set {
			raw = uint64(c.Default)
		}

		if err := writeField(out, c.OffsetBits, c.LengthBits, raw); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func scaleTo8(raw uint64, lengthBits int) uint8 {
	if lengthBits >= 8 {
		return uint8(raw >> uint(lengthBits-8))
	}
	return uint8(raw << uint(8-lengthBits))
}

func scaleFrom8(v uint8, lengthBits int) uint64 {
	if lengthBits >= 8 {
		return uint64(v) << uint(lengthBits-8)
	}
	return uint64(v) >> uint(8-lengthBits)
}
