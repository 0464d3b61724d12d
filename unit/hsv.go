/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package unit

// RGBToHS converts 8-bit RGB to a normalised (hue, sat) pair with
// value implicitly 1, matching the internal representation the wire
// format's RGB control actually stores (§4.7). Full colour-space
// handling (gamma, wide gamut) is out of scope per spec §1; this is the
// minimal HSV projection the control codec needs.
func RGBToHS(r, g, b uint8) (hue, sat float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255

	max := maxOf3(rf, gf, bf)
	min := minOf3(rf, gf, bf)
	delta := max - min

	if delta == 0 {
		return 0.5, 0
	}

	switch max {
	case rf:
		hue = mod1((gf - bf) / delta / 6)
	case gf:
		hue = (bf-rf)/delta/6 + 1.0/3
	default:
		hue = (rf-gf)/delta/6 + 2.0/3
	}
	hue = mod1(hue)

	if max == 0 {
		sat = 0
	} else {
		sat = delta / max
	}
	return hue, sat
}

// HSToRGB is the inverse of RGBToHS at value=1, returning 8-bit RGB.
func HSToRGB(hue, sat float64) (r, g, b uint8) {
	if sat == 0 {
		return 255, 255, 255
	}

	h := mod1(hue) * 6
	i := int(h)
	f := h - float64(i)
	p := 1 - sat
	q := 1 - sat*f
	t := 1 - sat*(1-f)

	var rf, gf, bf float64
	switch i % 6 {
	case 0:
		rf, gf, bf = 1, t, p
	case 1:
		rf, gf, bf = q, 1, p
	case 2:
		rf, gf, bf = p, 1, t
	case 3:
		rf, gf, bf = p, q, 1
	case 4:
		rf, gf, bf = t, p, 1
	default:
		rf, gf, bf = 1, p, q
	}

	return to8(rf), to8(gf), to8(bf)
}

func to8(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}

func mod1(v float64) float64 {
	v -= float64(int(v))
	if v < 0 {
		v++
	}
	return v
}

func maxOf3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func minOf3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
