// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinate

import (
	"fmt"
	"math"
	"math/bits"
)

// Position is a point in space, in integer nanometers per axis.
type Position struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
	Z int64 `json:"z"`
}

// Dimension is an axis-aligned extent, in integer nanometers per axis.
// All components must be non-negative.
type Dimension struct {
	W int64 `json:"w"`
	D int64 `json:"d"`
	H int64 `json:"h"`
}

// Rotation is a yaw angle about the vertical axis in hundredths of a degree,
// normalized to [0, 35999]. Storing rotation as an integer keeps repeated
// compositions exact; trigonometric evaluation happens downstream in
// renderers, never here.
type Rotation uint16

// MaxRotation is the largest valid Rotation value (359.99 degrees).
const MaxRotation Rotation = 35999

// Normalize wraps the rotation into [0, 35999].
func (r Rotation) Normalize() Rotation {
	return r % 36000
}

// Add composes two rotations exactly.
func (r Rotation) Add(other Rotation) Rotation {
	return Rotation((uint32(r) + uint32(other)) % 36000)
}

// Degrees returns the rotation in degrees, for display only.
func (r Rotation) Degrees() float64 {
	return float64(r.Normalize()) / 100
}

// addChecked adds two int64 values, failing on overflow.
func addChecked(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrOutOfRange
	}
	return sum, nil
}

// subChecked subtracts b from a, failing on overflow.
func subChecked(a, b int64) (int64, error) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, ErrOutOfRange
	}
	return diff, nil
}

// mulChecked multiplies two int64 values, failing on overflow.
func mulChecked(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	prod := a * b
	if prod/b != a || (a == math.MinInt64 && b == -1) {
		return 0, ErrOutOfRange
	}
	return prod, nil
}

// Translate returns the position moved by the given per-axis deltas.
//
// Outputs:
//
//	Position - The translated position
//	error - ErrOutOfRange if any axis overflows
func (p Position) Translate(dx, dy, dz int64) (Position, error) {
	x, err := addChecked(p.X, dx)
	if err != nil {
		return Position{}, fmt.Errorf("translate x: %w", err)
	}
	y, err := addChecked(p.Y, dy)
	if err != nil {
		return Position{}, fmt.Errorf("translate y: %w", err)
	}
	z, err := addChecked(p.Z, dz)
	if err != nil {
		return Position{}, fmt.Errorf("translate z: %w", err)
	}
	return Position{X: x, Y: y, Z: z}, nil
}

// Scale multiplies all axes by num and divides by den, in that order, with
// overflow checking. den must be positive.
func (p Position) Scale(num, den int64) (Position, error) {
	if den <= 0 {
		return Position{}, fmt.Errorf("scale denominator %d: %w", den, ErrOutOfRange)
	}
	scaleAxis := func(v int64) (int64, error) {
		prod, err := mulChecked(v, num)
		if err != nil {
			return 0, err
		}
		return prod / den, nil
	}
	x, err := scaleAxis(p.X)
	if err != nil {
		return Position{}, fmt.Errorf("scale x: %w", err)
	}
	y, err := scaleAxis(p.Y)
	if err != nil {
		return Position{}, fmt.Errorf("scale y: %w", err)
	}
	z, err := scaleAxis(p.Z)
	if err != nil {
		return Position{}, fmt.Errorf("scale z: %w", err)
	}
	return Position{X: x, Y: y, Z: z}, nil
}

// RotateQuarters rotates the position about an axis-aligned vertical pivot by
// the given number of exact 90-degree steps, counter-clockwise when viewed
// from above. Quarter turns are the only rotations the core applies to stored
// coordinates; arbitrary angles are a rendering concern.
//
// Inputs:
//
//	pivot - Center of rotation
//	quarters - Number of 90-degree steps; negative rotates clockwise
//
// Outputs:
//
//	Position - The rotated position
//	error - ErrOutOfRange if intermediate arithmetic overflows
func (p Position) RotateQuarters(pivot Position, quarters int) (Position, error) {
	q := ((quarters % 4) + 4) % 4

	dx, err := subChecked(p.X, pivot.X)
	if err != nil {
		return Position{}, fmt.Errorf("rotate: %w", err)
	}
	dy, err := subChecked(p.Y, pivot.Y)
	if err != nil {
		return Position{}, fmt.Errorf("rotate: %w", err)
	}

	var rx, ry int64
	switch q {
	case 0:
		rx, ry = dx, dy
	case 1:
		rx, ry = -dy, dx
	case 2:
		rx, ry = -dx, -dy
	case 3:
		rx, ry = dy, -dx
	}
	// Negation of MinInt64 overflows; dx/dy at MinInt64 cannot be negated.
	if (q == 1 && dy == math.MinInt64) || (q == 2 && (dx == math.MinInt64 || dy == math.MinInt64)) || (q == 3 && dx == math.MinInt64) {
		return Position{}, fmt.Errorf("rotate: %w", ErrOutOfRange)
	}

	x, err := addChecked(pivot.X, rx)
	if err != nil {
		return Position{}, fmt.Errorf("rotate x: %w", err)
	}
	y, err := addChecked(pivot.Y, ry)
	if err != nil {
		return Position{}, fmt.Errorf("rotate y: %w", err)
	}
	return Position{X: x, Y: y, Z: p.Z}, nil
}

// Dist2 is an exact squared distance between two positions. Axis deltas span
// up to 2^64-1 nm, so the sum of three squares needs up to 130 bits; Dist2
// holds 192 bits in three limbs. It exists so nearest-neighbor ordering never
// depends on floating point rounding.
type Dist2 struct {
	w2, w1, w0 uint64 // little-endian limbs
}

// Cmp compares two squared distances: -1 if d < other, 0 if equal, 1 if
// d > other.
func (d Dist2) Cmp(other Dist2) int {
	for _, pair := range [3][2]uint64{{d.w2, other.w2}, {d.w1, other.w1}, {d.w0, other.w0}} {
		if pair[0] < pair[1] {
			return -1
		}
		if pair[0] > pair[1] {
			return 1
		}
	}
	return 0
}

// Float64 returns an approximate float64 value, for display only.
func (d Dist2) Float64() float64 {
	const limb = 1 << 64
	return (float64(d.w2)*limb+float64(d.w1))*limb + float64(d.w0)
}

// absDelta returns |a-b| as a uint64. The subtraction cannot overflow the
// unsigned range because int64 values span less than 2^64.
func absDelta(a, b int64) uint64 {
	if a >= b {
		return uint64(a) - uint64(b)
	}
	return uint64(b) - uint64(a)
}

// add128 accumulates a 128-bit value into d.
func (d Dist2) add128(hi, lo uint64) Dist2 {
	w0, carry := bits.Add64(d.w0, lo, 0)
	w1, carry := bits.Add64(d.w1, hi, carry)
	w2, _ := bits.Add64(d.w2, 0, carry)
	return Dist2{w2: w2, w1: w1, w0: w0}
}

// Square returns v*v as a Dist2, for comparing search bounds against exact
// squared distances.
func Square(v uint64) Dist2 {
	hi, lo := bits.Mul64(v, v)
	return Dist2{w1: hi, w0: lo}
}

// SquaredDistance returns the exact squared Euclidean distance between two
// positions.
func SquaredDistance(a, b Position) Dist2 {
	var d Dist2
	for _, delta := range [3]uint64{
		absDelta(a.X, b.X),
		absDelta(a.Y, b.Y),
		absDelta(a.Z, b.Z),
	} {
		hi, lo := bits.Mul64(delta, delta)
		d = d.add128(hi, lo)
	}
	return d
}

// Box is an axis-aligned bounding box with inclusive corners, Min <= Max on
// every axis.
type Box struct {
	Min Position `json:"min"`
	Max Position `json:"max"`
}

// NewBox builds the bounding box of an object at pos with the given extent.
// pos is the minimum corner.
func NewBox(pos Position, dim Dimension) (Box, error) {
	if dim.W < 0 || dim.D < 0 || dim.H < 0 {
		return Box{}, fmt.Errorf("negative dimension: %w", ErrOutOfRange)
	}
	max, err := pos.Translate(dim.W, dim.D, dim.H)
	if err != nil {
		return Box{}, fmt.Errorf("box max corner: %w", err)
	}
	return Box{Min: pos, Max: max}, nil
}

// Valid reports whether Min <= Max on every axis.
func (b Box) Valid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Intersects reports whether two boxes share any point. Touching faces
// count as intersecting.
func (b Box) Intersects(other Box) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// Contains reports whether the point lies inside or on the box boundary.
func (b Box) Contains(p Position) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Union returns the smallest box covering both inputs.
func (b Box) Union(other Box) Box {
	return Box{
		Min: Position{X: min(b.Min.X, other.Min.X), Y: min(b.Min.Y, other.Min.Y), Z: min(b.Min.Z, other.Min.Z)},
		Max: Position{X: max(b.Max.X, other.Max.X), Y: max(b.Max.Y, other.Max.Y), Z: max(b.Max.Z, other.Max.Z)},
	}
}

// Center returns the box midpoint, rounding toward Min on odd spans.
func (b Box) Center() Position {
	return Position{
		X: b.Min.X + (b.Max.X-b.Min.X)/2,
		Y: b.Min.Y + (b.Max.Y-b.Min.Y)/2,
		Z: b.Min.Z + (b.Max.Z-b.Min.Z)/2,
	}
}
