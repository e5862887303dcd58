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
)

// Unit identifies a human-facing length unit with an exact nanometer scale
// factor. Conversion through a Unit is the only place floating point appears
// in this package.
type Unit int

const (
	// Nanometer is the native storage unit (factor 1).
	Nanometer Unit = iota

	// Micrometer is 1e3 nanometers.
	Micrometer

	// Millimeter is 1e6 nanometers.
	Millimeter

	// Meter is 1e9 nanometers.
	Meter

	// Kilometer is 1e12 nanometers.
	Kilometer
)

// unitFactors maps each Unit to its exact nanometer multiplier.
var unitFactors = [...]int64{
	Nanometer:  1,
	Micrometer: 1_000,
	Millimeter: 1_000_000,
	Meter:      1_000_000_000,
	Kilometer:  1_000_000_000_000,
}

// Factor returns the exact nanometer multiplier for the unit.
//
// Returns 0 for unknown units; use Valid to check first.
func (u Unit) Factor() int64 {
	if !u.Valid() {
		return 0
	}
	return unitFactors[u]
}

// Valid reports whether the unit is one of the declared constants.
func (u Unit) Valid() bool {
	return u >= Nanometer && u <= Kilometer
}

// String returns the conventional abbreviation for the unit.
func (u Unit) String() string {
	switch u {
	case Nanometer:
		return "nm"
	case Micrometer:
		return "um"
	case Millimeter:
		return "mm"
	case Meter:
		return "m"
	case Kilometer:
		return "km"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// ToUnit converts a nanometer value to the given unit.
//
// Description:
//
//	Splits the value into whole units and a nanometer remainder before
//	touching floating point, so any value that is an exact multiple of the
//	unit's factor converts without rounding (within float64's 53-bit
//	integer range). The result is for display and external interchange
//	only; stored coordinates stay in integer nanometers.
//
// Inputs:
//
//	nm - Value in nanometers
//	u - Target unit; unknown units yield NaN
//
// Outputs:
//
//	float64 - The value expressed in the target unit
func ToUnit(nm int64, u Unit) float64 {
	f := u.Factor()
	if f == 0 {
		return math.NaN()
	}
	whole := nm / f
	rem := nm % f
	return float64(whole) + float64(rem)/float64(f)
}

// FromUnit converts a value in the given unit to nanometers, rounding to the
// nearest nanometer.
//
// Description:
//
//	The integer part of the value is converted with exact checked integer
//	multiplication; only the fractional part goes through floating point.
//	Round-trips through ToUnit are therefore exact for integer-valued
//	inputs in the same unit.
//
// Inputs:
//
//	value - Value in the given unit; must be finite
//	u - Source unit
//
// Outputs:
//
//	int64 - The value in nanometers, rounded to nearest
//	error - ErrUnknownUnit for an invalid unit, ErrOutOfRange if the result
//	        does not fit in int64 nanometers
func FromUnit(value float64, u Unit) (int64, error) {
	f := u.Factor()
	if f == 0 {
		return 0, fmt.Errorf("unit %v: %w", u, ErrUnknownUnit)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("non-finite value %v: %w", value, ErrOutOfRange)
	}

	whole, frac := math.Modf(value)
	// float64(MaxInt64) rounds up to 2^63, which int64 cannot hold; the
	// bound must exclude equality. float64(MinInt64) is exactly -2^63 and
	// representable, so the lower bound keeps strict inequality.
	if whole >= float64(math.MaxInt64) || whole < float64(math.MinInt64) {
		return 0, fmt.Errorf("value %v %v: %w", value, u, ErrOutOfRange)
	}

	wholeNm, err := mulChecked(int64(whole), f)
	if err != nil {
		return 0, fmt.Errorf("value %v %v: %w", value, u, err)
	}
	fracNm := int64(math.Round(frac * float64(f)))

	nm, err := addChecked(wholeNm, fracNm)
	if err != nil {
		return 0, fmt.Errorf("value %v %v: %w", value, u, err)
	}
	return nm, nil
}
