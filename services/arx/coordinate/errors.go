// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinate provides the fixed-point spatial foundation for arxcore.
//
// All positions and dimensions are signed 64-bit integer nanometers, which
// gives continental range (±9,223,372 km) at 1 nm resolution. Arithmetic on
// coordinates is exact integer arithmetic; floating point only appears at the
// human-unit boundary (ToUnit/FromUnit) and never feeds back into stored
// values, so repeated conversions cannot drift.
//
// # Overflow Policy
//
// Every operation that can leave the int64 range (Translate, Scale, box
// construction, unit conversion) returns ErrOutOfRange instead of wrapping.
// Squared distances are computed in 128 bits and cannot overflow.
//
// # Thread Safety
//
// All types in this package are plain values. They are safe to share by copy.
package coordinate

import "errors"

// Sentinel errors for coordinate operations.
var (
	// ErrOutOfRange is returned when integer coordinate arithmetic would
	// overflow the signed 64-bit nanometer range. Callers see this instead
	// of a silently wrapped value.
	ErrOutOfRange = errors.New("coordinate value out of range")

	// ErrUnknownUnit is returned when a Unit value is not one of the
	// declared constants.
	ErrUnknownUnit = errors.New("unknown unit")
)
