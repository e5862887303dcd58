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

import "fmt"

// Band is a coarse scale level used to bucket objects by physical size for
// indexing and display culling. Each band covers one decimal order of
// magnitude of an object's largest bounding extent.
type Band int8

const (
	// BandTrace covers extents under 1 mm (circuit traces, solder pads).
	BandTrace Band = -4

	// BandComponent covers 1 mm to 1 cm (connectors, small components).
	BandComponent Band = -3

	// BandModule covers 1 cm to 10 cm (breakers, valves, outlets).
	BandModule Band = -2

	// BandEquipment covers 10 cm to 1 m (panels, pumps, cabinets).
	BandEquipment Band = -1

	// BandRoom covers 1 m to 10 m.
	BandRoom Band = 0

	// BandFloor covers 10 m to 100 m.
	BandFloor Band = 1

	// BandBuilding covers 100 m to 1 km.
	BandBuilding Band = 2

	// BandCampus covers 1 km to 10 km.
	BandCampus Band = 3

	// BandDistrict covers 10 km to 100 km.
	BandDistrict Band = 4

	// BandCity covers 100 km to 1,000 km.
	BandCity Band = 5

	// BandRegion covers 1,000 km to 10,000 km.
	BandRegion Band = 6

	// BandContinental covers everything above 10,000 km.
	BandContinental Band = 7
)

// MinBand and MaxBand delimit the valid band range.
const (
	MinBand = BandTrace
	MaxBand = BandContinental
)

// bandNames maps bands to display names, offset by -MinBand.
var bandNames = [...]string{
	"trace", "component", "module", "equipment", "room", "floor",
	"building", "campus", "district", "city", "region", "continental",
}

// Valid reports whether the band is inside [MinBand, MaxBand].
func (b Band) Valid() bool {
	return b >= MinBand && b <= MaxBand
}

// String returns the band's display name.
func (b Band) String() string {
	if !b.Valid() {
		return fmt.Sprintf("Band(%d)", int(b))
	}
	return bandNames[b-MinBand]
}

// bandThresholdsNm holds the extent thresholds between consecutive bands.
// Index i is the boundary between band MinBand+i and MinBand+i+1.
var bandThresholdsNm = [...]int64{
	1_000_000,                 // 1 mm  -> component
	10_000_000,                // 1 cm  -> module
	100_000_000,               // 10 cm -> equipment
	1_000_000_000,             // 1 m   -> room
	10_000_000_000,            // 10 m  -> floor
	100_000_000_000,           // 100 m -> building
	1_000_000_000_000,         // 1 km  -> campus
	10_000_000_000_000,        // 10 km -> district
	100_000_000_000_000,       // 100 km -> city
	1_000_000_000_000_000,     // 1,000 km -> region
	10_000_000_000_000_000,    // 10,000 km -> continental
}

// BandForDimension derives the scale band from a bounding extent.
//
// Description:
//
//	Uses the largest axis of the extent and buckets it by decimal order of
//	magnitude: under 1 mm is BandTrace, each threshold upward moves one
//	band, everything at or above 10,000 km is BandContinental.
//
// Inputs:
//
//	dim - Bounding extent; negative axes are treated as zero
//
// Outputs:
//
//	Band - The derived band, always valid
func BandForDimension(dim Dimension) Band {
	extent := max(dim.W, dim.D, dim.H, 0)
	band := BandTrace
	for _, threshold := range bandThresholdsNm {
		if extent < threshold {
			break
		}
		band++
	}
	return band
}

// ConsistentWith reports whether the band is plausible for the given extent.
// One band of slack in either direction is tolerated because real-world
// survey data is imperfect; a mismatch is a data-quality warning for the
// caller, never a hard failure.
func (b Band) ConsistentWith(dim Dimension) bool {
	derived := BandForDimension(dim)
	diff := int(b) - int(derived)
	return diff >= -1 && diff <= 1
}
