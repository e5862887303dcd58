// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package spatial indexes objects by position and scale band for range and
// nearest-neighbor queries.
//
// The index is a uniform grid per scale band. Cell size tracks the band's
// extent ceiling, so an object in its correct band overlaps a handful of
// cells: inserts are O(1) amortized and range queries touch cells
// proportional to the query volume. Distances are compared as exact integer
// squared distances (coordinate.Dist2); nearest-neighbor ties break by
// ascending object ID so results are stable across runs.
//
// The index stays synchronized with the object store by observing its
// change events; it is never polled and never rebuilt incrementally during
// a batch (batch events arrive only at commit).
package spatial

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/arxcore/services/arx/coordinate"
	"github.com/AleutianAI/arxcore/services/arx/object"
)

// oversizeCellLimit caps how many grid cells one object may occupy before
// it is moved to the band's linear overflow list. Objects in their correct
// band never get near this; it defends against extent/band mismatches.
const oversizeCellLimit = 4096

// cellKey addresses one grid cell within a band.
type cellKey struct {
	x, y, z int64
}

// entry is the indexed view of one object.
type entry struct {
	id     object.ID
	band   coordinate.Band
	box    coordinate.Box
	center coordinate.Position
	// oversize entries live in the band's overflow list, not the grid.
	oversize bool
}

// bandGrid holds one scale band's cells and overflow.
type bandGrid struct {
	cellSize int64
	cells    map[cellKey][]object.ID
	oversize []object.ID
	count    int
}

// Index is the scale-aware spatial index.
//
// Thread Safety: Safe for concurrent use.
type Index struct {
	logger *slog.Logger

	mu      sync.RWMutex
	bands   map[coordinate.Band]*bandGrid
	entries map[object.ID]*entry
}

// NewIndex creates an empty index and subscribes it to the store's change
// events.
//
// Inputs:
//   - store: Object store to observe. Required.
//   - logger: If nil, uses slog.Default().
func NewIndex(store *object.Store, logger *slog.Logger) (*Index, error) {
	if store == nil {
		return nil, fmt.Errorf("spatial: nil object store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{
		logger:  logger.With(slog.String("component", "spatial_index")),
		bands:   make(map[coordinate.Band]*bandGrid),
		entries: make(map[object.ID]*entry),
	}
	store.Subscribe(idx)
	return idx, nil
}

// cellSizeNm returns the grid cell edge for a band: the band's extent
// ceiling, so correctly banded objects overlap at most eight cells.
func cellSizeNm(band coordinate.Band) int64 {
	size := int64(1_000_000) // BandTrace ceiling: 1 mm
	for b := coordinate.MinBand; b < band; b++ {
		if size > (1 << 56) { // keep cell arithmetic far from overflow
			break
		}
		size *= 10
	}
	return size
}

// grid returns the band's grid, creating it on first use. Caller holds mu.
func (idx *Index) grid(band coordinate.Band) *bandGrid {
	g, ok := idx.bands[band]
	if !ok {
		g = &bandGrid{
			cellSize: cellSizeNm(band),
			cells:    make(map[cellKey][]object.ID),
		}
		idx.bands[band] = g
	}
	return g
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, size int64) int64 {
	q := a / size
	if a%size != 0 && a < 0 {
		q--
	}
	return q
}

// cellRange returns the inclusive cell coordinate range covered by a box.
func cellRange(box coordinate.Box, size int64) (lo, hi cellKey) {
	lo = cellKey{floorDiv(box.Min.X, size), floorDiv(box.Min.Y, size), floorDiv(box.Min.Z, size)}
	hi = cellKey{floorDiv(box.Max.X, size), floorDiv(box.Max.Y, size), floorDiv(box.Max.Z, size)}
	return lo, hi
}

// cellCount returns the number of cells in a range, saturating at
// oversizeCellLimit+1 to avoid overflow on absurd ranges.
func cellCount(lo, hi cellKey) int {
	n := int64(1)
	for _, span := range [3]int64{hi.x - lo.x + 1, hi.y - lo.y + 1, hi.z - lo.z + 1} {
		if span <= 0 || span > oversizeCellLimit {
			return oversizeCellLimit + 1
		}
		n *= span
		if n > oversizeCellLimit {
			return oversizeCellLimit + 1
		}
	}
	return int(n)
}

// OnObjectEvent implements object.Observer, keeping the index synchronized
// with the store.
func (idx *Index) OnObjectEvent(evt object.Event) {
	if evt.Object == nil {
		return
	}
	switch evt.Kind {
	case object.EventCreated, object.EventUpdated:
		idx.reinsert(evt.Object)
	case object.EventTombstoned:
		idx.remove(evt.ID)
	case object.EventReparented:
		// Containment changes have no spatial effect.
	}
}

// reinsert indexes (or re-indexes) one object snapshot.
func (idx *Index) reinsert(obj *object.ArxObject) {
	box, err := obj.Box()
	if err != nil {
		idx.logger.Warn("object not indexable",
			slog.Uint64("id", uint64(obj.ID)),
			slog.String("error", err.Error()),
		)
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(obj.ID)
	e := &entry{
		id:     obj.ID,
		band:   obj.Band,
		box:    box,
		center: box.Center(),
	}
	g := idx.grid(obj.Band)

	lo, hi := cellRange(box, g.cellSize)
	if cellCount(lo, hi) > oversizeCellLimit {
		e.oversize = true
		g.oversize = append(g.oversize, obj.ID)
	} else {
		for x := lo.x; x <= hi.x; x++ {
			for y := lo.y; y <= hi.y; y++ {
				for z := lo.z; z <= hi.z; z++ {
					key := cellKey{x, y, z}
					g.cells[key] = append(g.cells[key], obj.ID)
				}
			}
		}
	}
	g.count++
	idx.entries[obj.ID] = e
}

// remove drops one object from the index.
func (idx *Index) remove(id object.ID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

// removeLocked drops one object. Caller holds mu.
func (idx *Index) removeLocked(id object.ID) {
	e, ok := idx.entries[id]
	if !ok {
		return
	}
	g := idx.bands[e.band]
	if e.oversize {
		g.oversize = removeObjectID(g.oversize, id)
	} else {
		lo, hi := cellRange(e.box, g.cellSize)
		for x := lo.x; x <= hi.x; x++ {
			for y := lo.y; y <= hi.y; y++ {
				for z := lo.z; z <= hi.z; z++ {
					key := cellKey{x, y, z}
					g.cells[key] = removeObjectID(g.cells[key], id)
					if len(g.cells[key]) == 0 {
						delete(g.cells, key)
					}
				}
			}
		}
	}
	g.count--
	delete(idx.entries, id)
}

// Count returns the number of indexed objects.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// RangeQuery returns the IDs of all objects whose bounding box intersects
// the query box, in ascending ID order.
//
// Inputs:
//
//	box - Axis-aligned query volume
//	bands - Optional scale band restriction; empty means all bands
//
// Outputs:
//
//	[]object.ID - Matching objects, sorted ascending
func (idx *Index) RangeQuery(box coordinate.Box, bands ...coordinate.Band) []object.ID {
	start := time.Now()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[object.ID]bool)
	var out []object.ID

	for band, g := range idx.bands {
		if !bandSelected(band, bands) {
			continue
		}

		lo, hi := cellRange(box, g.cellSize)
		if cellCount(lo, hi) > len(g.cells) {
			// Query volume spans more cells than are occupied; walking
			// the occupied set is cheaper.
			for key, ids := range g.cells {
				if key.x < lo.x || key.x > hi.x || key.y < lo.y || key.y > hi.y || key.z < lo.z || key.z > hi.z {
					continue
				}
				out = idx.appendMatches(out, ids, box, seen)
			}
		} else {
			for x := lo.x; x <= hi.x; x++ {
				for y := lo.y; y <= hi.y; y++ {
					for z := lo.z; z <= hi.z; z++ {
						out = idx.appendMatches(out, g.cells[cellKey{x, y, z}], box, seen)
					}
				}
			}
		}
		out = idx.appendMatches(out, g.oversize, box, seen)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	recordQuery("range", time.Since(start), len(out))
	return out
}

// appendMatches filters candidate IDs by exact box intersection. Caller
// holds mu.
func (idx *Index) appendMatches(out []object.ID, ids []object.ID, box coordinate.Box, seen map[object.ID]bool) []object.ID {
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if e := idx.entries[id]; e != nil && e.box.Intersects(box) {
			out = append(out, id)
		}
	}
	return out
}

// Rebuild replaces the index contents from a snapshot of live objects,
// building each scale band's grid in parallel. Objects that fail to
// produce a bounding box are skipped with a warning, matching the
// observer path.
//
// Inputs:
//
//	ctx - Cancels the rebuild; on cancellation the index is unchanged
//	objs - Live object snapshots, typically from a journal replay
func (idx *Index) Rebuild(ctx context.Context, objs []*object.ArxObject) error {
	start := time.Now()

	byBand := make(map[coordinate.Band][]*object.ArxObject)
	for _, obj := range objs {
		byBand[obj.Band] = append(byBand[obj.Band], obj)
	}

	var mu sync.Mutex
	bands := make(map[coordinate.Band]*bandGrid, len(byBand))
	entries := make(map[object.ID]*entry, len(objs))

	g, gctx := errgroup.WithContext(ctx)
	for band, bandObjs := range byBand {
		g.Go(func() error {
			grid := &bandGrid{
				cellSize: cellSizeNm(band),
				cells:    make(map[cellKey][]object.ID),
			}
			local := make(map[object.ID]*entry, len(bandObjs))
			for _, obj := range bandObjs {
				if err := gctx.Err(); err != nil {
					return err
				}
				box, err := obj.Box()
				if err != nil {
					idx.logger.Warn("object not indexable",
						slog.Uint64("id", uint64(obj.ID)),
						slog.String("error", err.Error()),
					)
					continue
				}
				e := &entry{id: obj.ID, band: band, box: box, center: box.Center()}
				lo, hi := cellRange(box, grid.cellSize)
				if cellCount(lo, hi) > oversizeCellLimit {
					e.oversize = true
					grid.oversize = append(grid.oversize, obj.ID)
				} else {
					for x := lo.x; x <= hi.x; x++ {
						for y := lo.y; y <= hi.y; y++ {
							for z := lo.z; z <= hi.z; z++ {
								key := cellKey{x, y, z}
								grid.cells[key] = append(grid.cells[key], obj.ID)
							}
						}
					}
				}
				grid.count++
				local[obj.ID] = e
			}
			mu.Lock()
			bands[band] = grid
			for id, e := range local {
				entries[id] = e
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("spatial rebuild: %w", err)
	}

	idx.mu.Lock()
	idx.bands = bands
	idx.entries = entries
	idx.mu.Unlock()

	idx.logger.Info("index rebuilt",
		slog.Int("objects", len(entries)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// neighbor pairs a candidate with its exact squared distance.
type neighbor struct {
	id    object.ID
	dist2 coordinate.Dist2
}

// Nearest returns the k objects whose bounding-box centers are closest to
// the point by Euclidean distance, nearest first. Distance comparisons are
// exact integer squared distances; ties break by ascending object ID.
//
// Inputs:
//
//	point - Query point
//	k - Maximum number of results; non-positive returns nil
//	bands - Optional scale band restriction; empty means all bands
func (idx *Index) Nearest(point coordinate.Position, k int, bands ...coordinate.Band) []object.ID {
	if k <= 0 {
		return nil
	}
	start := time.Now()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var candidates []neighbor
	for band, g := range idx.bands {
		if !bandSelected(band, bands) {
			continue
		}
		candidates = append(candidates, idx.nearestInBandLocked(point, k, g)...)
	}

	sortNeighbors(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]object.ID, len(candidates))
	for i, c := range candidates {
		out[i] = c.id
	}
	recordQuery("nearest", time.Since(start), len(out))
	return out
}

// nearestInBandLocked finds up to k nearest entries within one band using
// expanding cubic shells around the query point's cell. Caller holds mu.
func (idx *Index) nearestInBandLocked(point coordinate.Position, k int, g *bandGrid) []neighbor {
	if g.count == 0 {
		return nil
	}

	// An entry straddling a cell boundary is registered in every cell it
	// overlaps; seen keeps it a single candidate and makes the termination
	// count below track distinct entries.
	seen := make(map[object.ID]bool)
	var candidates []neighbor
	collect := func(ids []object.ID) {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			e := idx.entries[id]
			if e == nil {
				continue
			}
			candidates = append(candidates, neighbor{
				id:    id,
				dist2: coordinate.SquaredDistance(point, e.center),
			})
		}
	}

	// Oversize entries are few; always candidates.
	collect(g.oversize)

	center := cellKey{
		floorDiv(point.X, g.cellSize),
		floorDiv(point.Y, g.cellSize),
		floorDiv(point.Z, g.cellSize),
	}

	for r := int64(0); ; r++ {
		shellCells := shellCellCount(r)
		if shellCells > len(g.cells) {
			// Sparse occupancy: scan every occupied cell once and stop.
			for key, ids := range g.cells {
				if chebyshev(key, center) >= r {
					collect(ids)
				}
			}
			break
		}

		for _, key := range shellKeys(center, r) {
			if ids, ok := g.cells[key]; ok {
				collect(ids)
			}
		}

		// Uncollected entries lie in shells beyond r, at distance at
		// least r*cellSize from the point. Stop once the k-th best
		// candidate beats that bound.
		if len(candidates) >= k && r > 0 {
			sortNeighbors(candidates)
			bound := coordinate.Square(uint64(r) * uint64(g.cellSize))
			if candidates[k-1].dist2.Cmp(bound) <= 0 {
				break
			}
		}
		if len(seen) >= g.count {
			break
		}
	}

	sortNeighbors(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// shellCellCount returns the number of cells on the cubic shell at
// Chebyshev radius r.
func shellCellCount(r int64) int {
	if r == 0 {
		return 1
	}
	outer := (2*r + 1) * (2*r + 1) * (2*r + 1)
	inner := (2*r - 1) * (2*r - 1) * (2*r - 1)
	return int(outer - inner)
}

// shellKeys enumerates the cells on the cubic shell at Chebyshev radius r
// around the center cell.
func shellKeys(center cellKey, r int64) []cellKey {
	if r == 0 {
		return []cellKey{center}
	}
	keys := make([]cellKey, 0, shellCellCount(r))
	for x := -r; x <= r; x++ {
		for y := -r; y <= r; y++ {
			for z := -r; z <= r; z++ {
				if maxAbs(x, y, z) != r {
					continue
				}
				keys = append(keys, cellKey{center.x + x, center.y + y, center.z + z})
			}
		}
	}
	return keys
}

// chebyshev returns the Chebyshev distance between two cells.
func chebyshev(a, b cellKey) int64 {
	return maxAbs(a.x-b.x, a.y-b.y, a.z-b.z)
}

// maxAbs returns the largest absolute value of the arguments.
func maxAbs(vals ...int64) int64 {
	var m int64
	for _, v := range vals {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}

// sortNeighbors orders by (distance, id) ascending.
func sortNeighbors(ns []neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		c := ns[i].dist2.Cmp(ns[j].dist2)
		if c != 0 {
			return c < 0
		}
		return ns[i].id < ns[j].id
	})
}

// bandSelected reports whether band passes the optional filter.
func bandSelected(band coordinate.Band, filter []coordinate.Band) bool {
	if len(filter) == 0 {
		return true
	}
	for _, b := range filter {
		if b == band {
			return true
		}
	}
	return false
}

// removeObjectID removes the first occurrence of id, preserving order.
func removeObjectID(ids []object.ID, id object.ID) []object.ID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
