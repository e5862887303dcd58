// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package traverse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/arxcore/services/arx/object"
	"github.com/AleutianAI/arxcore/services/arx/topology"
)

// Depth selects how far a load aggregation reaches.
type Depth int

const (
	// DepthDirect sums only objects connected directly to the source.
	DepthDirect Depth = iota

	// DepthFull sums the entire downstream closure.
	DepthFull
)

func (d Depth) String() string {
	if d == DepthFull {
		return "full"
	}
	return "direct"
}

// Aggregate is the result of a load aggregation.
type Aggregate struct {
	// Total is the sum of the property over contributing objects.
	Total float64

	// Count is the number of objects that carried a numeric value for
	// the property.
	Count int

	// PercentOfCapacity is Total divided by the source object's capacity
	// property, in [0, n] (over 1.0 means overloaded).
	PercentOfCapacity float64

	// CycleDetected reports that the underlying walk saw a cycle.
	CycleDetected bool
}

// AggregateLoad sums a numeric property over the objects fed by source
// through power edges and relates the total to the source's own capacity
// property.
//
// Description:
//
//	The canonical question is "how loaded is this panel": with prop
//	"amperage" and capacityProp "rating", a panel rated 200 A feeding
//	20+30+50 A breakers yields Total=100, Count=3,
//	PercentOfCapacity=0.5. Objects downstream that lack a numeric value
//	for prop are skipped, not errors; a breaker with no amperage simply
//	does not contribute.
//
// Inputs:
//
//	ctx - Cancels long walks
//	source - The feeding object, typically a panel; must be live
//	prop - Property name summed over downstream objects
//	capacityProp - Property name read on source as capacity
//	depth - DepthDirect for directly connected objects only, DepthFull
//	  for the whole downstream closure
//
// Outputs:
//
//	*Aggregate - Totals; nil on error
//	error - ErrStartNotFound, ErrMissingCapacity, or ctx.Err()
func (e *Engine) AggregateLoad(ctx context.Context, source object.ID, prop, capacityProp string, depth Depth) (*Aggregate, error) {
	startTime := time.Now()

	src, ok := e.store.Get(source)
	if !ok || src.Tombstoned {
		return nil, fmt.Errorf("aggregate from %d: %w", source, ErrStartNotFound)
	}
	capacity, ok := src.Properties[capacityProp].AsFloat()
	if !ok || capacity <= 0 {
		return nil, fmt.Errorf("aggregate from %d: property %q: %w", source, capacityProp, ErrMissingCapacity)
	}

	var ids []object.ID
	agg := &Aggregate{}
	switch depth {
	case DepthDirect:
		for _, edge := range e.graph.Outgoing(source, topology.KindPower) {
			ids = append(ids, edge.To)
		}
	default:
		walk, err := e.Downstream(ctx, source, topology.KindPower)
		if err != nil {
			return nil, err
		}
		ids = walk.IDs
		agg.CycleDetected = walk.CycleDetected
	}

	for _, id := range ids {
		obj, ok := e.store.Get(id)
		if !ok || obj.Tombstoned {
			continue
		}
		value, ok := obj.Properties[prop].AsFloat()
		if !ok {
			continue
		}
		agg.Total += value
		agg.Count++
	}
	agg.PercentOfCapacity = agg.Total / capacity

	e.logger.Debug("load aggregated",
		slog.Uint64("source", uint64(source)),
		slog.String("prop", prop),
		slog.String("depth", depth.String()),
		slog.Float64("total", agg.Total),
		slog.Int("count", agg.Count),
	)
	recordWalk("aggregate", time.Since(startTime), agg.Count)
	return agg, nil
}
