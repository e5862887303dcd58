// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package topology maintains the directed graph of functional connections
// between objects: power, data, fluid, air and structural support.
//
// The topology graph is separate from spatial containment. A breaker lives
// inside a panel (containment) but feeds an outlet two rooms away
// (topology). Edges reference object IDs and are validated against the
// object store at connect time; when an object is tombstoned, the graph
// retires every incident edge synchronously inside the store's mutation, so
// no live edge ever references a dead object.
//
// # Lock Ordering
//
// The graph acquires its own lock while handling store events, which run
// under the store's write lock. Graph methods therefore never call into the
// store while holding the graph lock; liveness checks happen before locking
// and are re-validated against the graph's own tombstone ledger.
package topology

import "errors"

// Sentinel errors for topology operations.
var (
	// ErrDanglingEndpoint is returned when a connect references an object
	// that is missing or tombstoned.
	ErrDanglingEndpoint = errors.New("edge endpoint is not a live object")

	// ErrDuplicateEdge is returned when a live edge with the same
	// (from, to, kind) triple already exists. Use Upsert for idempotent
	// connects.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrEdgeNotFound is returned when an edge ID was never allocated.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrGraphFull is returned when the configured edge capacity is
	// reached.
	ErrGraphFull = errors.New("topology graph at capacity")

	// ErrSelfLoop is returned when from and to are the same object.
	// Nothing in a building usefully feeds itself directly.
	ErrSelfLoop = errors.New("self loop rejected")
)
