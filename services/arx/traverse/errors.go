// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package traverse walks the topology graph: downstream/upstream reachability,
// shortest hop paths, and load aggregation over connected subgraphs.
//
// Every walk is a fresh breadth-first search over the live graph with its own
// visited set. Cycles never loop a walk; they are reported on the result.
// Walks honor context cancellation between steps, so a caller can bound a
// traversal over a large campus model.
package traverse

import "errors"

var (
	// ErrStartNotFound is returned when the traversal origin does not
	// resolve to a live object.
	ErrStartNotFound = errors.New("traversal start object not found")

	// ErrMissingCapacity is returned by load aggregation when the source
	// object does not carry the capacity property to divide by.
	ErrMissingCapacity = errors.New("object lacks capacity property")

	// ErrNoPath is returned when no live path of the requested kind exists
	// between the two objects.
	ErrNoPath = errors.New("no path between objects")
)
