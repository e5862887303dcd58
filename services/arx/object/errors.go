// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package object owns all spatial objects: their identity, containment
// hierarchy, properties and lifecycle.
//
// The store is the single mutation point of the system. Every successful
// mutation emits a change event to registered observers (topology graph,
// spatial index, change journal) synchronously, inside the write section, so
// downstream structures are never observably behind the store.
//
// # Identity
//
// Object IDs are allocated monotonically and are never reused, even after
// deletion. Deletion is a tombstone: the object stays resolvable through Get
// with Tombstoned set, so historical edges and journal entries keep meaning.
//
// # Thread Safety
//
// Store is safe for concurrent use. Mutations take an exclusive section only
// long enough to apply the change and notify observers; readers operate
// against copies taken under a shared lock and never observe a torn reparent.
package object

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when an object ID does not resolve to a live
	// object. Tombstoned objects resolve through Get but reject mutations
	// with this error.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidParent is returned when a parent reference is missing,
	// tombstoned, or otherwise unusable as a container.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrCycleDetected is returned when a reparent would make an object its
	// own ancestor. The store is left unchanged.
	ErrCycleDetected = errors.New("containment cycle detected")

	// ErrIDExists is returned when a create supplies an explicit ID that
	// has already been allocated, live or tombstoned.
	ErrIDExists = errors.New("object ID already exists")

	// ErrStoreFull is returned when the configured object capacity is
	// reached.
	ErrStoreFull = errors.New("object store at capacity")

	// ErrBatchCommitted is returned when staging onto or committing an
	// already-committed batch.
	ErrBatchCommitted = errors.New("batch already committed")
)
