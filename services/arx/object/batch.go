// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package object

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Batch stages object mutations for all-or-nothing application.
//
// Description:
//
//	Bulk ingestion (thousands of objects from an IFC or LiDAR import)
//	should not pay per-mutation observer synchronization, and a failed
//	import must not leave partial objects visible. A batch stages creates,
//	property updates and reparents, then applies them in one write
//	section on Commit. If any staged operation fails validation, every
//	previously applied operation in the batch is undone and the store is
//	exactly as it was before Commit. Change events for the whole batch
//	are emitted only after every operation has succeeded, so observers
//	never see a partial batch.
//
//	Staged creates reserve their IDs eagerly so later staged operations
//	can reference earlier staged objects (a floor created at index 0 can
//	parent a room created at index 1). IDs reserved by a batch that later
//	fails are burned, never reused; identifier continuity matters more
//	than density.
//
// Thread Safety: A Batch is NOT safe for concurrent use. Stage from one
// goroutine and commit once.
type Batch struct {
	store *Store

	// BatchID correlates the batch in logs and the change journal.
	BatchID uuid.UUID

	mu        sync.Mutex
	ops       []batchOp
	committed bool
}

// batchOpKind discriminates staged operations.
type batchOpKind int

const (
	opCreate batchOpKind = iota
	opUpdate
	opReparent
)

// batchOp is one staged mutation.
type batchOp struct {
	kind      batchOpKind
	obj       *ArxObject // opCreate: staged copy with reserved ID
	id        ID
	patch     map[string]Value
	newParent ID
}

// NewBatch starts an empty batch against the store.
func (s *Store) NewBatch() *Batch {
	return &Batch{
		store:   s,
		BatchID: uuid.New(),
	}
}

// Create stages an object insert and returns the ID the object will have
// once the batch commits. The ID is reserved immediately and is not visible
// in the store until Commit succeeds.
func (b *Batch) Create(obj *ArxObject) (ID, error) {
	if obj == nil {
		return 0, fmt.Errorf("batch create: nil object")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.committed {
		return 0, ErrBatchCommitted
	}

	staged := obj.clone()
	if staged.ID == 0 {
		staged.ID = b.store.reserveID()
	}
	b.ops = append(b.ops, batchOp{kind: opCreate, obj: staged})
	return staged.ID, nil
}

// UpdateProperties stages a property patch.
func (b *Batch) UpdateProperties(id ID, patch map[string]Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.committed {
		return ErrBatchCommitted
	}

	cp := make(map[string]Value, len(patch))
	for k, v := range patch {
		cp[k] = v
	}
	b.ops = append(b.ops, batchOp{kind: opUpdate, id: id, patch: cp})
	return nil
}

// Reparent stages a reparent.
func (b *Batch) Reparent(id, newParent ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.committed {
		return ErrBatchCommitted
	}
	b.ops = append(b.ops, batchOp{kind: opReparent, id: id, newParent: newParent})
	return nil
}

// Len returns the number of staged operations.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// undoRecord reverses one applied operation.
type undoRecord func()

// Commit applies every staged operation in order, all-or-nothing.
//
// Outputs:
//
//	error - The first failing operation's error, annotated with its index;
//	        the store is unchanged when error is non-nil
func (b *Batch) Commit() error {
	start := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.committed {
		return ErrBatchCommitted
	}
	b.committed = true

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var undos []undoRecord
	type pendingEvent struct {
		kind EventKind
		obj  *ArxObject
	}
	var events []pendingEvent

	rollback := func() {
		for i := len(undos) - 1; i >= 0; i-- {
			undos[i]()
		}
	}

	for i, op := range b.ops {
		switch op.kind {
		case opCreate:
			stored, err := s.createLocked(op.obj)
			if err != nil {
				rollback()
				return fmt.Errorf("batch %s op %d: %w", b.BatchID, i, err)
			}
			id := stored.ID
			undos = append(undos, func() { s.removeLocked(id) })
			events = append(events, pendingEvent{EventCreated, stored})

		case opUpdate:
			obj, undo, err := s.updatePropertiesLocked(op.id, op.patch)
			if err != nil {
				rollback()
				return fmt.Errorf("batch %s op %d: %w", b.BatchID, i, err)
			}
			if obj == nil {
				continue
			}
			id := op.id
			undos = append(undos, func() { s.undoPropertiesLocked(id, undo) })
			events = append(events, pendingEvent{EventUpdated, obj})

		case opReparent:
			// Record the child's slot in its current parent so rollback
			// restores insertion order exactly.
			var oldIndex int
			if cur, exists := s.objects[op.id]; exists && cur.Parent != 0 {
				if oldP, ok := s.objects[cur.Parent]; ok {
					oldIndex = indexOfID(oldP.Children, op.id)
				}
			}

			obj, oldParent, moved, err := s.reparentLocked(op.id, op.newParent)
			if err != nil {
				rollback()
				return fmt.Errorf("batch %s op %d: %w", b.BatchID, i, err)
			}
			if !moved {
				continue
			}
			id, np := op.id, op.newParent
			undos = append(undos, func() {
				if np != 0 {
					if newP, ok := s.objects[np]; ok {
						newP.Children = removeID(newP.Children, id)
					}
				}
				s.objects[id].Parent = oldParent
				if oldParent != 0 {
					if oldP, ok := s.objects[oldParent]; ok {
						oldP.Children = insertIDAt(oldP.Children, id, oldIndex)
					}
				}
			})
			events = append(events, pendingEvent{EventReparented, obj})
		}
	}

	// Everything applied; publish the batch as one generation step and
	// replay the buffered events to observers in operation order.
	s.generation++
	for _, e := range events {
		s.emitLocked(e.kind, e.obj)
	}

	s.logger.Info("batch committed",
		"batch_id", b.BatchID.String(),
		"ops", len(b.ops),
		"duration", time.Since(start),
	)
	recordBatchCommit(len(b.ops), time.Since(start))
	return nil
}

// indexOfID returns the index of id, or -1.
func indexOfID(ids []ID, id ID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// insertIDAt inserts id at index i, clamping to the slice bounds.
func insertIDAt(ids []ID, id ID, i int) []ID {
	if i < 0 || i > len(ids) {
		return append(ids, id)
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

// reserveID allocates the next ID without inserting an object.
func (s *Store) reserveID() ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}
