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
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/arxcore/services/arx/coordinate"
)

// Default configuration values.
const (
	// DefaultMaxObjects is the default object capacity of a store.
	DefaultMaxObjects = 1_000_000
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// MaxObjects caps the total number of allocated IDs, live or
	// tombstoned. Zero means DefaultMaxObjects.
	MaxObjects int
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *StoreConfig) ApplyDefaults() {
	if c.MaxObjects == 0 {
		c.MaxObjects = DefaultMaxObjects
	}
}

// Validate checks if the configuration is valid.
func (c *StoreConfig) Validate() error {
	if c.MaxObjects < 0 {
		return fmt.Errorf("MaxObjects must be >= 0")
	}
	return nil
}

// Store owns every ArxObject: identity allocation, the containment forest,
// properties and tombstones. It is the system's single mutation point.
//
// Thread Safety: Safe for concurrent use. See the package documentation for
// the observer contract.
type Store struct {
	logger *slog.Logger
	config StoreConfig

	mu         sync.RWMutex
	objects    map[ID]*ArxObject
	nextID     ID
	generation uint64
	observers  []Observer
}

// NewStore creates an empty store.
//
// Inputs:
//   - config: Store configuration. Zero values use defaults.
//   - logger: Logger for data-quality warnings. If nil, uses slog.Default().
//
// Outputs:
//   - *Store: The created store. Never nil.
//   - error: Non-nil if configuration is invalid.
func NewStore(config StoreConfig, logger *slog.Logger) (*Store, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:  logger.With(slog.String("component", "object_store")),
		config:  config,
		objects: make(map[ID]*ArxObject),
		nextID:  1,
	}, nil
}

// Subscribe registers an observer for change events. Observers are notified
// synchronously, in registration order, inside the mutation's write section.
// Register all observers before the first mutation.
func (s *Store) Subscribe(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

// Generation returns the store's mutation counter. It increments once per
// successful mutation (a cascade counts once), letting readers tag
// snapshots.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Create inserts a new object.
//
// Description:
//
//	Assigns an identifier when obj.ID is zero, validates the parent is a
//	live object, derives the scale band from the bounding extent when the
//	supplied band is invalid, and inserts the object into its parent's
//	child set. The store keeps its own copy; the caller's struct is not
//	retained. A band inconsistent with the extent by more than one band
//	sets ScaleWarning and logs, but does not fail: real-world survey data
//	is imperfect.
//
// Inputs:
//
//	obj - Object to insert. Children and Tombstoned are ignored.
//
// Outputs:
//
//	ID - The assigned identifier
//	error - ErrInvalidParent, ErrIDExists, ErrStoreFull, or nil
func (s *Store) Create(obj *ArxObject) (ID, error) {
	if obj == nil {
		return 0, fmt.Errorf("create: nil object")
	}
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.createLocked(obj)
	if err != nil {
		return 0, err
	}

	s.generation++
	s.emitLocked(EventCreated, stored)
	recordMutation("create", time.Since(start))
	return stored.ID, nil
}

// createLocked validates and inserts an object without emitting events or
// advancing the generation. Caller holds mu.
func (s *Store) createLocked(obj *ArxObject) (*ArxObject, error) {
	if len(s.objects) >= s.config.MaxObjects {
		return nil, fmt.Errorf("create: %w (max %d)", ErrStoreFull, s.config.MaxObjects)
	}

	id := obj.ID
	if id == 0 {
		id = s.nextID
	} else if _, exists := s.objects[id]; exists {
		return nil, fmt.Errorf("create %d: %w", id, ErrIDExists)
	}

	var parent *ArxObject
	if obj.Parent != 0 {
		p, exists := s.objects[obj.Parent]
		if !exists || p.Tombstoned {
			return nil, fmt.Errorf("create %d: parent %d: %w", id, obj.Parent, ErrInvalidParent)
		}
		parent = p
	}

	stored := obj.clone()
	stored.ID = id
	stored.Children = nil
	stored.Tombstoned = false
	stored.Created = time.Now().UTC()

	if !stored.Band.Valid() {
		stored.Band = coordinate.BandForDimension(stored.Dimension)
	}
	if !stored.Band.ConsistentWith(stored.Dimension) {
		stored.ScaleWarning = true
		s.logger.Warn("scale band inconsistent with extent",
			slog.Uint64("id", uint64(id)),
			slog.String("band", stored.Band.String()),
			slog.String("derived", coordinate.BandForDimension(stored.Dimension).String()),
		)
	}

	s.objects[id] = stored
	if parent != nil {
		parent.Children = append(parent.Children, id)
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}
	return stored, nil
}

// removeLocked undoes a createLocked: removes the object and detaches it
// from its parent's child set. Only valid for objects created inside the
// current write section (batch rollback). Caller holds mu.
func (s *Store) removeLocked(id ID) {
	obj, exists := s.objects[id]
	if !exists {
		return
	}
	if obj.Parent != 0 {
		if parent, ok := s.objects[obj.Parent]; ok {
			parent.Children = removeID(parent.Children, id)
		}
	}
	delete(s.objects, id)
}

// UpdateProperties merges a key/value patch into the object's property map,
// last writer wins per key.
//
// Outputs:
//
//	error - ErrNotFound if the object is missing or tombstoned
func (s *Store) UpdateProperties(id ID, patch map[string]Value) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, _, err := s.updatePropertiesLocked(id, patch)
	if err != nil {
		return err
	}
	if obj == nil {
		return nil
	}

	s.generation++
	s.emitLocked(EventUpdated, obj)
	recordMutation("update_properties", time.Since(start))
	return nil
}

// updatePropertiesLocked merges a patch and returns the object plus an undo
// map (previous value per key, nil entry for keys that were absent). Returns
// a nil object for an empty patch. Caller holds mu.
func (s *Store) updatePropertiesLocked(id ID, patch map[string]Value) (*ArxObject, map[string]*Value, error) {
	obj, err := s.liveLocked(id)
	if err != nil {
		return nil, nil, fmt.Errorf("update %d: %w", id, err)
	}
	if len(patch) == 0 {
		return nil, nil, nil
	}

	if obj.Properties == nil {
		obj.Properties = make(map[string]Value, len(patch))
	}
	undo := make(map[string]*Value, len(patch))
	for k, v := range patch {
		if prev, ok := obj.Properties[k]; ok {
			p := prev
			undo[k] = &p
		} else {
			undo[k] = nil
		}
		obj.Properties[k] = v
	}
	return obj, undo, nil
}

// undoPropertiesLocked restores property values recorded by
// updatePropertiesLocked. Caller holds mu.
func (s *Store) undoPropertiesLocked(id ID, undo map[string]*Value) {
	obj, exists := s.objects[id]
	if !exists {
		return
	}
	for k, prev := range undo {
		if prev == nil {
			delete(obj.Properties, k)
		} else {
			obj.Properties[k] = *prev
		}
	}
}

// Reparent moves an object to a new parent, atomically: no reader ever sees
// the object in both child sets or neither.
//
// Description:
//
//	newParent of zero makes the object a root. A reparent into the
//	object's own subtree fails with ErrCycleDetected and leaves the store
//	unchanged. Reparenting to the current parent is a no-op.
//
// Outputs:
//
//	error - ErrNotFound, ErrInvalidParent, ErrCycleDetected, or nil
func (s *Store) Reparent(id, newParent ID) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, _, moved, err := s.reparentLocked(id, newParent)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}

	s.generation++
	s.emitLocked(EventReparented, obj)
	recordMutation("reparent", time.Since(start))
	return nil
}

// reparentLocked moves an object to a new parent and returns the previous
// parent for undo. moved is false for a no-op reparent to the current
// parent. Caller holds mu.
func (s *Store) reparentLocked(id, newParent ID) (obj *ArxObject, oldParent ID, moved bool, err error) {
	obj, lerr := s.liveLocked(id)
	if lerr != nil {
		return nil, 0, false, fmt.Errorf("reparent %d: %w", id, lerr)
	}
	if obj.Parent == newParent {
		return obj, obj.Parent, false, nil
	}

	if newParent != 0 {
		np, exists := s.objects[newParent]
		if !exists || np.Tombstoned {
			return nil, 0, false, fmt.Errorf("reparent %d: parent %d: %w", id, newParent, ErrInvalidParent)
		}
		if id == newParent || s.isAncestorLocked(id, newParent) {
			return nil, 0, false, fmt.Errorf("reparent %d into %d: %w", id, newParent, ErrCycleDetected)
		}
	}

	oldParent = obj.Parent
	if oldParent != 0 {
		if old, exists := s.objects[oldParent]; exists {
			old.Children = removeID(old.Children, id)
		}
	}
	obj.Parent = newParent
	if newParent != 0 {
		s.objects[newParent].Children = append(s.objects[newParent].Children, id)
	}
	return obj, oldParent, true, nil
}

// Tombstone soft-deletes an object and, if cascade is set, all of its
// descendants. One Tombstoned event fires per newly tombstoned object,
// parent before descendants, so observers (the topology graph in
// particular) retire incident edges before the call returns.
//
// Tombstoning an already-tombstoned object is a no-op returning success.
//
// Outputs:
//
//	error - ErrNotFound if the ID was never allocated
func (s *Store) Tombstone(id ID, cascade bool) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.objects[id]
	if !exists {
		return fmt.Errorf("tombstone %d: %w", id, ErrNotFound)
	}
	if obj.Tombstoned {
		return nil
	}

	targets := []*ArxObject{obj}
	if cascade {
		targets = append(targets, s.liveDescendantsLocked(id)...)
	}

	for _, t := range targets {
		t.Tombstoned = true
	}
	s.generation++
	for _, t := range targets {
		s.emitLocked(EventTombstoned, t)
	}
	recordMutation("tombstone", time.Since(start))
	return nil
}

// Get returns a snapshot of the object, tombstoned or not. The second
// return is false when the ID was never allocated.
func (s *Store) Get(id ID) (*ArxObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[id]
	if !exists {
		return nil, false
	}
	return obj.clone(), true
}

// Children returns the IDs of the object's live children in insertion
// order.
//
// Outputs:
//
//	[]ID - Live children; empty slice when there are none
//	error - ErrNotFound if the ID was never allocated
func (s *Store) Children(id ID) ([]ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[id]
	if !exists {
		return nil, fmt.Errorf("children %d: %w", id, ErrNotFound)
	}

	out := make([]ID, 0, len(obj.Children))
	for _, cid := range obj.Children {
		if c, ok := s.objects[cid]; ok && !c.Tombstoned {
			out = append(out, cid)
		}
	}
	return out, nil
}

// Roots returns all live root objects. Order follows map iteration;
// callers needing determinism must sort.
func (s *Store) Roots() []ID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ID
	for id, obj := range s.objects {
		if obj.Parent == 0 && !obj.Tombstoned {
			out = append(out, id)
		}
	}
	return out
}

// IsLive reports whether the ID resolves to a non-tombstoned object.
func (s *Store) IsLive(id ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, exists := s.objects[id]
	return exists && !obj.Tombstoned
}

// CountLive returns the number of live objects.
func (s *Store) CountLive() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, obj := range s.objects {
		if !obj.Tombstoned {
			n++
		}
	}
	return n
}

// liveLocked resolves a live object or returns ErrNotFound. Caller holds mu.
func (s *Store) liveLocked(id ID) (*ArxObject, error) {
	obj, exists := s.objects[id]
	if !exists || obj.Tombstoned {
		return nil, ErrNotFound
	}
	return obj, nil
}

// isAncestorLocked reports whether a is an ancestor of b. Caller holds mu.
func (s *Store) isAncestorLocked(a, b ID) bool {
	seen := make(map[ID]bool)
	for cur := b; cur != 0; {
		obj, exists := s.objects[cur]
		if !exists {
			return false
		}
		if obj.Parent == a {
			return true
		}
		// Guard against corrupted parent chains.
		if seen[cur] {
			return false
		}
		seen[cur] = true
		cur = obj.Parent
	}
	return false
}

// liveDescendantsLocked collects all live descendants of id, depth first in
// child insertion order. Caller holds mu.
func (s *Store) liveDescendantsLocked(id ID) []*ArxObject {
	var out []*ArxObject
	stack := []ID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		obj := s.objects[cur]
		for i := len(obj.Children) - 1; i >= 0; i-- {
			cid := obj.Children[i]
			child, exists := s.objects[cid]
			if !exists || child.Tombstoned {
				continue
			}
			out = append(out, child)
			stack = append(stack, cid)
		}
	}
	return out
}

// emitLocked delivers a change event to all observers. Caller holds mu.
func (s *Store) emitLocked(kind EventKind, obj *ArxObject) {
	if len(s.observers) == 0 {
		return
	}
	evt := Event{
		Kind:    kind,
		ID:      obj.ID,
		EventID: uuid.New(),
		Time:    time.Now().UTC(),
		Object:  obj.clone(),
	}
	for _, obs := range s.observers {
		obs.OnObjectEvent(evt)
	}
}

// removeID removes the first occurrence of id, preserving order.
func removeID(ids []ID, id ID) []ID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
