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
	"errors"
	"testing"

	"github.com/AleutianAI/arxcore/services/arx/coordinate"
)

// recordingObserver captures events for assertions.
type recordingObserver struct {
	events []Event
}

func (r *recordingObserver) OnObjectEvent(evt Event) {
	r.events = append(r.events, evt)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(StoreConfig{}, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func mustCreate(t *testing.T, s *Store, obj *ArxObject) ID {
	t.Helper()
	id, err := s.Create(obj)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

// roomObject builds a plausible room-scale object.
func roomObject(parent ID) *ArxObject {
	return &ArxObject{
		Type:     TypeRoom,
		Category: CategorySpatial,
		Parent:   parent,
		Dimension: coordinate.Dimension{
			W: 5_000_000_000, D: 4_000_000_000, H: 3_000_000_000,
		},
	}
}

func TestStoreCreate(t *testing.T) {
	t.Run("assigns sequential ids", func(t *testing.T) {
		s := newTestStore(t)
		a := mustCreate(t, s, roomObject(0))
		b := mustCreate(t, s, roomObject(0))
		if a == 0 || b == 0 || a == b {
			t.Errorf("expected distinct non-zero ids, got %d, %d", a, b)
		}
	})

	t.Run("derives band when invalid", func(t *testing.T) {
		s := newTestStore(t)
		obj := roomObject(0)
		obj.Band = coordinate.Band(-100)
		id := mustCreate(t, s, obj)
		got, _ := s.Get(id)
		if got.Band != coordinate.BandRoom {
			t.Errorf("expected derived band room, got %v", got.Band)
		}
	})

	t.Run("flags scale warnings without failing", func(t *testing.T) {
		s := newTestStore(t)
		obj := roomObject(0)
		obj.Band = coordinate.BandCampus
		id := mustCreate(t, s, obj)
		got, _ := s.Get(id)
		if !got.ScaleWarning {
			t.Error("expected ScaleWarning on a campus-banded room extent")
		}
		if got.Band != coordinate.BandCampus {
			t.Error("caller band must be preserved, warning or not")
		}
	})

	t.Run("missing parent fails", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Create(roomObject(999))
		if !errors.Is(err, ErrInvalidParent) {
			t.Errorf("expected ErrInvalidParent, got %v", err)
		}
	})

	t.Run("tombstoned parent fails", func(t *testing.T) {
		s := newTestStore(t)
		p := mustCreate(t, s, roomObject(0))
		if err := s.Tombstone(p, false); err != nil {
			t.Fatalf("Tombstone: %v", err)
		}
		_, err := s.Create(roomObject(p))
		if !errors.Is(err, ErrInvalidParent) {
			t.Errorf("expected ErrInvalidParent, got %v", err)
		}
	})

	t.Run("explicit id collision fails", func(t *testing.T) {
		s := newTestStore(t)
		id := mustCreate(t, s, roomObject(0))
		dup := roomObject(0)
		dup.ID = id
		if _, err := s.Create(dup); !errors.Is(err, ErrIDExists) {
			t.Errorf("expected ErrIDExists, got %v", err)
		}
	})

	t.Run("inserts into parent child set in order", func(t *testing.T) {
		s := newTestStore(t)
		p := mustCreate(t, s, roomObject(0))
		c1 := mustCreate(t, s, roomObject(p))
		c2 := mustCreate(t, s, roomObject(p))

		children, err := s.Children(p)
		if err != nil {
			t.Fatalf("Children: %v", err)
		}
		if len(children) != 2 || children[0] != c1 || children[1] != c2 {
			t.Errorf("expected [%d %d], got %v", c1, c2, children)
		}
	})
}

func TestStoreGetReturnsSnapshot(t *testing.T) {
	s := newTestStore(t)
	id := mustCreate(t, s, roomObject(0))
	if err := s.UpdateProperties(id, map[string]Value{"name": StringValue("mechanical room")}); err != nil {
		t.Fatalf("UpdateProperties: %v", err)
	}

	snap, ok := s.Get(id)
	if !ok {
		t.Fatal("expected object")
	}
	snap.Properties["name"] = StringValue("tampered")
	snap.Children = append(snap.Children, 999)

	fresh, _ := s.Get(id)
	if fresh.Properties["name"].Str != "mechanical room" {
		t.Error("mutating a snapshot must not affect the store")
	}
	if len(fresh.Children) != 0 {
		t.Error("mutating a snapshot's children must not affect the store")
	}
}

func TestStoreUpdateProperties(t *testing.T) {
	s := newTestStore(t)
	id := mustCreate(t, s, roomObject(0))

	t.Run("last writer wins per key", func(t *testing.T) {
		if err := s.UpdateProperties(id, map[string]Value{
			"rating":  IntValue(100),
			"circuit": StringValue("A-7"),
		}); err != nil {
			t.Fatalf("first patch: %v", err)
		}
		if err := s.UpdateProperties(id, map[string]Value{
			"rating": IntValue(200),
		}); err != nil {
			t.Fatalf("second patch: %v", err)
		}

		got, _ := s.Get(id)
		if got.Properties["rating"].Int != 200 {
			t.Errorf("rating = %d, want 200", got.Properties["rating"].Int)
		}
		if got.Properties["circuit"].Str != "A-7" {
			t.Error("untouched keys must survive a patch")
		}
	})

	t.Run("unknown object fails", func(t *testing.T) {
		err := s.UpdateProperties(12345, map[string]Value{"x": IntValue(1)})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("tombstoned object rejects updates", func(t *testing.T) {
		dead := mustCreate(t, s, roomObject(0))
		if err := s.Tombstone(dead, false); err != nil {
			t.Fatalf("Tombstone: %v", err)
		}
		err := s.UpdateProperties(dead, map[string]Value{"x": IntValue(1)})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStoreReparent(t *testing.T) {
	t.Run("moves between parents atomically", func(t *testing.T) {
		s := newTestStore(t)
		a := mustCreate(t, s, roomObject(0))
		b := mustCreate(t, s, roomObject(0))
		c := mustCreate(t, s, roomObject(a))

		if err := s.Reparent(c, b); err != nil {
			t.Fatalf("Reparent: %v", err)
		}

		aKids, _ := s.Children(a)
		bKids, _ := s.Children(b)
		if len(aKids) != 0 {
			t.Errorf("old parent still lists child: %v", aKids)
		}
		if len(bKids) != 1 || bKids[0] != c {
			t.Errorf("new parent children = %v, want [%d]", bKids, c)
		}
		got, _ := s.Get(c)
		if got.Parent != b {
			t.Errorf("child parent = %d, want %d", got.Parent, b)
		}
	})

	t.Run("reparent into descendant fails and leaves store unchanged", func(t *testing.T) {
		s := newTestStore(t)
		a := mustCreate(t, s, roomObject(0))
		b := mustCreate(t, s, roomObject(a))
		c := mustCreate(t, s, roomObject(b))

		genBefore := s.Generation()
		err := s.Reparent(a, c)
		if !errors.Is(err, ErrCycleDetected) {
			t.Fatalf("expected ErrCycleDetected, got %v", err)
		}
		if s.Generation() != genBefore {
			t.Error("failed reparent must not advance the generation")
		}
		got, _ := s.Get(a)
		if got.Parent != 0 {
			t.Error("failed reparent must leave the parent pointer unchanged")
		}
		bKids, _ := s.Children(b)
		if len(bKids) != 1 || bKids[0] != c {
			t.Error("failed reparent must leave child sets unchanged")
		}
	})

	t.Run("self reparent fails", func(t *testing.T) {
		s := newTestStore(t)
		a := mustCreate(t, s, roomObject(0))
		if err := s.Reparent(a, a); !errors.Is(err, ErrCycleDetected) {
			t.Errorf("expected ErrCycleDetected, got %v", err)
		}
	})

	t.Run("to root", func(t *testing.T) {
		s := newTestStore(t)
		a := mustCreate(t, s, roomObject(0))
		b := mustCreate(t, s, roomObject(a))
		if err := s.Reparent(b, 0); err != nil {
			t.Fatalf("Reparent to root: %v", err)
		}
		got, _ := s.Get(b)
		if got.Parent != 0 {
			t.Errorf("parent = %d, want 0", got.Parent)
		}
	})
}

// Referential symmetry: after any successful mutation, parent and child
// pointers agree in both directions.
func TestStoreReferentialSymmetry(t *testing.T) {
	s := newTestStore(t)
	a := mustCreate(t, s, roomObject(0))
	b := mustCreate(t, s, roomObject(a))
	c := mustCreate(t, s, roomObject(a))
	_ = mustCreate(t, s, roomObject(b))
	if err := s.Reparent(c, b); err != nil {
		t.Fatalf("Reparent: %v", err)
	}

	check := func(id ID) {
		obj, ok := s.Get(id)
		if !ok {
			t.Fatalf("object %d missing", id)
		}
		if obj.Parent != 0 {
			siblings, err := s.Children(obj.Parent)
			if err != nil {
				t.Fatalf("Children(%d): %v", obj.Parent, err)
			}
			found := false
			for _, sid := range siblings {
				if sid == id {
					found = true
				}
			}
			if !found {
				t.Errorf("parent %d does not list child %d", obj.Parent, id)
			}
		}
		kids, err := s.Children(id)
		if err != nil {
			t.Fatalf("Children(%d): %v", id, err)
		}
		for _, kid := range kids {
			child, _ := s.Get(kid)
			if child.Parent != id {
				t.Errorf("child %d does not point back at parent %d", kid, id)
			}
		}
	}
	for _, id := range []ID{a, b, c} {
		check(id)
	}
}

func TestStoreTombstone(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		s := newTestStore(t)
		id := mustCreate(t, s, roomObject(0))
		if err := s.Tombstone(id, false); err != nil {
			t.Fatalf("first tombstone: %v", err)
		}
		if err := s.Tombstone(id, false); err != nil {
			t.Errorf("second tombstone must be a no-op success, got %v", err)
		}
	})

	t.Run("unknown id fails", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.Tombstone(42, false); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("cascade reaches all descendants", func(t *testing.T) {
		s := newTestStore(t)
		obs := &recordingObserver{}
		s.Subscribe(obs)

		a := mustCreate(t, s, roomObject(0))
		b := mustCreate(t, s, roomObject(a))
		c := mustCreate(t, s, roomObject(b))
		d := mustCreate(t, s, roomObject(0)) // unrelated

		obs.events = nil
		if err := s.Tombstone(a, true); err != nil {
			t.Fatalf("Tombstone: %v", err)
		}

		for _, id := range []ID{a, b, c} {
			got, _ := s.Get(id)
			if !got.Tombstoned {
				t.Errorf("object %d should be tombstoned", id)
			}
		}
		if got, _ := s.Get(d); got.Tombstoned {
			t.Error("unrelated object must not be tombstoned")
		}
		if len(obs.events) != 3 {
			t.Errorf("expected 3 tombstone events, got %d", len(obs.events))
		}
		if obs.events[0].ID != a {
			t.Error("parent must be tombstoned before descendants")
		}
	})

	t.Run("tombstoned objects stay resolvable", func(t *testing.T) {
		s := newTestStore(t)
		id := mustCreate(t, s, roomObject(0))
		if err := s.Tombstone(id, false); err != nil {
			t.Fatalf("Tombstone: %v", err)
		}
		got, ok := s.Get(id)
		if !ok || !got.Tombstoned {
			t.Error("tombstoned object must resolve with Tombstoned set")
		}
		if s.IsLive(id) {
			t.Error("tombstoned object must not be live")
		}
	})

	t.Run("ids are never reused", func(t *testing.T) {
		s := newTestStore(t)
		id := mustCreate(t, s, roomObject(0))
		if err := s.Tombstone(id, false); err != nil {
			t.Fatalf("Tombstone: %v", err)
		}
		next := mustCreate(t, s, roomObject(0))
		if next <= id {
			t.Errorf("expected a fresh id after tombstone, got %d after %d", next, id)
		}
	})
}

func TestStoreEvents(t *testing.T) {
	s := newTestStore(t)
	obs := &recordingObserver{}
	s.Subscribe(obs)

	id := mustCreate(t, s, roomObject(0))
	if err := s.UpdateProperties(id, map[string]Value{"x": IntValue(1)}); err != nil {
		t.Fatalf("UpdateProperties: %v", err)
	}
	if err := s.Tombstone(id, false); err != nil {
		t.Fatalf("Tombstone: %v", err)
	}

	kinds := []EventKind{EventCreated, EventUpdated, EventTombstoned}
	if len(obs.events) != len(kinds) {
		t.Fatalf("expected %d events, got %d", len(kinds), len(obs.events))
	}
	for i, want := range kinds {
		evt := obs.events[i]
		if evt.Kind != want {
			t.Errorf("event %d kind = %v, want %v", i, evt.Kind, want)
		}
		if evt.ID != id {
			t.Errorf("event %d id = %d, want %d", i, evt.ID, id)
		}
		if evt.Object == nil {
			t.Errorf("event %d missing object snapshot", i)
		}
		if evt.EventID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Errorf("event %d missing event id", i)
		}
	}
}

func TestStoreCapacity(t *testing.T) {
	s, err := NewStore(StoreConfig{MaxObjects: 2}, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	mustCreate(t, s, roomObject(0))
	mustCreate(t, s, roomObject(0))
	if _, err := s.Create(roomObject(0)); !errors.Is(err, ErrStoreFull) {
		t.Errorf("expected ErrStoreFull, got %v", err)
	}
}
