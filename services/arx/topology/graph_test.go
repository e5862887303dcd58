// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package topology

import (
	"errors"
	"testing"

	"github.com/AleutianAI/arxcore/services/arx/coordinate"
	"github.com/AleutianAI/arxcore/services/arx/object"
)

// testFixture wires a store and graph with two live objects.
type testFixture struct {
	store *object.Store
	graph *Graph
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	store, err := object.NewStore(object.StoreConfig{}, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	graph, err := NewGraph(store, GraphConfig{}, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return &testFixture{store: store, graph: graph}
}

func (f *testFixture) createObject(t *testing.T) object.ID {
	t.Helper()
	id, err := f.store.Create(&object.ArxObject{
		Type:      object.TypeBreaker,
		Category:  object.CategoryElectrical,
		Dimension: coordinate.Dimension{W: 18_000_000, D: 80_000_000, H: 90_000_000},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func TestGraphConnect(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		f := newFixture(t)
		a, b := f.createObject(t), f.createObject(t)

		id, err := f.graph.Connect(a, b, KindPower, map[string]object.Value{
			"circuit": object.StringValue("A-7"),
		})
		if err != nil {
			t.Fatalf("Connect: %v", err)
		}

		edge, ok := f.graph.Edge(id)
		if !ok {
			t.Fatal("edge not resolvable")
		}
		if edge.From != a || edge.To != b || edge.Kind != KindPower {
			t.Errorf("unexpected edge: %+v", edge)
		}
		if edge.Properties["circuit"].Str != "A-7" {
			t.Error("edge properties not stored")
		}
	})

	t.Run("dangling endpoints fail", func(t *testing.T) {
		f := newFixture(t)
		a := f.createObject(t)

		if _, err := f.graph.Connect(a, 999, KindPower, nil); !errors.Is(err, ErrDanglingEndpoint) {
			t.Errorf("missing to: expected ErrDanglingEndpoint, got %v", err)
		}
		if _, err := f.graph.Connect(999, a, KindPower, nil); !errors.Is(err, ErrDanglingEndpoint) {
			t.Errorf("missing from: expected ErrDanglingEndpoint, got %v", err)
		}

		dead := f.createObject(t)
		if err := f.store.Tombstone(dead, false); err != nil {
			t.Fatalf("Tombstone: %v", err)
		}
		if _, err := f.graph.Connect(a, dead, KindPower, nil); !errors.Is(err, ErrDanglingEndpoint) {
			t.Errorf("tombstoned to: expected ErrDanglingEndpoint, got %v", err)
		}
	})

	t.Run("duplicate triple fails, different kind allowed", func(t *testing.T) {
		f := newFixture(t)
		a, b := f.createObject(t), f.createObject(t)

		if _, err := f.graph.Connect(a, b, KindPower, nil); err != nil {
			t.Fatalf("first connect: %v", err)
		}
		if _, err := f.graph.Connect(a, b, KindPower, nil); !errors.Is(err, ErrDuplicateEdge) {
			t.Errorf("expected ErrDuplicateEdge, got %v", err)
		}
		if _, err := f.graph.Connect(a, b, KindData, nil); err != nil {
			t.Errorf("different kind must be allowed: %v", err)
		}
		if _, err := f.graph.Connect(b, a, KindPower, nil); err != nil {
			t.Errorf("reverse direction must be allowed: %v", err)
		}
	})

	t.Run("self loop fails", func(t *testing.T) {
		f := newFixture(t)
		a := f.createObject(t)
		if _, err := f.graph.Connect(a, a, KindPower, nil); !errors.Is(err, ErrSelfLoop) {
			t.Errorf("expected ErrSelfLoop, got %v", err)
		}
	})
}

func TestGraphUpsert(t *testing.T) {
	f := newFixture(t)
	a, b := f.createObject(t), f.createObject(t)

	first, err := f.graph.Upsert(a, b, KindPower, map[string]object.Value{
		"amperage": object.IntValue(20),
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := f.graph.Upsert(a, b, KindPower, map[string]object.Value{
		"amperage": object.IntValue(30),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first != second {
		t.Errorf("upsert created a second edge: %d != %d", first, second)
	}

	edge, _ := f.graph.Edge(first)
	if edge.Properties["amperage"].Int != 30 {
		t.Errorf("amperage = %d, want 30 (last writer wins)", edge.Properties["amperage"].Int)
	}
}

func TestGraphDisconnect(t *testing.T) {
	f := newFixture(t)
	a, b := f.createObject(t), f.createObject(t)
	id, err := f.graph.Connect(a, b, KindFluid, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := f.graph.Disconnect(id); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := f.graph.Disconnect(id); err != nil {
		t.Errorf("second disconnect must be a no-op success, got %v", err)
	}
	if err := f.graph.Disconnect(9999); !errors.Is(err, ErrEdgeNotFound) {
		t.Errorf("expected ErrEdgeNotFound, got %v", err)
	}

	if got := f.graph.Outgoing(a); len(got) != 0 {
		t.Errorf("tombstoned edge still listed: %v", got)
	}
	edge, ok := f.graph.Edge(id)
	if !ok || !edge.Tombstoned {
		t.Error("tombstoned edge must stay resolvable by ID")
	}

	// The triple is free again after a disconnect.
	if _, err := f.graph.Connect(a, b, KindFluid, nil); err != nil {
		t.Errorf("reconnect after disconnect: %v", err)
	}
}

func TestGraphAdjacency(t *testing.T) {
	f := newFixture(t)
	panel := f.createObject(t)
	b1, b2, b3 := f.createObject(t), f.createObject(t), f.createObject(t)

	for _, to := range []object.ID{b1, b2, b3} {
		if _, err := f.graph.Connect(panel, to, KindPower, nil); err != nil {
			t.Fatalf("Connect: %v", err)
		}
	}
	if _, err := f.graph.Connect(panel, b1, KindData, nil); err != nil {
		t.Fatalf("Connect data: %v", err)
	}

	t.Run("outgoing in connect order", func(t *testing.T) {
		out := f.graph.Outgoing(panel)
		if len(out) != 4 {
			t.Fatalf("expected 4 outgoing edges, got %d", len(out))
		}
		if out[0].To != b1 || out[1].To != b2 || out[2].To != b3 {
			t.Error("outgoing edges out of connect order")
		}
	})

	t.Run("kind filter", func(t *testing.T) {
		power := f.graph.Outgoing(panel, KindPower)
		if len(power) != 3 {
			t.Errorf("expected 3 power edges, got %d", len(power))
		}
		data := f.graph.Outgoing(panel, KindData)
		if len(data) != 1 || data[0].To != b1 {
			t.Errorf("unexpected data edges: %v", data)
		}
	})

	t.Run("incoming", func(t *testing.T) {
		in := f.graph.Incoming(b1)
		if len(in) != 2 {
			t.Errorf("expected 2 incoming edges at b1, got %d", len(in))
		}
	})
}

// No live edge may reference a tombstoned object, and the cascade must be
// complete before Tombstone returns.
func TestGraphTombstoneCascade(t *testing.T) {
	f := newFixture(t)
	panel := f.createObject(t)
	breaker := f.createObject(t)
	outlet := f.createObject(t)

	if _, err := f.graph.Connect(panel, breaker, KindPower, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := f.graph.Connect(breaker, outlet, KindPower, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := f.store.Tombstone(breaker, false); err != nil {
		t.Fatalf("Tombstone: %v", err)
	}

	if got := f.graph.Outgoing(panel); len(got) != 0 {
		t.Errorf("edge into tombstoned object survived: %v", got)
	}
	if got := f.graph.Incoming(outlet); len(got) != 0 {
		t.Errorf("edge out of tombstoned object survived: %v", got)
	}
	if got := f.graph.CountLive(); got != 0 {
		t.Errorf("expected 0 live edges, got %d", got)
	}

	// The dead endpoint is rejected even though the triple slot is free.
	if _, err := f.graph.Connect(panel, breaker, KindPower, nil); !errors.Is(err, ErrDanglingEndpoint) {
		t.Errorf("expected ErrDanglingEndpoint, got %v", err)
	}
}

func TestGraphEdgeEvents(t *testing.T) {
	f := newFixture(t)

	var events []EdgeEvent
	f.graph.Subscribe(edgeObserverFunc(func(evt EdgeEvent) {
		events = append(events, evt)
	}))

	a, b := f.createObject(t), f.createObject(t)
	id, err := f.graph.Connect(a, b, KindAir, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := f.graph.Upsert(a, b, KindAir, map[string]object.Value{"cfm": object.IntValue(400)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := f.graph.Disconnect(id); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	kinds := []EdgeEventKind{EdgeConnected, EdgeUpdated, EdgeDisconnected}
	if len(events) != len(kinds) {
		t.Fatalf("expected %d events, got %d", len(kinds), len(events))
	}
	for i, want := range kinds {
		if events[i].Kind != want {
			t.Errorf("event %d kind = %v, want %v", i, events[i].Kind, want)
		}
		if events[i].Edge == nil || events[i].Edge.ID != id {
			t.Errorf("event %d carries wrong edge", i)
		}
	}
}

// edgeObserverFunc adapts a function to EdgeObserver.
type edgeObserverFunc func(EdgeEvent)

func (f edgeObserverFunc) OnEdgeEvent(evt EdgeEvent) { f(evt) }
