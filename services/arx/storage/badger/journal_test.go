// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/arxcore/services/arx/coordinate"
	"github.com/AleutianAI/arxcore/services/arx/object"
	"github.com/AleutianAI/arxcore/services/arx/topology"
)

// fixture wires a store, graph, and journal observing both.
type fixture struct {
	store   *object.Store
	graph   *topology.Graph
	journal *Journal
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store, err := object.NewStore(object.StoreConfig{}, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	graph, err := topology.NewGraph(store, topology.GraphConfig{}, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	journal, err := OpenJournal(cfg, nil)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })
	store.Subscribe(journal)
	graph.Subscribe(journal)
	return &fixture{store: store, graph: graph, journal: journal}
}

func (f *fixture) createObject(t *testing.T) object.ID {
	t.Helper()
	id, err := f.store.Create(&object.ArxObject{
		Type:      object.TypePanel,
		Category:  object.CategoryElectrical,
		Dimension: coordinate.Dimension{W: 500_000_000, D: 150_000_000, H: 800_000_000},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func collect(t *testing.T, j *Journal) []Entry {
	t.Helper()
	var entries []Entry
	err := j.Replay(context.Background(), func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	return entries
}

func TestJournalAppendAndReplay(t *testing.T) {
	f := newFixture(t, InMemoryConfig())

	panel := f.createObject(t)
	breaker := f.createObject(t)
	edgeID, err := f.graph.Connect(panel, breaker, topology.KindPower, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := f.store.UpdateProperties(panel, map[string]object.Value{
		"rating_amps": object.IntValue(200),
	}); err != nil {
		t.Fatalf("UpdateProperties: %v", err)
	}
	if err := f.store.Tombstone(breaker, false); err != nil {
		t.Fatalf("Tombstone: %v", err)
	}

	entries := collect(t, f.journal)

	// create, create, connect, update, then the tombstone cascade: the
	// incident edge disconnect lands before the object tombstone because
	// the graph observes the store.
	wantSources := []EntrySource{
		SourceObject, SourceObject, SourceEdge, SourceObject, SourceEdge, SourceObject,
	}
	if len(entries) != len(wantSources) {
		t.Fatalf("got %d entries, want %d", len(entries), len(wantSources))
	}
	for i, e := range entries {
		if e.Seq != uint64(i+1) {
			t.Errorf("entry %d seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.Source != wantSources[i] {
			t.Errorf("entry %d source = %s, want %s", i, e.Source, wantSources[i])
		}
	}

	if evt := entries[0].ObjectEvent; evt == nil || evt.Kind != object.EventCreated || evt.ID != panel {
		t.Errorf("entry 0 = %+v, want create of %d", entries[0], panel)
	}
	if evt := entries[2].EdgeEvent; evt == nil || evt.Kind != topology.EdgeConnected || evt.Edge.ID != edgeID {
		t.Errorf("entry 2 = %+v, want connect of edge %d", entries[2], edgeID)
	}
	if evt := entries[3].ObjectEvent; evt == nil || evt.Kind != object.EventUpdated {
		t.Errorf("entry 3 = %+v, want property update", entries[3])
	}
	if evt := entries[4].EdgeEvent; evt == nil || evt.Kind != topology.EdgeDisconnected {
		t.Errorf("entry 4 = %+v, want edge disconnect", entries[4])
	}
	if evt := entries[5].ObjectEvent; evt == nil || evt.Kind != object.EventTombstoned || evt.ID != breaker {
		t.Errorf("entry 5 = %+v, want tombstone of %d", entries[5], breaker)
	}

	if got := f.journal.LastSeq(); got != 6 {
		t.Errorf("LastSeq = %d, want 6", got)
	}
}

func TestJournalSnapshotFidelity(t *testing.T) {
	f := newFixture(t, InMemoryConfig())
	id := f.createObject(t)

	entries := collect(t, f.journal)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	obj := entries[0].ObjectEvent.Object
	if obj == nil || obj.ID != id {
		t.Fatal("journaled event carries no object snapshot")
	}
	if obj.Band != coordinate.BandEquipment {
		t.Errorf("snapshot band = %v, want equipment", obj.Band)
	}
	if entries[0].ObjectEvent.EventID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("journaled event has zero EventID")
	}
}

func TestJournalSequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false

	journal, err := OpenJournal(cfg, nil)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	journal.OnObjectEvent(object.Event{Kind: object.EventCreated, ID: 1})
	journal.OnObjectEvent(object.Event{Kind: object.EventCreated, ID: 2})
	if got := journal.LastSeq(); got != 2 {
		t.Fatalf("LastSeq = %d, want 2", got)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenJournal(cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if got := reopened.LastSeq(); got != 2 {
		t.Errorf("LastSeq after reopen = %d, want 2", got)
	}
	if got := collect(t, reopened); len(got) != 2 {
		t.Errorf("replay after reopen returned %d entries, want 2", len(got))
	}

	// New entries continue the persisted sequence.
	reopened.OnObjectEvent(object.Event{Kind: object.EventCreated, ID: 99})
	if got := reopened.LastSeq(); got != 3 {
		t.Errorf("LastSeq after append = %d, want 3", got)
	}
}

func TestJournalReplayStops(t *testing.T) {
	f := newFixture(t, InMemoryConfig())
	f.createObject(t)
	f.createObject(t)

	sentinel := errors.New("stop")
	var seen int
	err := f.journal.Replay(context.Background(), func(Entry) error {
		seen++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
	if seen != 1 {
		t.Errorf("callback ran %d times, want 1", seen)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.journal.Replay(ctx, func(Entry) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
