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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/arxcore/services/arx/object"
)

// Default configuration values.
const (
	// DefaultMaxEdges is the default edge capacity of a graph.
	DefaultMaxEdges = 10_000_000
)

// Kind classifies the functional flow an edge represents.
type Kind int

const (
	// KindPower is electrical supply.
	KindPower Kind = iota

	// KindData is network or signaling flow.
	KindData

	// KindFluid is liquid flow.
	KindFluid

	// KindAir is air flow.
	KindAir

	// KindStructuralSupport is load transfer.
	KindStructuralSupport

	// KindCustom is any flow not covered above; refine via edge
	// properties.
	KindCustom
)

// String returns the kind's display name.
func (k Kind) String() string {
	switch k {
	case KindPower:
		return "power"
	case KindData:
		return "data"
	case KindFluid:
		return "fluid"
	case KindAir:
		return "air"
	case KindStructuralSupport:
		return "structural-support"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// EdgeID identifies an edge for its entire lifetime. Never reused.
type EdgeID uint64

// Edge is a directed functional connection between two objects. Instances
// returned by the graph are snapshots.
type Edge struct {
	// ID is the immutable graph-assigned identifier.
	ID EdgeID `json:"id"`

	// From and To are the object endpoints; flow runs From -> To.
	From object.ID `json:"from"`
	To   object.ID `json:"to"`

	// Kind is the flow classification. At most one live edge may exist
	// per (From, To, Kind) triple.
	Kind Kind `json:"kind"`

	// Properties carries edge metadata (circuit number, rated amperage,
	// pipe diameter).
	Properties map[string]object.Value `json:"properties,omitempty"`

	// Created is when the edge was connected.
	Created time.Time `json:"created"`

	// Tombstoned marks the edge as retired. Tombstoned edges stay
	// resolvable by ID but drop out of Outgoing/Incoming.
	Tombstoned bool `json:"tombstoned,omitempty"`
}

// clone returns a deep copy safe to hand to readers.
func (e *Edge) clone() *Edge {
	cp := *e
	if e.Properties != nil {
		cp.Properties = make(map[string]object.Value, len(e.Properties))
		for k, v := range e.Properties {
			cp.Properties[k] = v
		}
	}
	return &cp
}

// EdgeEventKind identifies the mutation that produced an edge event.
type EdgeEventKind int

const (
	// EdgeConnected fires after a successful connect or the create half
	// of an upsert.
	EdgeConnected EdgeEventKind = iota

	// EdgeUpdated fires after the merge half of an upsert.
	EdgeUpdated

	// EdgeDisconnected fires after an explicit disconnect or an
	// object-tombstone cascade.
	EdgeDisconnected
)

// EdgeEvent is the change notification for edge mutations, mirroring the
// object store's Event contract: synchronous, in registration order.
type EdgeEvent struct {
	Kind    EdgeEventKind `json:"kind"`
	EventID uuid.UUID     `json:"event_id"`
	Time    time.Time     `json:"time"`
	Edge    *Edge         `json:"edge"`
}

// EdgeObserver receives edge events. Same contract as object.Observer: no
// mutation calls from the handler, no blocking.
type EdgeObserver interface {
	OnEdgeEvent(EdgeEvent)
}

// tripleKey enforces composite uniqueness on live edges.
type tripleKey struct {
	from object.ID
	to   object.ID
	kind Kind
}

// GraphConfig configures a Graph.
type GraphConfig struct {
	// MaxEdges caps the total number of allocated edges, live or
	// tombstoned. Zero means DefaultMaxEdges.
	MaxEdges int
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *GraphConfig) ApplyDefaults() {
	if c.MaxEdges == 0 {
		c.MaxEdges = DefaultMaxEdges
	}
}

// Validate checks if the configuration is valid.
func (c *GraphConfig) Validate() error {
	if c.MaxEdges < 0 {
		return fmt.Errorf("MaxEdges must be >= 0")
	}
	return nil
}

// Graph is the directed functional-connection graph.
//
// Thread Safety: Safe for concurrent use.
type Graph struct {
	logger *slog.Logger
	config GraphConfig
	store  *object.Store

	mu        sync.RWMutex
	edges     map[EdgeID]*Edge
	outgoing  map[object.ID][]EdgeID
	incoming  map[object.ID][]EdgeID
	byTriple  map[tripleKey]EdgeID
	dead      map[object.ID]bool
	nextEdge  EdgeID
	observers []EdgeObserver
}

// NewGraph creates an empty topology graph bound to an object store.
//
// Description:
//
//	The graph registers itself as a store observer so object tombstones
//	retire incident edges before the triggering mutation returns.
//
// Inputs:
//   - store: Object store providing endpoint liveness. Required.
//   - config: Graph configuration. Zero values use defaults.
//   - logger: If nil, uses slog.Default().
//
// Outputs:
//   - *Graph: The created graph. Never nil on success.
//   - error: Non-nil if store is nil or configuration is invalid.
func NewGraph(store *object.Store, config GraphConfig, logger *slog.Logger) (*Graph, error) {
	if store == nil {
		return nil, fmt.Errorf("topology: nil object store")
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Graph{
		logger:   logger.With(slog.String("component", "topology_graph")),
		config:   config,
		store:    store,
		edges:    make(map[EdgeID]*Edge),
		outgoing: make(map[object.ID][]EdgeID),
		incoming: make(map[object.ID][]EdgeID),
		byTriple: make(map[tripleKey]EdgeID),
		dead:     make(map[object.ID]bool),
		nextEdge: 1,
	}
	store.Subscribe(g)
	return g, nil
}

// Subscribe registers an edge observer. Register before the first mutation.
func (g *Graph) Subscribe(obs EdgeObserver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, obs)
}

// Connect creates a directed edge from -> to of the given kind.
//
// Outputs:
//
//	EdgeID - The new edge's identifier
//	error - ErrDanglingEndpoint, ErrDuplicateEdge, ErrSelfLoop,
//	        ErrGraphFull, or nil
func (g *Graph) Connect(from, to object.ID, kind Kind, props map[string]object.Value) (EdgeID, error) {
	edge, err := g.connect(from, to, kind, props, false)
	if err != nil {
		return 0, err
	}
	return edge.ID, nil
}

// Upsert is the idempotent connect variant: if a live (from, to, kind) edge
// already exists, its properties are merged last-writer-wins and its ID is
// returned; otherwise a new edge is created.
func (g *Graph) Upsert(from, to object.ID, kind Kind, props map[string]object.Value) (EdgeID, error) {
	edge, err := g.connect(from, to, kind, props, true)
	if err != nil {
		return 0, err
	}
	return edge.ID, nil
}

// connect implements Connect and Upsert. Liveness is checked against the
// store before taking the graph lock (see package docs on lock ordering)
// and re-validated against the graph's tombstone ledger after.
func (g *Graph) connect(from, to object.ID, kind Kind, props map[string]object.Value, upsert bool) (*Edge, error) {
	if from == to {
		return nil, fmt.Errorf("connect %d->%d: %w", from, to, ErrSelfLoop)
	}
	if !g.store.IsLive(from) {
		return nil, fmt.Errorf("connect %d->%d: from: %w", from, to, ErrDanglingEndpoint)
	}
	if !g.store.IsLive(to) {
		return nil, fmt.Errorf("connect %d->%d: to: %w", from, to, ErrDanglingEndpoint)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.dead[from] || g.dead[to] {
		return nil, fmt.Errorf("connect %d->%d: %w", from, to, ErrDanglingEndpoint)
	}

	key := tripleKey{from: from, to: to, kind: kind}
	if existingID, ok := g.byTriple[key]; ok {
		if !upsert {
			return nil, fmt.Errorf("connect %d->%d %v: %w", from, to, kind, ErrDuplicateEdge)
		}
		existing := g.edges[existingID]
		if len(props) > 0 {
			if existing.Properties == nil {
				existing.Properties = make(map[string]object.Value, len(props))
			}
			for k, v := range props {
				existing.Properties[k] = v
			}
		}
		g.emitLocked(EdgeUpdated, existing)
		return existing, nil
	}

	if len(g.edges) >= g.config.MaxEdges {
		return nil, fmt.Errorf("connect: %w (max %d)", ErrGraphFull, g.config.MaxEdges)
	}

	edge := &Edge{
		ID:      g.nextEdge,
		From:    from,
		To:      to,
		Kind:    kind,
		Created: time.Now().UTC(),
	}
	if len(props) > 0 {
		edge.Properties = make(map[string]object.Value, len(props))
		for k, v := range props {
			edge.Properties[k] = v
		}
	}

	g.nextEdge++
	g.edges[edge.ID] = edge
	g.outgoing[from] = append(g.outgoing[from], edge.ID)
	g.incoming[to] = append(g.incoming[to], edge.ID)
	g.byTriple[key] = edge.ID

	g.emitLocked(EdgeConnected, edge)
	recordEdgeMutation("connect")
	return edge, nil
}

// Disconnect tombstones an edge. Disconnecting an already-tombstoned edge
// is a no-op returning success.
//
// Outputs:
//
//	error - ErrEdgeNotFound if the edge ID was never allocated
func (g *Graph) Disconnect(id EdgeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	edge, exists := g.edges[id]
	if !exists {
		return fmt.Errorf("disconnect %d: %w", id, ErrEdgeNotFound)
	}
	if edge.Tombstoned {
		return nil
	}

	g.tombstoneEdgeLocked(edge)
	recordEdgeMutation("disconnect")
	return nil
}

// Edge returns a snapshot of the edge, tombstoned or not.
func (g *Graph) Edge(id EdgeID) (*Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edge, exists := g.edges[id]
	if !exists {
		return nil, false
	}
	return edge.clone(), true
}

// Outgoing returns snapshots of the live edges leaving the object, in
// connect order, optionally filtered to the given kinds.
func (g *Graph) Outgoing(id object.ID, kinds ...Kind) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collectLocked(g.outgoing[id], kinds)
}

// Incoming returns snapshots of the live edges entering the object, in
// connect order, optionally filtered to the given kinds.
func (g *Graph) Incoming(id object.ID, kinds ...Kind) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collectLocked(g.incoming[id], kinds)
}

// CountLive returns the number of live edges.
func (g *Graph) CountLive() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, e := range g.edges {
		if !e.Tombstoned {
			n++
		}
	}
	return n
}

// OnObjectEvent implements object.Observer. Tombstoned events retire every
// incident edge before the store mutation returns; other events only prune
// the liveness ledger.
func (g *Graph) OnObjectEvent(evt object.Event) {
	if evt.Kind != object.EventTombstoned {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.dead[evt.ID] = true
	retired := 0
	for _, edgeID := range append(append([]EdgeID{}, g.outgoing[evt.ID]...), g.incoming[evt.ID]...) {
		edge := g.edges[edgeID]
		if edge == nil || edge.Tombstoned {
			continue
		}
		g.tombstoneEdgeLocked(edge)
		retired++
	}
	if retired > 0 {
		g.logger.Debug("retired incident edges",
			slog.Uint64("object", uint64(evt.ID)),
			slog.Int("edges", retired),
		)
	}
}

// tombstoneEdgeLocked retires one live edge. Caller holds mu.
func (g *Graph) tombstoneEdgeLocked(edge *Edge) {
	edge.Tombstoned = true
	delete(g.byTriple, tripleKey{from: edge.From, to: edge.To, kind: edge.Kind})
	g.emitLocked(EdgeDisconnected, edge)
}

// collectLocked resolves live edges from an ID list with an optional kind
// filter. Caller holds mu.
func (g *Graph) collectLocked(ids []EdgeID, kinds []Kind) []*Edge {
	out := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		edge := g.edges[id]
		if edge == nil || edge.Tombstoned {
			continue
		}
		if len(kinds) > 0 {
			match := false
			for _, k := range kinds {
				if edge.Kind == k {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, edge.clone())
	}
	return out
}

// emitLocked delivers an edge event to all observers. Caller holds mu.
func (g *Graph) emitLocked(kind EdgeEventKind, edge *Edge) {
	if len(g.observers) == 0 {
		return
	}
	evt := EdgeEvent{
		Kind:    kind,
		EventID: uuid.New(),
		Time:    time.Now().UTC(),
		Edge:    edge.clone(),
	}
	for _, obs := range g.observers {
		obs.OnEdgeEvent(evt)
	}
}
