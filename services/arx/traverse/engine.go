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

// DefaultMaxDepth bounds a walk when the config leaves MaxDepth unset.
const DefaultMaxDepth = 10_000

// Config tunes the traversal engine.
type Config struct {
	// MaxDepth is the maximum hop count from the start object. Walks that
	// hit the bound return a Truncated result rather than an error.
	MaxDepth int
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must be non-negative, got %d", c.MaxDepth)
	}
	return nil
}

// Traversal is the result of one walk.
type Traversal struct {
	// IDs lists reached objects in breadth-first order, excluding the
	// start object.
	IDs []object.ID

	// CycleDetected is set when the walked subgraph contains a directed
	// cycle. The walk still terminates; cycles are never auto-resolved,
	// only reported.
	CycleDetected bool

	// Truncated is set when the depth bound stopped the walk before the
	// frontier was exhausted.
	Truncated bool
}

// Engine walks the topology graph.
//
// Every call runs a fresh breadth-first search with its own visited set;
// the engine holds no iterator state, so concurrent walks and interleaved
// mutations are safe (each walk sees each adjacency list at the moment it
// expands that node).
//
// Thread Safety: Safe for concurrent use.
type Engine struct {
	store  *object.Store
	graph  *topology.Graph
	config Config
	logger *slog.Logger
}

// NewEngine creates a traversal engine over the given store and graph.
func NewEngine(store *object.Store, graph *topology.Graph, config Config, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("traverse: nil object store")
	}
	if graph == nil {
		return nil, fmt.Errorf("traverse: nil topology graph")
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("traverse config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		graph:  graph,
		config: config,
		logger: logger.With(slog.String("component", "traverse_engine")),
	}, nil
}

// direction selects which adjacency list a walk follows.
type direction int

const (
	downstream direction = iota
	upstream
)

func (d direction) String() string {
	if d == upstream {
		return "upstream"
	}
	return "downstream"
}

// Downstream returns every object reachable from start by following
// outgoing edges of the given kinds (all kinds when none given).
//
// Outputs:
//
//	*Traversal - Reached objects in BFS order; CycleDetected and
//	  Truncated report walk conditions without failing it
//	error - ErrStartNotFound if start is not live; ctx.Err() on
//	  cancellation
func (e *Engine) Downstream(ctx context.Context, start object.ID, kinds ...topology.Kind) (*Traversal, error) {
	return e.walk(ctx, start, downstream, kinds)
}

// Upstream returns every object that can reach start by following incoming
// edges of the given kinds (all kinds when none given).
func (e *Engine) Upstream(ctx context.Context, start object.ID, kinds ...topology.Kind) (*Traversal, error) {
	return e.walk(ctx, start, upstream, kinds)
}

// frontierNode is one BFS queue slot.
type frontierNode struct {
	id    object.ID
	depth int
}

func (e *Engine) neighbors(id object.ID, dir direction, kinds []topology.Kind) []*topology.Edge {
	if dir == upstream {
		return e.graph.Incoming(id, kinds...)
	}
	return e.graph.Outgoing(id, kinds...)
}

// edgeTarget returns the far endpoint of an edge relative to the walk
// direction.
func edgeTarget(edge *topology.Edge, dir direction) object.ID {
	if dir == upstream {
		return edge.From
	}
	return edge.To
}

// walk runs one breadth-first search.
func (e *Engine) walk(ctx context.Context, start object.ID, dir direction, kinds []topology.Kind) (*Traversal, error) {
	startTime := time.Now()
	if !e.store.IsLive(start) {
		return nil, fmt.Errorf("walk from %d: %w", start, ErrStartNotFound)
	}

	result := &Traversal{}
	visited := map[object.ID]bool{start: true}
	adjacency := map[object.ID][]object.ID{}
	queue := []frontierNode{{id: start}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("walk from %d: %w", start, err)
		}
		node := queue[0]
		queue = queue[1:]

		if node.depth >= e.config.MaxDepth {
			// Only a real unexplored frontier counts as truncation.
			for _, edge := range e.neighbors(node.id, dir, kinds) {
				if !visited[edgeTarget(edge, dir)] {
					result.Truncated = true
					break
				}
			}
			continue
		}

		for _, edge := range e.neighbors(node.id, dir, kinds) {
			next := edgeTarget(edge, dir)
			// Every edge between walked objects participates in cycle
			// detection, including edges that did not advance the frontier.
			adjacency[node.id] = append(adjacency[node.id], next)
			if visited[next] {
				continue
			}
			visited[next] = true
			result.IDs = append(result.IDs, next)
			queue = append(queue, frontierNode{id: next, depth: node.depth + 1})
		}
	}
	result.CycleDetected = hasCycle(adjacency, start)

	recordWalk(dir.String(), time.Since(startTime), len(result.IDs))
	return result, nil
}

// hasCycle reports whether the subgraph a walk traversed contains a
// directed cycle. Depth-first three-color search from the walk's start:
// an edge into a node still on the DFS stack closes a cycle. Cross edges
// into finished nodes (shared feeds, diamonds) do not.
func hasCycle(adjacency map[object.ID][]object.ID, start object.ID) bool {
	const (
		unvisited = iota
		onStack
		done
	)
	type frame struct {
		id   object.ID
		next int
	}

	color := map[object.ID]int{start: onStack}
	stack := []frame{{id: start}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		targets := adjacency[top.id]
		if top.next >= len(targets) {
			color[top.id] = done
			stack = stack[:len(stack)-1]
			continue
		}
		target := targets[top.next]
		top.next++
		switch color[target] {
		case onStack:
			return true
		case unvisited:
			color[target] = onStack
			stack = append(stack, frame{id: target})
		}
	}
	return false
}

// Path returns the shortest hop path from one object to another following
// edges of the given kinds, both endpoints inclusive.
//
// Outputs:
//
//	[]object.ID - from, intermediate objects, to
//	error - ErrStartNotFound if either endpoint is not live; ErrNoPath
//	  when to is unreachable within the depth bound
func (e *Engine) Path(ctx context.Context, from, to object.ID, kinds ...topology.Kind) ([]object.ID, error) {
	startTime := time.Now()
	if !e.store.IsLive(from) {
		return nil, fmt.Errorf("path from %d: %w", from, ErrStartNotFound)
	}
	if !e.store.IsLive(to) {
		return nil, fmt.Errorf("path to %d: %w", to, ErrStartNotFound)
	}
	if from == to {
		return []object.ID{from}, nil
	}

	visited := map[object.ID]bool{from: true}
	parent := map[object.ID]object.ID{}
	queue := []frontierNode{{id: from}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("path from %d: %w", from, err)
		}
		node := queue[0]
		queue = queue[1:]
		if node.depth >= e.config.MaxDepth {
			continue
		}

		for _, edge := range e.graph.Outgoing(node.id, kinds...) {
			next := edge.To
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = node.id

			if next == to {
				path := assemblePath(parent, from, to)
				recordWalk("path", time.Since(startTime), len(path))
				return path, nil
			}
			queue = append(queue, frontierNode{id: next, depth: node.depth + 1})
		}
	}
	return nil, fmt.Errorf("path %d -> %d: %w", from, to, ErrNoPath)
}

// assemblePath rebuilds the from->to path from BFS parent links.
func assemblePath(parent map[object.ID]object.ID, from, to object.ID) []object.ID {
	var reversed []object.ID
	for cur := to; ; cur = parent[cur] {
		reversed = append(reversed, cur)
		if cur == from {
			break
		}
	}
	path := make([]object.ID, len(reversed))
	for i, id := range reversed {
		path[len(path)-1-i] = id
	}
	return path
}
