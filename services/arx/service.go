// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package arx wires the spatial-topological model into one service: the
// object store, the topology graph, the spatial index, the traversal
// engine, and optionally the change journal.
package arx

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/arxcore/services/arx/config"
	"github.com/AleutianAI/arxcore/services/arx/object"
	"github.com/AleutianAI/arxcore/services/arx/spatial"
	badgerstore "github.com/AleutianAI/arxcore/services/arx/storage/badger"
	"github.com/AleutianAI/arxcore/services/arx/topology"
	"github.com/AleutianAI/arxcore/services/arx/traverse"
)

// Service is the assembled model. All components share the one store and
// stay synchronized through its synchronous event stream; there is no
// polling and no eventual consistency between them.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	Store    *object.Store
	Graph    *topology.Graph
	Index    *spatial.Index
	Traverse *traverse.Engine
	Journal  *badgerstore.Journal

	logger *slog.Logger
}

// New assembles a Service from configuration.
//
// Description:
//
//	Components subscribe to the store in dependency order: the graph
//	first, so incident edges are already tombstoned when later observers
//	see an object tombstone; then the spatial index; then the journal,
//	which must record the final shape of every mutation.
//
// Inputs:
//
//	cfg - Validated configuration (see config.Load)
//	logger - If nil, uses slog.Default()
//
// Outputs:
//
//	*Service - Ready to use; call Close when done
//	error - Non-nil if any component rejects its configuration
func New(cfg config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arx: %w", err)
	}

	store, err := object.NewStore(object.StoreConfig{MaxObjects: cfg.MaxObjects}, logger)
	if err != nil {
		return nil, fmt.Errorf("arx: object store: %w", err)
	}
	graph, err := topology.NewGraph(store, topology.GraphConfig{MaxEdges: cfg.MaxEdges}, logger)
	if err != nil {
		return nil, fmt.Errorf("arx: topology graph: %w", err)
	}
	index, err := spatial.NewIndex(store, logger)
	if err != nil {
		return nil, fmt.Errorf("arx: spatial index: %w", err)
	}
	engine, err := traverse.NewEngine(store, graph, traverse.Config{MaxDepth: cfg.MaxTraversalDepth}, logger)
	if err != nil {
		return nil, fmt.Errorf("arx: traverse engine: %w", err)
	}

	svc := &Service{
		Store:    store,
		Graph:    graph,
		Index:    index,
		Traverse: engine,
		logger:   logger.With(slog.String("component", "arx_service")),
	}

	if cfg.Journal.Enabled {
		journalCfg := badgerstore.Config{
			Path:       cfg.Journal.Dir,
			InMemory:   cfg.Journal.InMemory,
			SyncWrites: cfg.Journal.SyncWrites,
		}
		journal, err := badgerstore.OpenJournal(journalCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("arx: journal: %w", err)
		}
		store.Subscribe(journal)
		graph.Subscribe(journal)
		svc.Journal = journal
	}

	svc.logger.Info("service assembled",
		slog.Int("max_objects", cfg.MaxObjects),
		slog.Int("max_edges", cfg.MaxEdges),
		slog.Bool("journal", cfg.Journal.Enabled),
	)
	return svc, nil
}

// Close releases the journal, if one is open. The in-memory components
// need no teardown.
func (s *Service) Close() error {
	if s.Journal == nil {
		return nil
	}
	if err := s.Journal.Close(); err != nil {
		return fmt.Errorf("arx: close journal: %w", err)
	}
	return nil
}
