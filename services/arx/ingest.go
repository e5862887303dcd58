// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package arx

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/arxcore/services/arx/object"
	"github.com/AleutianAI/arxcore/services/arx/topology"
)

// IngestObject stages one object for bulk ingestion. Key is the caller's
// external identifier (an IFC GUID, a survey tag); the core never parses
// foreign formats, it only maps keys to internal IDs. ParentKey, when set,
// takes precedence over Object.Parent and must name another staged object.
type IngestObject struct {
	Key       string
	ParentKey string
	Object    *object.ArxObject
}

// IngestConnection stages one edge between staged objects (by key) or
// already-live objects (by ID). For each endpoint exactly one of the key
// and the ID should be set.
type IngestConnection struct {
	FromKey string
	ToKey   string
	From    object.ID
	To      object.ID
	Kind    topology.Kind
	Props   map[string]object.Value
}

// IngestResult maps the caller's external keys to assigned IDs.
type IngestResult struct {
	IDs   map[string]object.ID
	Edges []topology.EdgeID
}

// Ingest applies a bulk load of objects and connections all-or-nothing.
//
// Description:
//
//	Objects are staged into one store batch, so spatial-index and graph
//	synchronization happens once at commit rather than per object. If
//	any create or any connect fails, nothing remains live: a failed
//	batch rolls itself back, and a connect failure after commit is
//	compensated by disconnecting the edges made so far and tombstoning
//	every ingested object. Parents must either be staged earlier in the
//	same call (by key) or already live (by ID).
//
// Outputs:
//
//	*IngestResult - Key-to-ID mapping and created edge IDs; nil on error
//	error - The first create or connect failure, annotated with the
//	  offending key or endpoint pair
func (s *Service) Ingest(objs []IngestObject, conns []IngestConnection) (*IngestResult, error) {
	ids := make(map[string]object.ID, len(objs))

	batch := s.Store.NewBatch()
	for _, staged := range objs {
		if staged.Key == "" {
			return nil, fmt.Errorf("ingest: object with empty key")
		}
		if _, dup := ids[staged.Key]; dup {
			return nil, fmt.Errorf("ingest: duplicate key %q", staged.Key)
		}
		obj := staged.Object
		if obj == nil {
			return nil, fmt.Errorf("ingest %q: nil object", staged.Key)
		}
		if staged.ParentKey != "" {
			parent, ok := ids[staged.ParentKey]
			if !ok {
				return nil, fmt.Errorf("ingest %q: parent key %q not staged earlier", staged.Key, staged.ParentKey)
			}
			obj.Parent = parent
		}
		id, err := batch.Create(obj)
		if err != nil {
			return nil, fmt.Errorf("ingest %q: %w", staged.Key, err)
		}
		ids[staged.Key] = id
	}

	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("ingest commit: %w", err)
	}

	result := &IngestResult{IDs: ids}
	for _, conn := range conns {
		from, err := resolveEndpoint(ids, conn.FromKey, conn.From)
		if err == nil {
			var to object.ID
			to, err = resolveEndpoint(ids, conn.ToKey, conn.To)
			if err == nil {
				var edgeID topology.EdgeID
				edgeID, err = s.Graph.Connect(from, to, conn.Kind, conn.Props)
				if err == nil {
					result.Edges = append(result.Edges, edgeID)
					continue
				}
			}
		}
		s.compensate(result, ids)
		return nil, fmt.Errorf("ingest connect %q/%d -> %q/%d: %w",
			conn.FromKey, conn.From, conn.ToKey, conn.To, err)
	}

	s.logger.Info("ingest applied",
		slog.Int("objects", len(objs)),
		slog.Int("edges", len(result.Edges)),
	)
	return result, nil
}

// resolveEndpoint maps a staged key or a live ID to the endpoint ID.
func resolveEndpoint(ids map[string]object.ID, key string, id object.ID) (object.ID, error) {
	if key != "" {
		staged, ok := ids[key]
		if !ok {
			return 0, fmt.Errorf("endpoint key %q not staged", key)
		}
		return staged, nil
	}
	if id == 0 {
		return 0, fmt.Errorf("endpoint has neither key nor id")
	}
	return id, nil
}

// compensate undoes a partially connected ingest: edges first, then the
// ingested objects. Tombstoning is the strongest undo the store offers;
// the burned IDs stay unused, which is already the contract for failed
// batches.
func (s *Service) compensate(result *IngestResult, ids map[string]object.ID) {
	for _, edgeID := range result.Edges {
		if err := s.Graph.Disconnect(edgeID); err != nil {
			s.logger.Error("ingest compensation: disconnect failed",
				slog.Uint64("edge", uint64(edgeID)),
				slog.String("error", err.Error()),
			)
		}
	}
	for key, id := range ids {
		if err := s.Store.Tombstone(id, false); err != nil {
			s.logger.Error("ingest compensation: tombstone failed",
				slog.String("key", key),
				slog.Uint64("id", uint64(id)),
				slog.String("error", err.Error()),
			)
		}
	}
}
