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
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/arxcore/services/arx/object"
	"github.com/AleutianAI/arxcore/services/arx/topology"
)

// entryPrefix namespaces journal keys. The sequence number is zero-padded
// so lexicographic key order equals append order.
const entryPrefix = "evt/"

// EntrySource identifies which subsystem produced a journal entry.
type EntrySource string

const (
	// SourceObject marks object store change events.
	SourceObject EntrySource = "object"

	// SourceEdge marks topology edge events.
	SourceEdge EntrySource = "edge"
)

// Entry is one journaled change event. Exactly one of ObjectEvent and
// EdgeEvent is set, per Source.
type Entry struct {
	Seq         uint64              `json:"seq"`
	Source      EntrySource         `json:"source"`
	ObjectEvent *object.Event       `json:"object_event,omitempty"`
	EdgeEvent   *topology.EdgeEvent `json:"edge_event,omitempty"`
}

// Journal is the append-only change journal.
//
// Description:
//
//	The journal subscribes to the object store and topology graph like
//	any other observer and serializes every change event under an
//	increasing sequence number. Replay streams the entries back in append
//	order, which is enough to rebuild the full model state externally.
//	Entries are never rewritten or deleted.
//
// Thread Safety: Safe for concurrent use. Events arrive synchronously
// from inside store and graph write sections, so append latency is write
// latency; use an in-memory or async-sync config where that matters.
type Journal struct {
	db     *badger.DB
	logger *slog.Logger

	mu  sync.Mutex
	seq uint64
}

// OpenJournal opens (or creates) a journal and resumes its sequence
// counter from the last persisted entry.
func OpenJournal(cfg Config, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{
		db:     db,
		logger: logger.With(slog.String("component", "change_journal")),
	}
	if err := j.recoverSeq(); err != nil {
		db.Close()
		return nil, fmt.Errorf("recover journal sequence: %w", err)
	}
	j.logger.Info("journal opened",
		slog.Uint64("last_seq", j.seq),
		slog.Bool("in_memory", cfg.InMemory),
	)
	return j, nil
}

// recoverSeq finds the highest persisted sequence number.
func (j *Journal) recoverSeq() error {
	return j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse-seek just past the prefix range to land on the last key.
		seek := append([]byte(entryPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix([]byte(entryPrefix)); it.Next() {
			var seq uint64
			key := string(it.Item().Key())
			if _, err := fmt.Sscanf(key, entryPrefix+"%020d", &seq); err != nil {
				return fmt.Errorf("malformed journal key %q: %w", key, err)
			}
			j.seq = seq
			return nil
		}
		return nil
	})
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// LastSeq returns the sequence number of the most recent entry, 0 when the
// journal is empty.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// OnObjectEvent implements object.Observer.
func (j *Journal) OnObjectEvent(evt object.Event) {
	j.append(Entry{Source: SourceObject, ObjectEvent: &evt})
}

// OnEdgeEvent implements topology.EdgeObserver.
func (j *Journal) OnEdgeEvent(evt topology.EdgeEvent) {
	j.append(Entry{Source: SourceEdge, EdgeEvent: &evt})
}

// append persists one entry under the next sequence number. Observer
// callbacks cannot return errors; append failures are logged and the
// in-memory model stays authoritative.
func (j *Journal) append(entry Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry.Seq = j.seq + 1
	payload, err := json.Marshal(entry)
	if err != nil {
		j.logger.Error("journal entry marshal failed",
			slog.Uint64("seq", entry.Seq),
			slog.String("error", err.Error()),
		)
		return
	}

	key := fmt.Appendf(nil, entryPrefix+"%020d", entry.Seq)
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	})
	if err != nil {
		j.logger.Error("journal append failed",
			slog.Uint64("seq", entry.Seq),
			slog.String("error", err.Error()),
		)
		return
	}
	j.seq = entry.Seq
}

// Replay streams every journal entry in append order.
//
// Inputs:
//
//	ctx - Cancels a long replay between entries
//	fn - Called once per entry; a non-nil return stops the replay and is
//	  returned to the caller
func (j *Journal) Replay(ctx context.Context, fn func(Entry) error) error {
	return j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(entryPrefix)); it.ValidForPrefix([]byte(entryPrefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("replay entry %s: %w", it.Item().Key(), err)
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	})
}
