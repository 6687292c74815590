// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package moe

// =============================================================================
// BadgerClassificationSnapshotStore — Cold-Start Persistence
// =============================================================================
//
// The Classification Cache (C5) and Bias State are both in-memory and start
// empty on every process restart, which means the first requests after a
// deploy pay full scoring cost and see the neutral (zero) bias vector. This
// store persists a point-in-time snapshot of both so a restarted process can
// warm-start instead of running cold, adapted directly from router_cache.go's
// BadgerRouterCacheStore: a single BadgerDB entry, gob-encoded, with a TTL
// enforced by BadgerDB's own GC rather than application code.
//
// Unlike the teacher's embedding cache, there is exactly one snapshot key per
// process (not one per corpus hash) — the fingerprint-keyed LRU entries and
// the bias vector are saved and restored together as a single unit, since a
// bias vector without its corresponding cache entries (or vice versa) is not
// a meaningful partial warm-start.
//
// The teacher's `storage/badger` wrapper package (`badgerstore.DB`, with its
// `WithReadTxn`/`WithTxn` helpers) is not present in this retrieval pack, so
// this store is written directly against `*badger.DB`.

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// snapshotDefaultTTL bounds how long a stale snapshot is trusted before
// BadgerDB's GC reclaims it. A week matches the teacher's embedding-cache TTL;
// routing behavior drifts slowly enough that this is generous, not risky.
const snapshotDefaultTTL = 7 * 24 * time.Hour

// snapshotKey is the single BadgerDB key this store reads and writes.
// Versioned (v1) so a future on-disk format change does not collide with an
// older snapshot left behind by a previous binary.
const snapshotKey = "moe/snapshot/v1"

var errSnapshotMiss = errors.New("snapshot miss")

// CachedRouting is one persisted Classification Cache entry: the routing
// fingerprint's result plus the experts it activated, the same pair the
// in-memory ClassificationCache keeps per node.
type CachedRouting struct {
	Fingerprint string
	Result      SparseRouteResult
	Experts     []ExpertID
}

// RouterSnapshot is the full point-in-time state persisted by
// BadgerClassificationSnapshotStore.
type RouterSnapshot struct {
	Routings []CachedRouting
	Bias     map[ExpertID]float64
}

// BadgerClassificationSnapshotStore persists a RouterSnapshot in a BadgerDB
// instance so the Router can warm-start on the next process launch.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions are per-goroutine.
type BadgerClassificationSnapshotStore struct {
	db     *dgbadger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerClassificationSnapshotStore builds a store backed by db, which
// must already be open. The caller owns db's lifecycle; this store never
// closes it. ttl <= 0 uses snapshotDefaultTTL. A nil logger falls back to
// slog.Default().
func NewBadgerClassificationSnapshotStore(db *dgbadger.DB, ttl time.Duration, logger *slog.Logger) *BadgerClassificationSnapshotStore {
	if db == nil {
		panic("NewBadgerClassificationSnapshotStore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = snapshotDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerClassificationSnapshotStore{db: db, ttl: ttl, logger: logger}
}

// Load retrieves the persisted snapshot. Returns (nil, nil) on a cold start
// (no snapshot written yet, or the TTL has expired — BadgerDB reports both as
// ErrKeyNotFound), matching LoadEmbeddings's nil-on-miss contract.
func (s *BadgerClassificationSnapshotStore) Load(ctx context.Context) (*RouterSnapshot, error) {
	var raw []byte
	err := s.db.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errSnapshotMiss
		}
		if err != nil {
			return fmt.Errorf("get snapshot key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})

	if errors.Is(err, errSnapshotMiss) {
		s.logger.Debug("moe snapshot: miss, starting cold")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("moe snapshot load: %w", err)
	}

	var snap RouterSnapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("moe snapshot decode: %w", err)
	}
	s.logger.Debug("moe snapshot: hit",
		slog.Int("routings", len(snap.Routings)),
		slog.Int("bias_entries", len(snap.Bias)),
	)
	return &snap, nil
}

// Save persists snap, overwriting any previous snapshot, with the store's
// configured TTL. A failed save is non-fatal to the caller — the router
// keeps running in-memory and simply starts cold on the next restart — so
// callers should log the returned error as a warning, not treat it as
// terminal.
func (s *BadgerClassificationSnapshotStore) Save(ctx context.Context, snap RouterSnapshot) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("moe snapshot encode: %w", err)
	}

	err := s.db.Update(func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry([]byte(snapshotKey), buf.Bytes()).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("moe snapshot save: %w", err)
	}
	s.logger.Debug("moe snapshot: saved",
		slog.Int("routings", len(snap.Routings)),
		slog.Int("bias_entries", len(snap.Bias)),
		slog.Duration("ttl", s.ttl),
	)
	return nil
}

// Snapshot copies the router's current cache entries and bias vector into a
// RouterSnapshot suitable for Save. It does not clear the live cache or bias
// state; the router keeps serving from memory as normal.
func (r *Router) Snapshot() RouterSnapshot {
	entries := r.cache.Entries()
	out := make([]CachedRouting, len(entries))
	for i, e := range entries {
		out[i] = CachedRouting{Fingerprint: e.Fingerprint, Result: e.Result, Experts: e.Experts}
	}
	return RouterSnapshot{Routings: out, Bias: r.bias.Snapshot()}
}

// Restore seeds the router's Classification Cache and Bias State from a
// previously persisted snapshot. Intended to run once, immediately after
// NewRouter, before the first real Route call. Restoring is best-effort:
// entries are inserted in their saved order so LRU recency is preserved.
func (r *Router) Restore(snap RouterSnapshot) {
	for _, e := range snap.Routings {
		r.cache.Put(e.Fingerprint, e.Result, e.Experts)
	}
	for id, bias := range snap.Bias {
		r.bias.Restore(id, bias)
	}
}
