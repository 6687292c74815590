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

import (
	"context"
	"testing"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestSnapshotDB(t *testing.T) *dgbadger.DB {
	t.Helper()
	opts := dgbadger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := dgbadger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSnapshotStore_LoadOnEmptyDBIsMiss(t *testing.T) {
	db := openTestSnapshotDB(t)
	store := NewBadgerClassificationSnapshotStore(db, 0, nil)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestSnapshotStore_SaveThenLoadRoundTrips(t *testing.T) {
	db := openTestSnapshotDB(t)
	store := NewBadgerClassificationSnapshotStore(db, 0, nil)

	original := RouterSnapshot{
		Routings: []CachedRouting{
			{
				Fingerprint: "fp-1",
				Result:      SparseRouteResult{TotalToolTokens: 123},
				Experts:     []ExpertID{ExpertFileOps},
			},
		},
		Bias: map[ExpertID]float64{ExpertFileOps: 0.2, ExpertGit: -0.1},
	}

	require.NoError(t, store.Save(context.Background(), original))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, original.Routings, loaded.Routings)
	require.Equal(t, original.Bias, loaded.Bias)
}

func TestSnapshotStore_RouterSnapshotAndRestoreRoundTrip(t *testing.T) {
	cat := testCatalog()
	provider := testProvider(cat)
	cfg := DefaultConfig()
	cfg.WarmOnStartup = false
	r1 := NewRouter(cfg, cat, provider, DefaultTokenEstimator(), nil)
	defer r1.Close()

	r1.Route(context.Background(), "list the files in this repo", FileOperation)
	r1.ReportOutcome(ExpertFileOps, true)

	snap := r1.Snapshot()
	require.NotEmpty(t, snap.Routings)

	r2 := NewRouter(cfg, cat, provider, DefaultTokenEstimator(), nil)
	defer r2.Close()
	r2.Restore(snap)

	require.Equal(t, len(snap.Routings), r2.cache.Len())
	for id, bias := range snap.Bias {
		require.Equal(t, bias, r2.bias.Snapshot()[id])
	}
}
