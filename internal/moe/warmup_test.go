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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWarmup_WarmCompletesAcrossAllExpertsAndPrecisions(t *testing.T) {
	cat := testCatalog()
	provider := testProvider(cat)
	compressor := NewCompressor(nil)
	w := NewWarmup(cat, compressor, nil)

	err := w.Warm(context.Background(), provider, DefaultTokenEstimator())
	require.NoError(t, err)
}

func TestWarmup_WarmRespectsCancellation(t *testing.T) {
	cat := testCatalog()
	provider := testProvider(cat)
	compressor := NewCompressor(nil)
	w := NewWarmup(cat, compressor, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Warm(ctx, provider, DefaultTokenEstimator())
	require.Error(t, err)
}

func TestWarmup_PrefetchRunsAndSignalsWaitGroup(t *testing.T) {
	cat := testCatalog()
	provider := testProvider(cat)
	compressor := NewCompressor(nil)
	selector := NewSelector(cat, compressor, nil)
	w := NewWarmup(cat, compressor, nil)

	var wg sync.WaitGroup
	scores := map[ExpertID]float64{ExpertFileOps: 0.9, ExpertGit: 0.5}
	cfg := DefaultConfig()
	cfg.MaxExpertsPerRoute = 3

	wg.Add(1)
	w.Prefetch(context.Background(), &wg, selector, scores, provider, DefaultTokenEstimator(), cfg)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Prefetch did not signal its WaitGroup in time")
	}
}

func TestWarmup_PrefetchSkipsWhenContextAlreadyCancelled(t *testing.T) {
	cat := testCatalog()
	provider := testProvider(cat)
	compressor := NewCompressor(nil)
	selector := NewSelector(cat, compressor, nil)
	w := NewWarmup(cat, compressor, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	w.Prefetch(ctx, &wg, selector, map[ExpertID]float64{ExpertFileOps: 0.9}, provider, DefaultTokenEstimator(), DefaultConfig())

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Prefetch did not signal its WaitGroup after a cancelled context")
	}
}
