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
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// warmupConcurrency bounds how many experts are rendered in parallel during
// Warm, the same role toolEmbeddingWarmConcurrency plays in the teacher's
// embedder.go (there bounding parallel Ollama calls; here bounding parallel
// string rendering, which is cheap enough that the cap mostly exists to
// keep the pattern consistent rather than to protect a scarce resource).
const warmupConcurrency = 10

// allPrecisions is iterated by Warm to exercise every rendering path once.
var allPrecisions = [...]ToolPrecision{PrecisionFull, PrecisionHalf, PrecisionQuarter}

// Warmup runs the router façade's startup warmup pass and post-route
// speculative prefetch (§4.7).
type Warmup struct {
	catalog    *Catalog
	compressor *Compressor
	logger     *slog.Logger
}

// NewWarmup builds a Warmup bound to catalog and compressor.
func NewWarmup(catalog *Catalog, compressor *Compressor, logger *slog.Logger) *Warmup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Warmup{catalog: catalog, compressor: compressor, logger: logger}
}

// Warm renders every expert's tool list once at every precision and
// discards the result. The goal is populating any internal caches the
// runtime keeps for us (e.g. interned strings, escape-analysis-friendly
// buffers) before the first real request arrives, not the rendered text
// itself (§4.7 "Discard the results").
//
// Warm is cancellable: ctx is checked between experts, and the errgroup's
// derived context is cancelled the moment any worker's ctx is done, so a
// caller that cancels at process shutdown stops the pass promptly (§5
// "must be cancellable at process shutdown").
func (w *Warmup) Warm(ctx context.Context, provider SchemaProvider, estimator TokenEstimator) error {
	experts := w.catalog.AllExperts()
	shared := w.catalog.SharedTools()

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, warmupConcurrency)

	for _, e := range experts {
		e := e
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			names := append(append([]string(nil), shared...), e.DomainTools...)
			for _, p := range allPrecisions {
				precisionOf := make(map[string]ToolPrecision, len(names))
				for _, n := range names {
					precisionOf[n] = p
				}
				w.compressor.EstimateTotal(names, precisionOf, provider, estimator)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		w.logger.Warn("moe: warmup pass did not complete", slog.String("error", err.Error()))
		return err
	}
	w.logger.Info("moe: warmup complete", slog.Int("expert_count", len(experts)))
	return nil
}

// Prefetch speculatively recomputes the Top-K result for the same
// fingerprint with one fewer max expert, to warm allocator behavior for
// the common demotion path (§4.7). It runs fire-and-forget: the result is
// discarded and never written to the Classification Cache, and any panic
// or error is swallowed as a PrefetchFailure (§7) since prefetch is purely
// an optimization. The caller's context governs cancellation; Prefetch
// holds no locks across its own internal work. wg, if non-nil, is Done()
// on completion so the façade can wait for in-flight prefetches at
// shutdown; the caller must Add(1) before calling Prefetch.
func (w *Warmup) Prefetch(ctx context.Context, wg *sync.WaitGroup, selector *Selector, scores map[ExpertID]float64, provider SchemaProvider, estimator TokenEstimator, cfg MoeConfig) {
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		defer func() {
			if r := recover(); r != nil {
				w.logger.Warn("moe: speculative prefetch panicked", slog.Any("recover", r))
			}
		}()

		select {
		case <-ctx.Done():
			return
		default:
		}

		reduced := cfg
		reduced.MaxExpertsPerRoute = cfg.MaxExpertsPerRoute - 1
		if reduced.MaxExpertsPerRoute < 1 {
			reduced.MaxExpertsPerRoute = 1
		}
		selector.Select(scores, provider, estimator, reduced)
	}()
}
