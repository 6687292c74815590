// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package moe implements the sparse Mixture-of-Experts tool router: it maps
// a natural-language task to a small set of specialized expert tool bundles
// and renders the exact tool-schema payload sent to the downstream model.
//
// # DeepSeek V3 Parallels
//
// | DeepSeek V3 concept        | This package                          |
// |-----------------------------|----------------------------------------|
// | Sigmoid gating per expert   | keyword affinity, independent per expert |
// | Top-K (8 of 256) activation | Top-K (1-3 of 20) activation            |
// | Shared expert (always-on)   | 8 shared tools always sent              |
// | Auxiliary-loss-free bias    | per-expert bias updated by outcomes     |
// | FP8 mixed precision         | Full/Half/Quarter tool schema precision |
//
// The router scores every expert independently (no softmax competition),
// selects the top K above a threshold, merges their tool sets with
// mixed-precision schemas, and caps the result at a token budget — cutting
// per-request tool-description cost from ~25-35K tokens to ~3-7K while
// preserving full coverage across the catalog.
package moe

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	routerCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moe",
		Subsystem: "router",
		Name:      "cache_total",
		Help:      "Classification cache outcomes by result: hit, miss.",
	}, []string{"result"})

	routerTruncatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moe",
		Subsystem: "router",
		Name:      "truncated_total",
		Help:      "Route outcomes by truncation state: truncated, full, budget_exceeded.",
	}, []string{"outcome"})

	routerSelectedExperts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "moe",
		Subsystem: "router",
		Name:      "selected_experts",
		Help:      "Number of experts selected per routing.",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})

	routerToolTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "moe",
		Subsystem: "router",
		Name:      "tool_tokens",
		Help:      "Total rendered tool tokens per routing.",
		Buckets:   []float64{500, 1000, 2000, 3000, 4000, 6000, 8000},
	})

	routerPrefetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moe",
		Subsystem: "router",
		Name:      "prefetch_total",
		Help:      "Speculative prefetch outcomes: scheduled, skipped.",
	}, []string{"outcome"})
)

var routerTracer = otel.Tracer("aleutian.agent.moe.router")

// =============================================================================
// Router Façade + Warmup
// =============================================================================

// Router is the single external entry point described in §4.7 and §6. It
// composes the Affinity Scorer (C2), Top-K Selector (C3, which drives the
// Schema Compressor C4 internally), and the Classification Cache (C5), and
// owns the process-wide Bias State and the per-request MoE Context Buffer.
//
// # Thread Safety
//
// Safe for concurrent use. Route is synchronous and suspension-free in its
// hot path (§5); the only asynchronous boundary is speculative prefetch,
// scheduled as a fire-and-forget goroutine that holds no locks across an
// await-equivalent.
type Router struct {
	cfg        MoeConfig
	catalog    *Catalog
	scorer     *Scorer
	selector   *Selector
	compressor *Compressor
	cache      *ClassificationCache
	bias       *BiasState
	warmup     *Warmup
	provider   SchemaProvider
	estimator  TokenEstimator
	logger     *slog.Logger

	moeContext *Context // shared per multi-expert routing, per §3 lifecycle

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	prefetchWG     sync.WaitGroup

	routeCalls int
	routeMu    sync.Mutex
}

// NewRouter constructs a Router from its static dependencies and runs the
// startup warmup pass if cfg.WarmOnStartup is set. provider may not be nil;
// a nil estimator falls back to DefaultTokenEstimator(), the pinned 4-char
// estimator. A nil logger falls back to slog.Default().
func NewRouter(cfg MoeConfig, catalog *Catalog, provider SchemaProvider, estimator TokenEstimator, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if estimator == nil {
		estimator = DefaultTokenEstimator()
	}

	compressor := NewCompressor(logger)
	experts := catalog.AllExperts()
	ids := make([]ExpertID, len(experts))
	for i, e := range experts {
		ids[i] = e.ID
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())

	r := &Router{
		cfg:            cfg,
		catalog:        catalog,
		scorer:         NewScorer(catalog),
		selector:       NewSelector(catalog, compressor, logger),
		compressor:     compressor,
		cache:          NewClassificationCache(cfg.ClassificationCacheSize),
		bias:           NewBiasState(ids, cfg.PruneAfterIterations),
		warmup:         NewWarmup(catalog, compressor, logger),
		provider:       provider,
		estimator:      estimator,
		logger:         logger,
		moeContext:     NewContext(),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: cancel,
	}

	if cfg.WarmOnStartup {
		if err := r.warmup.Warm(shutdownCtx, provider, estimator); err != nil {
			logger.Warn("moe: startup warmup did not finish", slog.String("error", err.Error()))
		}
	}

	return r
}

// Route is the router's single external operation (§4.7, §6). When
// cfg.Enabled is false it returns shared tools only at Full precision
// (§6 config table). Empty or whitespace-only task text with no
// classification is policy, not an error (§7 EmptyInput): General is
// selected and only shared tools are returned.
func (r *Router) Route(ctx context.Context, taskText string, classification TaskClassification) SparseRouteResult {
	requestID := uuid.NewString()
	ctx, span := routerTracer.Start(ctx, "moe.Router.Route",
		trace.WithAttributes(
			attribute.String("request_id", requestID),
			attribute.String("classification", classification.String()),
			attribute.Int("task_text_len", len(taskText)),
		),
	)
	defer span.End()

	if !r.cfg.Enabled {
		span.SetAttributes(attribute.Bool("enabled", false))
		return r.sharedOnly(false)
	}

	fp := routingFingerprint(taskText, classification, r.cfg.MaxToolTokens, r.cfg.MaxExpertsPerRoute)

	if cached, ok := r.cache.Get(fp); ok {
		routerCacheTotal.WithLabelValues("hit").Inc()
		span.SetAttributes(attribute.Bool("cache_hit", true))
		cached.CacheHit = true
		r.tick()
		return cached
	}
	routerCacheTotal.WithLabelValues("miss").Inc()

	if strings.TrimSpace(taskText) == "" && classification.IsZero() {
		result := r.sharedOnly(false)
		r.cache.Put(fp, result, []ExpertID{ExpertGeneral})
		span.SetAttributes(attribute.Bool("empty_input", true))
		r.tick()
		return result
	}

	scores := r.scorer.Score(taskText, classification, r.bias.Snapshot())
	sel := r.selector.Select(scores, r.provider, r.estimator, r.cfg)

	result := SparseRouteResult{
		Selected:        sel.Selected,
		Tools:           sel.Tools,
		TotalToolTokens: sel.TotalToolTokens,
		Truncated:       sel.Truncated,
		CacheHit:        false,
	}

	experts := make([]ExpertID, len(sel.Selected))
	for i, s := range sel.Selected {
		experts[i] = s.ExpertID
	}
	if len(experts) == 0 {
		experts = []ExpertID{ExpertGeneral}
	}
	r.cache.Put(fp, result, experts)

	routerSelectedExperts.Observe(float64(len(result.Selected)))
	routerToolTokens.Observe(float64(result.TotalToolTokens))
	switch {
	case sel.BudgetExceeded:
		routerTruncatedTotal.WithLabelValues("budget_exceeded").Inc()
		span.SetStatus(codes.Error, "budget exceeded; shared tools only")
	case result.Truncated:
		routerTruncatedTotal.WithLabelValues("truncated").Inc()
	default:
		routerTruncatedTotal.WithLabelValues("full").Inc()
	}
	span.SetAttributes(
		attribute.Int("selected_experts", len(result.Selected)),
		attribute.Int("total_tool_tokens", result.TotalToolTokens),
		attribute.Bool("truncated", result.Truncated),
	)

	if r.cfg.SpeculativePrefetch {
		r.schedulePrefetch(scores)
	}

	r.tick()
	return result
}

// sharedOnly builds the degraded result emitted when the router is
// disabled or the input is empty (§7 EmptyInput, §6 Enabled=false).
func (r *Router) sharedOnly(cacheHit bool) SparseRouteResult {
	shared := r.catalog.SharedTools()
	precisionOf := make(map[string]ToolPrecision, len(shared))
	for _, t := range shared {
		precisionOf[t] = PrecisionFull
	}
	tools, total := r.compressor.Compress(shared, precisionOf, r.provider, r.estimator)
	return SparseRouteResult{
		Selected:        []SelectedExpert{{ExpertID: ExpertGeneral, Score: 0, Precision: PrecisionFull}},
		Tools:           tools,
		TotalToolTokens: total,
		Truncated:       false,
		CacheHit:        cacheHit,
	}
}

// schedulePrefetch fires the §4.7 speculative-prefetch task for the
// demotion path one expert narrower than the real routing. It is tracked
// by prefetchWG so Close can wait for in-flight prefetches at shutdown.
func (r *Router) schedulePrefetch(scores map[ExpertID]float64) {
	if r.cfg.MaxExpertsPerRoute <= 1 {
		routerPrefetchTotal.WithLabelValues("skipped").Inc()
		return
	}
	routerPrefetchTotal.WithLabelValues("scheduled").Inc()
	r.prefetchWG.Add(1)
	r.warmup.Prefetch(r.shutdownCtx, &r.prefetchWG, r.selector, scores, r.provider, r.estimator, r.cfg)
}

// tick marks the completion of one Route call: advances the bias state's
// pruning window and, every prune_after_iterations calls, folds in any
// cache-eviction de-prioritization signal (§4.7 Pruning, §2 eviction note).
func (r *Router) tick() {
	r.routeMu.Lock()
	r.routeCalls++
	prune := r.routeCalls%max(r.cfg.PruneAfterIterations, 1) == 0
	r.routeMu.Unlock()

	r.bias.Tick()
	if prune {
		for id, count := range r.cache.DrainEvictedExperts() {
			for i := 0; i < count; i++ {
				r.bias.Deprioritize(id)
			}
		}
	}
}

// ReportOutcome records a terminal success/failure outcome for expert,
// updating its adaptive bias (§3, §6). Safe to call from a goroutine other
// than the one that called Route.
func (r *Router) ReportOutcome(expert ExpertID, success bool) {
	r.bias.ReportOutcome(expert, success)
	if !success {
		r.cache.InvalidateExpert(expert)
	}
}

// RecordExpertResult appends result to the shared MoE Context Buffer for
// the current multi-expert routing (§6).
func (r *Router) RecordExpertResult(result ExpertResult) {
	r.moeContext.Record(result)
}

// ContextAddendum returns the current cross-expert context addendum, or
// ("", false) if nothing has been recorded yet (§6).
func (r *Router) ContextAddendum() (string, bool) {
	return r.moeContext.Addendum()
}

// ClearContext drops all accumulated MoE Context Buffer state, e.g. at the
// end of a multi-expert request (§6).
func (r *Router) ClearContext() {
	r.moeContext.Clear()
}

// CacheHitRate exposes the classification cache's observed hit rate for
// operational tuning (§4.5).
func (r *Router) CacheHitRate() float64 {
	return r.cache.HitRate()
}

// Close cancels any in-flight speculative prefetch work and waits for it
// to finish, fulfilling the §5 requirement that warmup and prefetch tasks
// "must be cancellable at process shutdown."
func (r *Router) Close() {
	r.shutdownCancel()
	r.prefetchWG.Wait()
}
