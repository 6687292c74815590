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
	"log/slog"
	"sort"
)

// =============================================================================
// Top-K Selector (C3)
// =============================================================================

// Selector applies the activation threshold, orders experts by score+bias,
// enforces max_experts_per_route, and fits the merged tool set to the token
// budget via mixed-precision demotion and, as a last resort, dropping the
// lowest-ranked expert (§4.3).
//
// # Thread Safety
//
// Safe for concurrent use: Select takes the catalog and compressor it was
// built with but holds no other state.
type Selector struct {
	catalog    *Catalog
	compressor *Compressor
	logger     *slog.Logger
}

// NewSelector builds a Selector bound to catalog and compressor.
func NewSelector(catalog *Catalog, compressor *Compressor, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{catalog: catalog, compressor: compressor, logger: logger}
}

// Selection is the Top-K Selector's output, already compressed to the
// target precisions by the time Select returns (the selector drives the
// demotion search, calling into the Compressor as its fit-to-budget oracle).
type Selection struct {
	Selected        []SelectedExpert
	Tools           []RenderedTool
	TotalToolTokens int
	Truncated       bool
	BudgetExceeded  bool
}

// Select runs the §4.3 algorithm against scores and returns the chosen
// experts, their precisions, and the compressed tool set that fits
// cfg.MaxToolTokens whenever that is at all possible.
func (s *Selector) Select(scores map[ExpertID]float64, provider SchemaProvider, estimator TokenEstimator, cfg MoeConfig) Selection {
	shared := s.catalog.SharedTools()

	ranked := s.rankEligible(scores, cfg.ActivationThreshold)
	if len(ranked) > cfg.MaxExpertsPerRoute {
		ranked = ranked[:cfg.MaxExpertsPerRoute]
	}
	if len(ranked) == 0 {
		// No expert clears the bar (e.g. empty task text routed with no
		// classification): fall back to General alone so routing never
		// returns zero experts for a non-empty catalog (§4.3 invariant).
		ranked = []rankedExpert{{id: s.catalog.ExpertFor(General), score: scores[s.catalog.ExpertFor(General)]}}
	}

	precisions := make(map[ExpertID]ToolPrecision, len(ranked))
	for _, r := range ranked {
		precisions[r.id] = PrecisionFull
	}

	truncated := false
	for {
		order, precisionOf := s.renderOrder(shared, ranked, precisions)
		total := s.compressor.EstimateTotal(order, precisionOf, provider, estimator)
		if total <= cfg.MaxToolTokens {
			tools, finalTotal := s.compressor.Compress(order, precisionOf, provider, estimator)
			return Selection{
				Selected:        s.toSelectedExperts(ranked, precisions),
				Tools:           tools,
				TotalToolTokens: finalTotal,
				Truncated:       truncated,
			}
		}

		if cfg.CompressSchemas {
			if s.demoteWorst(ranked, precisions) {
				truncated = true
				continue
			}
		}

		// All selected experts are at Quarter (or compression is disabled):
		// drop the lowest-ranked expert and retry (§4.3 step 6).
		if len(ranked) > 1 {
			ranked = ranked[:len(ranked)-1]
			truncated = true
			continue
		}

		// Down to a single expert and still over budget: emit shared tools
		// alone, whether or not they fit (§4.3 step 7 / §7 BudgetExceeded).
		sharedOrder, sharedPrecision := s.renderOrder(shared, nil, nil)
		tools, total := s.compressor.Compress(sharedOrder, sharedPrecision, provider, estimator)
		s.logger.Warn("moe: budget exceeded with a single expert at lowest precision; emitting shared tools only",
			slog.Int("shared_tokens", total),
			slog.Int("budget", cfg.MaxToolTokens),
		)
		return Selection{
			Selected:        nil,
			Tools:           tools,
			TotalToolTokens: total,
			Truncated:       true,
			BudgetExceeded:  true,
		}
	}
}

// rankedExpert is an eligible expert paired with its combined score, before
// precision assignment.
type rankedExpert struct {
	id    ExpertID
	score float64
}

// rankEligible filters experts below threshold and sorts the remainder
// descending by score, breaking ties by canonical catalog order (§4.3
// steps 1-2).
func (s *Selector) rankEligible(scores map[ExpertID]float64, threshold float64) []rankedExpert {
	experts := s.catalog.AllExperts()
	out := make([]rankedExpert, 0, len(experts))
	for _, e := range experts {
		score := scores[e.ID]
		if score < threshold {
			continue
		}
		out = append(out, rankedExpert{id: e.ID, score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return s.catalog.Rank(out[i].id) < s.catalog.Rank(out[j].id)
	})
	return out
}

// demoteWorst demotes the lowest-ranked expert that is not yet at Quarter
// precision by exactly one level, "lowest-ranked expert first, then the
// next, cycling Full -> Half -> Quarter" (§4.3 step 5). It returns false
// when every selected expert is already at Quarter, signaling the caller
// to fall through to dropping.
func (s *Selector) demoteWorst(ranked []rankedExpert, precisions map[ExpertID]ToolPrecision) bool {
	for i := len(ranked) - 1; i >= 0; i-- {
		id := ranked[i].id
		if next, ok := precisions[id].demote(); ok {
			precisions[id] = next
			return true
		}
	}
	return false
}

// renderOrder builds the Compressor's input: shared tools first at Full
// (never demoted, never dropped), then each selected expert's domain tools
// in canonical order, experts ordered by selection rank (§4.4 "Ordering").
func (s *Selector) renderOrder(shared []string, ranked []rankedExpert, precisions map[ExpertID]ToolPrecision) ([]string, map[string]ToolPrecision) {
	order := make([]string, 0, len(shared)+len(ranked)*8)
	precisionOf := make(map[string]ToolPrecision, len(shared)+len(ranked)*8)

	for _, t := range shared {
		order = append(order, t)
		precisionOf[t] = PrecisionFull
	}
	for _, r := range ranked {
		p := precisions[r.id]
		for _, t := range s.catalog.DomainTools(r.id) {
			if _, dup := precisionOf[t]; dup {
				continue // already emitted as a shared tool or by a higher-ranked expert
			}
			order = append(order, t)
			precisionOf[t] = p
		}
	}
	return order, precisionOf
}

// toSelectedExperts converts the internal ranked+precision state into the
// public SelectedExpert slice, preserving selection order.
func (s *Selector) toSelectedExperts(ranked []rankedExpert, precisions map[ExpertID]ToolPrecision) []SelectedExpert {
	out := make([]SelectedExpert, len(ranked))
	for i, r := range ranked {
		out[i] = SelectedExpert{ExpertID: r.id, Score: r.score, Precision: precisions[r.id]}
	}
	return out
}
