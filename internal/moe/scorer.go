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

// classificationBoost is added to an expert's keyword score when that
// expert is the classification's primary expert (§4.2 step 3).
const classificationBoost = 0.25

// Scorer computes independent per-expert affinity scores (C2). It holds no
// mutable state of its own: the catalog is immutable and the bias vector is
// supplied as a snapshot per call, so Scorer is trivially safe to share.
//
// # Thread Safety
//
// Scorer is safe for concurrent use; Score performs no writes.
type Scorer struct {
	catalog *Catalog
}

// NewScorer builds a Scorer bound to catalog's keyword profiles.
func NewScorer(catalog *Catalog) *Scorer {
	return &Scorer{catalog: catalog}
}

// Score maps (taskText, classification) to an independent affinity score in
// [0,1] per expert, folding in bias's current snapshot (§4.2).
//
// # Algorithm
//
//  1. Tokenize taskText into a bag-of-words set T.
//  2. Per expert e: keyword_score(e) = |T ∩ K_e| / max(1, |K_e|).
//  3. If e is classification's primary expert, add classificationBoost.
//  4. Add bias[e].
//  5. Clip to [0,1].
//
// Deterministic given identical inputs and bias snapshot; runs in
// O(|T| + Σ|K_e|); allocates T, the result map, and a copy of the
// catalog's expert list.
func (s *Scorer) Score(taskText string, classification TaskClassification, bias map[ExpertID]float64) map[ExpertID]float64 {
	tokens := tokenize(taskText)
	primary := s.catalog.ExpertFor(classification)

	experts := s.catalog.AllExperts()
	scores := make(map[ExpertID]float64, len(experts))
	for _, e := range experts {
		scores[e.ID] = s.scoreOne(e.ID, tokens, primary, bias[e.ID])
	}
	return scores
}

// scoreOne computes a single expert's score from a pre-tokenized task.
func (s *Scorer) scoreOne(id ExpertID, tokens map[string]struct{}, primary ExpertID, expertBias float64) float64 {
	k := s.catalog.keywordProfile(id)
	score := keywordOverlap(tokens, k)

	if id == primary {
		score += classificationBoost
	}
	score += expertBias

	return clip01(score)
}

// keywordOverlap computes |T ∩ K| / max(1, |K|).
func keywordOverlap(t, k map[string]struct{}) float64 {
	denom := len(k)
	if denom == 0 {
		denom = 1
	}
	if len(t) == 0 || len(k) == 0 {
		return 0
	}
	small, large := t, k
	if len(large) < len(small) {
		small, large = large, small
	}
	overlap := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(denom)
}

// clip01 clamps x to [0.0, 1.0].
func clip01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
