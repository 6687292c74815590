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
	"regexp"
	"strings"
)

// =============================================================================
// Catalog (C1)
// =============================================================================

// Catalog is the static, immutable definition of the 20 experts: their
// domain tool sets, the shared always-on tool set, the derived per-expert
// keyword profiles, and the classification -> primary expert mapping.
//
// Construction (LoadCatalog) is total for well-formed data; once built, a
// Catalog has no failure mode — every method here is a pure lookup.
//
// Thread Safety: immutable after construction. Safe for concurrent use
// without any synchronization.
type Catalog struct {
	experts         []ExpertDefinition
	order           map[ExpertID]int
	shared          map[string]struct{}
	sharedOrdered   []string
	vocabulary      map[ExpertID][]string
	classPrimary    map[ClassificationKind]ExpertID
	workflowPrimary map[string]ExpertID

	// keywords holds the derived keyword profile K_e for each expert:
	// tokenized domain tool names unioned with the hand-curated vocabulary.
	keywords map[ExpertID]map[string]struct{}
}

var tokenSplitter = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// tokenize lowercases s and splits it on runs of non-alphanumeric characters,
// returning the resulting bag-of-words as a set. Shared by the catalog's
// keyword-profile derivation and the Affinity Scorer's task tokenization
// (§4.2 step 1), so both sides of the overlap use identical rules.
func tokenize(s string) map[string]struct{} {
	words := tokenSplitter.Split(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// buildKeywordProfiles derives K_e for every expert: the tokenized union of
// its domain tool names plus its hand-curated vocabulary list. Runs once at
// load time so Score() never re-derives it per request (§4.2 contract: no
// allocations per request beyond the task's own token set).
func (c *Catalog) buildKeywordProfiles() {
	c.keywords = make(map[ExpertID]map[string]struct{}, len(c.experts))
	for _, e := range c.experts {
		set := make(map[string]struct{})
		for _, tool := range e.DomainTools {
			for tok := range tokenize(tool) {
				set[tok] = struct{}{}
			}
		}
		for _, word := range c.vocabulary[e.ID] {
			for tok := range tokenize(word) {
				set[tok] = struct{}{}
			}
		}
		c.keywords[e.ID] = set
	}
}

// AllExperts returns every expert definition in stable canonical order.
func (c *Catalog) AllExperts() []ExpertDefinition {
	out := make([]ExpertDefinition, len(c.experts))
	copy(out, c.experts)
	return out
}

// SharedTools returns the fixed 8-name shared tool set, in canonical order.
func (c *Catalog) SharedTools() []string {
	out := make([]string, len(c.sharedOrdered))
	copy(out, c.sharedOrdered)
	return out
}

// IsSharedTool reports whether name is one of the 8 shared tools.
func (c *Catalog) IsSharedTool(name string) bool {
	_, ok := c.shared[name]
	return ok
}

// ExpertFor returns the canonical primary expert for a classification. Every
// classification maps to exactly one primary expert; Workflow(name)
// classifications look up by name and fall back to ExpertGeneral for an
// unrecognized workflow name.
func (c *Catalog) ExpertFor(classification TaskClassification) ExpertID {
	if classification.Kind == ClassWorkflow {
		if id, ok := c.workflowPrimary[classification.Name]; ok {
			return id
		}
		return ExpertGeneral
	}
	if id, ok := c.classPrimary[classification.Kind]; ok {
		return id
	}
	return ExpertGeneral
}

// ToolsOf returns the deduplicated union of an expert's domain tools and the
// shared tool set, in canonical order: shared tools first (catalog order),
// then domain tools (expert's own order).
func (c *Catalog) ToolsOf(id ExpertID) []string {
	idx, ok := c.order[id]
	if !ok {
		return append([]string(nil), c.sharedOrdered...)
	}
	out := make([]string, 0, len(c.sharedOrdered)+len(c.experts[idx].DomainTools))
	out = append(out, c.sharedOrdered...)
	out = append(out, c.experts[idx].DomainTools...)
	return out
}

// DomainTools returns just the expert's own domain tool set, in its
// canonical order.
func (c *Catalog) DomainTools(id ExpertID) []string {
	idx, ok := c.order[id]
	if !ok {
		return nil
	}
	out := make([]string, len(c.experts[idx].DomainTools))
	copy(out, c.experts[idx].DomainTools)
	return out
}

// Rank returns the expert's position in canonical order, used for stable
// tie-breaking during selection. Unknown experts sort last.
func (c *Catalog) Rank(id ExpertID) int {
	if idx, ok := c.order[id]; ok {
		return idx
	}
	return len(c.experts)
}

// keywordProfile returns the derived K_e for an expert (read-only; callers
// must not mutate the returned map).
func (c *Catalog) keywordProfile(id ExpertID) map[string]struct{} {
	return c.keywords[id]
}
