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
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSelector(t *testing.T) (*Selector, *Catalog, StaticSchemaProvider) {
	t.Helper()
	cat := testCatalog()
	provider := testProvider(cat)
	compressor := NewCompressor(nil)
	return NewSelector(cat, compressor, nil), cat, provider
}

func TestSelector_SharedToolsAlwaysFullAndFirst(t *testing.T) {
	sel, cat, provider := newTestSelector(t)
	cfg := DefaultConfig()

	scores := map[ExpertID]float64{ExpertFileOps: 0.9}
	out := sel.Select(scores, provider, DefaultTokenEstimator(), cfg)

	shared := cat.SharedTools()
	require.GreaterOrEqual(t, len(out.Tools), len(shared))
	for i, name := range shared {
		require.Equal(t, name, out.Tools[i].Name)
		require.Equal(t, PrecisionFull, out.Tools[i].Precision)
	}
}

func TestSelector_BelowThresholdExcluded(t *testing.T) {
	sel, _, provider := newTestSelector(t)
	cfg := DefaultConfig()

	scores := map[ExpertID]float64{
		ExpertFileOps: 0.9,
		ExpertMusic:   0.05, // below default 0.15 threshold
	}
	out := sel.Select(scores, provider, DefaultTokenEstimator(), cfg)

	for _, s := range out.Selected {
		require.NotEqual(t, ExpertMusic, s.ExpertID)
	}
}

func TestSelector_MaxExpertsPerRouteEnforced(t *testing.T) {
	sel, _, provider := newTestSelector(t)
	cfg := DefaultConfig()
	cfg.MaxExpertsPerRoute = 2

	scores := map[ExpertID]float64{
		ExpertFileOps:      0.9,
		ExpertGit:          0.8,
		ExpertCode:         0.7,
		ExpertDataAnalysis: 0.6,
	}
	out := sel.Select(scores, provider, DefaultTokenEstimator(), cfg)

	require.LessOrEqual(t, len(out.Selected), 2)
}

func TestSelector_TieBreaksByCanonicalOrder(t *testing.T) {
	sel, cat, provider := newTestSelector(t)
	cfg := DefaultConfig()
	cfg.MaxExpertsPerRoute = 20

	scores := map[ExpertID]float64{
		ExpertMusic:   0.5,
		ExpertHome:    0.5,
		ExpertGeneral: 0.5,
	}
	out := sel.Select(scores, provider, DefaultTokenEstimator(), cfg)
	require.True(t, len(out.Selected) >= 2)

	// equal scores must sort by canonical catalog order.
	for i := 1; i < len(out.Selected); i++ {
		require.LessOrEqual(t, cat.Rank(out.Selected[i-1].ExpertID), cat.Rank(out.Selected[i].ExpertID))
	}
}

func TestSelector_TightBudgetDemotesLowestRankedFirst(t *testing.T) {
	sel, _, provider := newTestSelector(t)
	cfg := DefaultConfig()
	cfg.MaxExpertsPerRoute = 2
	cfg.MaxToolTokens = 900 // shared (445) + Browser (340) + Git (277) at Full is 1062: forces at least one demotion

	scores := map[ExpertID]float64{
		ExpertBrowser: 0.9,
		ExpertGit:     0.3,
	}
	out := sel.Select(scores, provider, DefaultTokenEstimator(), cfg)

	require.True(t, out.Truncated)
	require.LessOrEqual(t, out.TotalToolTokens, cfg.MaxToolTokens)

	// Git ranked behind Browser, so it demotes first.
	var gitPrecision, browserPrecision ToolPrecision
	for _, s := range out.Selected {
		switch s.ExpertID {
		case ExpertGit:
			gitPrecision = s.Precision
		case ExpertBrowser:
			browserPrecision = s.Precision
		}
	}
	require.GreaterOrEqual(t, int(gitPrecision), int(browserPrecision))
}

func TestSelector_CompressSchemasDisabledNeverDemotes(t *testing.T) {
	sel, _, provider := newTestSelector(t)
	cfg := DefaultConfig()
	cfg.CompressSchemas = false
	cfg.MaxExpertsPerRoute = 1
	cfg.MaxToolTokens = 100000

	scores := map[ExpertID]float64{ExpertFileOps: 0.9}
	out := sel.Select(scores, provider, DefaultTokenEstimator(), cfg)

	for _, s := range out.Selected {
		require.Equal(t, PrecisionFull, s.Precision)
	}
}

func TestSelector_BudgetExceededFallsBackToSharedOnly(t *testing.T) {
	sel, cat, provider := newTestSelector(t)
	cfg := DefaultConfig()
	cfg.MaxToolTokens = 1 // impossible even for shared tools alone

	scores := map[ExpertID]float64{ExpertFileOps: 0.9}
	out := sel.Select(scores, provider, DefaultTokenEstimator(), cfg)

	require.True(t, out.BudgetExceeded)
	require.True(t, out.Truncated)
	require.Empty(t, out.Selected)

	shared := cat.SharedTools()
	require.Len(t, out.Tools, len(shared))
}

func TestSelector_NoEligibleExpertFallsBackToGeneral(t *testing.T) {
	sel, _, provider := newTestSelector(t)
	cfg := DefaultConfig()

	out := sel.Select(map[ExpertID]float64{}, provider, DefaultTokenEstimator(), cfg)
	require.Len(t, out.Selected, 1)
	require.Equal(t, ExpertGeneral, out.Selected[0].ExpertID)
}
