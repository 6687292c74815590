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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassificationCache_MissThenHit(t *testing.T) {
	c := NewClassificationCache(4)

	_, ok := c.Get("fp-1")
	require.False(t, ok)

	result := SparseRouteResult{TotalToolTokens: 42}
	c.Put("fp-1", result, []ExpertID{ExpertGeneral})

	got, ok := c.Get("fp-1")
	require.True(t, ok)
	require.Equal(t, result.TotalToolTokens, got.TotalToolTokens)
}

func TestClassificationCache_LRUCapacity(t *testing.T) {
	const capacity = 3
	c := NewClassificationCache(capacity)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("fp-%d", i)
		c.Put(key, SparseRouteResult{TotalToolTokens: i}, []ExpertID{ExpertGeneral})
	}

	require.Equal(t, capacity, c.Len())

	// The 3 most recently inserted (fp-2, fp-3, fp-4) must still be present;
	// the 2 oldest (fp-0, fp-1) must have been evicted.
	for i := 0; i < 2; i++ {
		_, ok := c.Get(fmt.Sprintf("fp-%d", i))
		require.False(t, ok, "expected fp-%d to be evicted", i)
	}
	for i := 2; i < 5; i++ {
		_, ok := c.Get(fmt.Sprintf("fp-%d", i))
		require.True(t, ok, "expected fp-%d to still be cached", i)
	}
}

func TestClassificationCache_GetPromotesToMRU(t *testing.T) {
	c := NewClassificationCache(2)

	c.Put("fp-a", SparseRouteResult{}, nil)
	c.Put("fp-b", SparseRouteResult{}, nil)

	// Touch fp-a so it becomes MRU; fp-b is now LRU.
	_, ok := c.Get("fp-a")
	require.True(t, ok)

	c.Put("fp-c", SparseRouteResult{}, nil)

	_, ok = c.Get("fp-b")
	require.False(t, ok, "fp-b should have been evicted as LRU")
	_, ok = c.Get("fp-a")
	require.True(t, ok, "fp-a should have survived as recently used")
	_, ok = c.Get("fp-c")
	require.True(t, ok)
}

func TestClassificationCache_PutIdempotent(t *testing.T) {
	c := NewClassificationCache(4)
	result := SparseRouteResult{TotalToolTokens: 7}

	c.Put("fp-1", result, []ExpertID{ExpertGeneral})
	c.Put("fp-1", result, []ExpertID{ExpertGeneral})

	require.Equal(t, 1, c.Len())
	got, ok := c.Get("fp-1")
	require.True(t, ok)
	require.Equal(t, result, got)
}

func TestClassificationCache_InvalidateExpert(t *testing.T) {
	c := NewClassificationCache(4)
	c.Put("fp-git", SparseRouteResult{}, []ExpertID{ExpertGit})
	c.Put("fp-browser", SparseRouteResult{}, []ExpertID{ExpertBrowser})

	c.InvalidateExpert(ExpertGit)

	_, ok := c.Get("fp-git")
	require.False(t, ok)
	_, ok = c.Get("fp-browser")
	require.True(t, ok)
}

func TestClassificationCache_DrainEvictedExperts(t *testing.T) {
	c := NewClassificationCache(1)
	c.Put("fp-1", SparseRouteResult{}, []ExpertID{ExpertGit})
	c.Put("fp-2", SparseRouteResult{}, []ExpertID{ExpertBrowser}) // evicts fp-1

	evicted := c.DrainEvictedExperts()
	require.Equal(t, 1, evicted[ExpertGit])

	// Draining resets the counter.
	evicted = c.DrainEvictedExperts()
	require.Empty(t, evicted)
}

func TestClassificationCache_HitRate(t *testing.T) {
	c := NewClassificationCache(4)
	c.Put("fp-1", SparseRouteResult{}, nil)

	c.Get("fp-1") // hit
	c.Get("fp-1") // hit
	c.Get("fp-2") // miss

	require.InDelta(t, 2.0/3.0, c.HitRate(), 1e-9)
}

func TestClassificationCache_ConcurrentAccess(t *testing.T) {
	c := NewClassificationCache(16)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("fp-%d", i%8)
			c.Put(key, SparseRouteResult{TotalToolTokens: i}, []ExpertID{ExpertGeneral})
			c.Get(key)
		}(i)
	}
	wg.Wait()
	require.LessOrEqual(t, c.Len(), 16)
}
