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
	"strings"
	"sync"
)

// =============================================================================
// MoE Context Buffer (C6)
// =============================================================================

// contextAddendumHeader leads every non-empty addendum, carried over from
// the original source's context.rs::context_summary in spirit (renamed,
// not copied text) since §4.6/§8 property 7 only pin substring containment
// and ordering, not exact wording.
const contextAddendumHeader = "[Context from prior expert analysis]"

// Context accumulates per-expert result summaries and derived facts for one
// multi-expert routing, and produces a short addendum for the next expert's
// prompt (§3 "MoE Context", §4.6). A Context instance is per-request, not
// shared across requests, so it needs its own lock only to stay safe for
// callers that record and read it from different goroutines (e.g. one
// recording an in-flight expert's result while another reads the
// addendum for a concurrently-dispatched expert); the spec does not
// require this but it costs nothing and removes a footgun.
//
// # Thread Safety
//
// Safe for concurrent use.
type Context struct {
	mu           sync.Mutex
	perExpert    map[ExpertID][]Fact
	priorResults []ExpertResult
}

// NewContext creates an empty MoE Context Buffer.
func NewContext() *Context {
	return &Context{perExpert: make(map[ExpertID][]Fact)}
}

// Record appends result to the prior-results log and merges its facts into
// the per-expert fact map. The same expert may appear twice in one routing
// (re-invocation); both recordings are kept, in insertion order (§4.6
// "Ordering and identity").
func (c *Context) Record(result ExpertResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.priorResults = append(c.priorResults, result)
	if len(result.Facts) > 0 {
		c.perExpert[result.ExpertID] = append(c.perExpert[result.ExpertID], result.Facts...)
	}
}

// HasPrior reports whether any expert result has been recorded yet.
func (c *Context) HasPrior() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.priorResults) > 0
}

// Addendum renders a short formatted summary suitable for injection at the
// start of the next expert's prompt: one leading header line, then one
// bullet per prior result as "expert_id: summary" (§4.6). Returns ("",
// false) when there is nothing to report yet.
func (c *Context) Addendum() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.priorResults) == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString(contextAddendumHeader)
	b.WriteByte('\n')
	for _, r := range c.priorResults {
		fmt.Fprintf(&b, "- %s: %s\n", r.ExpertID, r.Summary)
	}
	return b.String(), true
}

// Facts returns a copy of the facts accumulated so far for one expert, or
// nil if none have been recorded.
func (c *Context) Facts(expert ExpertID) []Fact {
	c.mu.Lock()
	defer c.mu.Unlock()
	facts := c.perExpert[expert]
	if len(facts) == 0 {
		return nil
	}
	out := make([]Fact, len(facts))
	copy(out, facts)
	return out
}

// Clear drops all accumulated state, e.g. at the end of a multi-expert
// request or after the idle cutoff described in §3's lifecycle note.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.perExpert = make(map[ExpertID][]Fact)
	c.priorResults = nil
}
