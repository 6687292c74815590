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

import "math"

// SchemaProvider resolves a tool name to its full structured schema (§6
// "Tool schema provider"). The router treats the returned schema as an
// opaque structured value for precision rendering; it never interprets
// parameter semantics.
//
// Thread Safety: implementations must be safe for concurrent use. The
// façade itself calls Describe from several goroutines: the warmup pass
// renders experts in parallel, and each speculative prefetch runs in its
// own goroutine alongside later Route calls.
type SchemaProvider interface {
	// Describe returns the schema for name and true, or a zero ToolSchema
	// and false if no schema is registered for that name (§7 UnknownTool:
	// the caller skips the tool and logs a warning; it is never an error).
	Describe(name string) (ToolSchema, bool)
}

// StaticSchemaProvider is a SchemaProvider backed by a fixed in-memory map,
// the form the router receives from an embedding agent that has already
// resolved its tool registry (mirrors the teacher's DefaultToolSpecs()
// pattern of a plain static table rather than a live registry call).
type StaticSchemaProvider map[string]ToolSchema

// Describe implements SchemaProvider.
func (p StaticSchemaProvider) Describe(name string) (ToolSchema, bool) {
	s, ok := p[name]
	return s, ok
}

// TokenEstimator renders text to an estimated token count (§6 "Token
// estimator"). The router relies on the default 4-chars-per-token
// estimator but accepts an injected one.
type TokenEstimator interface {
	Estimate(text string) int
}

// charsPerTokenEstimator is the default deterministic estimator pinned by
// the specification (§9 Open Question 2): ceil(len(text) / CharsPerToken).
type charsPerTokenEstimator struct{}

// DefaultTokenEstimator returns the pinned 4-chars-per-token estimator.
func DefaultTokenEstimator() TokenEstimator { return charsPerTokenEstimator{} }

// Estimate implements TokenEstimator.
func (charsPerTokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / float64(CharsPerToken)))
}
