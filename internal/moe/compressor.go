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
	"strings"
)

// =============================================================================
// Schema Compressor (C4)
// =============================================================================

// Compressor renders tool schemas at one of three precisions and estimates
// the rendered token cost (§4.4). It holds no per-request state: a
// SchemaProvider and TokenEstimator are supplied per call, so a single
// Compressor is safely shared across concurrent routings.
//
// # Thread Safety
//
// Safe for concurrent use; Render and Compress perform no writes.
type Compressor struct {
	logger *slog.Logger
}

// NewCompressor builds a Compressor. A nil logger falls back to
// slog.Default(), matching the teacher's NewPreFilter convention.
func NewCompressor(logger *slog.Logger) *Compressor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compressor{logger: logger}
}

// Render renders a single tool schema at the given precision (§4.4
// "Precision rules (per tool)").
func (c *Compressor) Render(schema ToolSchema, precision ToolPrecision) string {
	var b strings.Builder
	switch precision {
	case PrecisionFull:
		b.WriteString(schema.Name)
		if schema.Description != "" {
			b.WriteString(": ")
			b.WriteString(schema.Description)
		}
		for _, p := range schema.Parameters {
			b.WriteString("\n  - ")
			b.WriteString(p.Name)
			b.WriteString(" (")
			b.WriteString(p.Type)
			b.WriteString(")")
			if p.Description != "" {
				b.WriteString(": ")
				b.WriteString(p.Description)
			}
			if len(p.Enum) > 0 {
				b.WriteString(" enum=[")
				b.WriteString(strings.Join(p.Enum, ","))
				b.WriteString("]")
			}
			if len(p.Examples) > 0 {
				b.WriteString(" examples=[")
				b.WriteString(strings.Join(p.Examples, ","))
				b.WriteString("]")
			}
		}
	case PrecisionHalf:
		b.WriteString(schema.Name)
		b.WriteString(": ")
		b.WriteString(firstSentence(schema.Description))
		if len(schema.Parameters) > 0 {
			b.WriteString("\n  params: ")
			for i, p := range schema.Parameters {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(p.Name)
				b.WriteString(":")
				b.WriteString(p.Type)
			}
		}
	default: // PrecisionQuarter
		b.WriteString(schema.Name)
		b.WriteString(": ")
		if schema.Summary != "" {
			b.WriteString(schema.Summary)
		} else {
			b.WriteString(firstSentence(schema.Description))
		}
	}
	return b.String()
}

// firstSentence returns the text up to (and including) the first ". " or
// the whole string if it contains no sentence break. Half precision emits
// "one-sentence description" (§4.4); Quarter falls back to it when a tool
// has no explicit Summary.
func firstSentence(desc string) string {
	if i := strings.Index(desc, ". "); i >= 0 {
		return desc[:i+1]
	}
	return desc
}

// Compress renders every named tool at its assigned precision, in the
// exact order callers pass (ordering is the Selector's responsibility per
// §4.4 "Ordering": shared first, then each expert's domain tools, experts
// ordered by selection rank). Unknown tools (§7 UnknownTool) are skipped
// with a warning rather than failing the routing.
func (c *Compressor) Compress(order []string, precisionOf map[string]ToolPrecision, provider SchemaProvider, estimator TokenEstimator) ([]RenderedTool, int) {
	if estimator == nil {
		estimator = DefaultTokenEstimator()
	}
	rendered := make([]RenderedTool, 0, len(order))
	total := 0
	for _, name := range order {
		schema, ok := provider.Describe(name)
		if !ok {
			c.logger.Warn("moe: unknown tool skipped", slog.String("tool", name))
			continue
		}
		precision := precisionOf[name]
		text := c.Render(schema, precision)
		tokens := estimator.Estimate(text)
		rendered = append(rendered, RenderedTool{
			Name:      name,
			Precision: precision,
			Text:      text,
			Tokens:    tokens,
		})
		total += tokens
	}
	return rendered, total
}

// EstimateTotal is a cheaper variant of Compress used by the Selector's
// fit-to-budget search: it renders and sums tokens without allocating the
// final []RenderedTool slice.
func (c *Compressor) EstimateTotal(order []string, precisionOf map[string]ToolPrecision, provider SchemaProvider, estimator TokenEstimator) int {
	if estimator == nil {
		estimator = DefaultTokenEstimator()
	}
	total := 0
	for _, name := range order {
		schema, ok := provider.Describe(name)
		if !ok {
			continue
		}
		text := c.Render(schema, precisionOf[name])
		total += estimator.Estimate(text)
	}
	return total
}
