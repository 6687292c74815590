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

func testSchema() ToolSchema {
	return ToolSchema{
		Name:        "list_files",
		Description: "Lists files in a directory. Supports glob patterns.",
		Summary:     "list files in a directory",
		Parameters: []ParamField{
			{Name: "path", Type: "string", Description: "directory to list", Examples: []string{"/tmp"}},
			{Name: "pattern", Type: "string", Description: "glob filter", Enum: []string{"*.go", "*.md"}},
		},
	}
}

func TestCompressor_FullIncludesParameterDetail(t *testing.T) {
	c := NewCompressor(nil)
	text := c.Render(testSchema(), PrecisionFull)

	require.Contains(t, text, "list_files")
	require.Contains(t, text, "directory to list")
	require.Contains(t, text, "glob filter")
	require.Contains(t, text, "*.go")
	require.Contains(t, text, "/tmp")
}

func TestCompressor_HalfDropsPerFieldDetail(t *testing.T) {
	c := NewCompressor(nil)
	text := c.Render(testSchema(), PrecisionHalf)

	require.Contains(t, text, "list_files")
	require.Contains(t, text, "path")
	require.Contains(t, text, "string")
	require.NotContains(t, text, "directory to list")
	require.NotContains(t, text, "*.go")
	require.NotContains(t, text, "/tmp")
}

func TestCompressor_QuarterIsNameAndSummaryOnly(t *testing.T) {
	c := NewCompressor(nil)
	text := c.Render(testSchema(), PrecisionQuarter)

	require.Contains(t, text, "list_files")
	require.Contains(t, text, "list files in a directory")
	require.NotContains(t, text, "path")
	require.NotContains(t, text, "Enum")
}

func TestCompressor_PrecisionOrdering(t *testing.T) {
	c := NewCompressor(nil)
	schema := testSchema()
	full := len(c.Render(schema, PrecisionFull))
	half := len(c.Render(schema, PrecisionHalf))
	quarter := len(c.Render(schema, PrecisionQuarter))

	require.Greater(t, full, half)
	require.Greater(t, half, quarter)
}

func TestCompressor_CompressSkipsUnknownTool(t *testing.T) {
	c := NewCompressor(nil)
	provider := StaticSchemaProvider{"list_files": testSchema()}
	order := []string{"list_files", "nonexistent_tool"}
	precisionOf := map[string]ToolPrecision{"list_files": PrecisionFull, "nonexistent_tool": PrecisionFull}

	rendered, total := c.Compress(order, precisionOf, provider, DefaultTokenEstimator())

	require.Len(t, rendered, 1)
	require.Equal(t, "list_files", rendered[0].Name)
	require.Greater(t, total, 0)
}

func TestCompressor_TokenEstimateIsDeterministicCeilDiv4(t *testing.T) {
	est := DefaultTokenEstimator()
	require.Equal(t, 0, est.Estimate(""))
	require.Equal(t, 1, est.Estimate("abc"))  // ceil(3/4) = 1
	require.Equal(t, 1, est.Estimate("abcd")) // ceil(4/4) = 1
	require.Equal(t, 2, est.Estimate("abcde"))
}
