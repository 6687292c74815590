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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var fingerprintWhitespace = regexp.MustCompile(`\s+`)

// normalizeTaskText lowercases and collapses whitespace so that semantically
// identical tasks ("  List Files  " vs "list files") fingerprint identically.
func normalizeTaskText(taskText string) string {
	return fingerprintWhitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(taskText)), " ")
}

// routingFingerprint computes a stable SHA256-derived cache key over the
// normalized task text, classification tag, budget, and max-experts — the
// same fields that determine a route's output. Same shape as router_cache.go's
// computeCorpusHash: tab-delimited fields, newline-terminated, deterministic
// regardless of caller formatting.
func routingFingerprint(taskText string, classification TaskClassification, budget, maxExperts int) string {
	h := sha256.New()
	fmt.Fprintf(h, "task\t%s\n", normalizeTaskText(taskText))
	fmt.Fprintf(h, "classification\t%s\n", classification.String())
	fmt.Fprintf(h, "budget\t%d\n", budget)
	fmt.Fprintf(h, "max_experts\t%d\n", maxExperts)
	return hex.EncodeToString(h.Sum(nil))
}
