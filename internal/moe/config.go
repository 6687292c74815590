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

	"github.com/go-playground/validator/v10"
)

// CharsPerToken is the deterministic token-estimation constant pinned by the
// specification (§9 Open Question 2): total_tokens = ceil(len(text) / 4).
const CharsPerToken = 4

// MoeConfig is the router's static configuration. Validated once at
// construction via NewConfig; invalid values are a programmer error (§7).
//
// Thread Safety: immutable after construction; safe to share.
type MoeConfig struct {
	// Enabled, when false, makes Route return shared tools only at Full.
	Enabled bool `validate:"-"`

	// ClassificationCacheSize is the LRU capacity. Default 256.
	ClassificationCacheSize int `validate:"gt=0"`

	// PruneAfterIterations is the bias-pruning cadence. Default 5.
	PruneAfterIterations int `validate:"gt=0"`

	// WarmOnStartup controls whether the warmup pass runs at construction.
	WarmOnStartup bool `validate:"-"`

	// SpeculativePrefetch controls whether a post-route prefetch task is
	// scheduled after a Route call that computes a fresh routing. Cache
	// hits, empty input, a disabled router, and MaxExpertsPerRoute <= 1
	// schedule no prefetch.
	SpeculativePrefetch bool `validate:"-"`

	// CompressSchemas, when false, disables Half/Quarter precision: every
	// selected tool renders at Full, and an over-budget selection skips
	// demotion and goes straight to dropping the lowest-ranked expert.
	CompressSchemas bool `validate:"-"`

	// MaxExpertsPerRoute is the hard cap on selected experts. Default 3.
	MaxExpertsPerRoute int `validate:"gt=0"`

	// ActivationThreshold is the minimum score for eligibility. Default 0.15.
	ActivationThreshold float64 `validate:"gte=0,lte=1"`

	// MaxToolTokens is the token budget per routing. Default 6000.
	MaxToolTokens int `validate:"gt=0"`
}

// DefaultConfig returns the specification's pinned defaults (mirrored from
// rustant-core/src/moe/mod.rs's test_moe_config_defaults).
func DefaultConfig() MoeConfig {
	return MoeConfig{
		Enabled:                 true,
		ClassificationCacheSize: 256,
		PruneAfterIterations:    5,
		WarmOnStartup:           true,
		SpeculativePrefetch:     true,
		CompressSchemas:         true,
		MaxExpertsPerRoute:      3,
		ActivationThreshold:     0.15,
		MaxToolTokens:           6000,
	}
}

var configValidator = validator.New()

// NewConfig validates cfg and returns it, or a non-recoverable RouterError
// describing the invalid fields. Negative sizes, out-of-range
// thresholds, and similar malformed configuration are programmer errors
// (§7): the caller is expected to fix its construction call, not retry.
func NewConfig(cfg MoeConfig) (MoeConfig, error) {
	if err := configValidator.Struct(cfg); err != nil {
		return MoeConfig{}, NewRouterError(ErrCodeInvalidConfig, err.Error(), false)
	}
	if cfg.MaxToolTokens < 0 {
		return MoeConfig{}, NewRouterError(ErrCodeInvalidConfig,
			fmt.Sprintf("max_tool_tokens must be non-negative, got %d", cfg.MaxToolTokens), false)
	}
	return cfg, nil
}
