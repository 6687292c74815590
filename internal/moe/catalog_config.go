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
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Catalog Data
// =============================================================================

//go:embed catalog_data.yaml
var defaultCatalogYAML []byte

// =============================================================================
// Catalog Configuration Types
// =============================================================================

// catalogExpertData is the YAML shape of a single expert entry.
type catalogExpertData struct {
	ID          string   `yaml:"id"`
	DomainTools []string `yaml:"domain_tools"`
	Vocabulary  []string `yaml:"vocabulary"`
}

// catalogData is the YAML shape of the whole embedded (or user-supplied)
// catalog file.
type catalogData struct {
	SharedTools                 []string            `yaml:"shared_tools"`
	Experts                     []catalogExpertData `yaml:"experts"`
	ClassificationPrimaryExpert map[string]string   `yaml:"classification_primary_experts"`
	WorkflowPrimaryExpert       map[string]string   `yaml:"workflow_primary_experts"`
}

// =============================================================================
// Singleton Catalog
// =============================================================================

var (
	catalogMu      sync.RWMutex
	catalogOnce    sync.Once
	cachedCatalog  *Catalog
	catalogLoadErr error
)

// GetCatalog returns the process-wide default Catalog, loading it from the
// embedded catalog_data.yaml on first call. Safe for concurrent use.
func GetCatalog() (*Catalog, error) {
	catalogMu.RLock()
	if cachedCatalog != nil || catalogLoadErr != nil {
		c, err := cachedCatalog, catalogLoadErr
		catalogMu.RUnlock()
		return c, err
	}
	catalogMu.RUnlock()

	catalogMu.Lock()
	defer catalogMu.Unlock()
	if cachedCatalog != nil || catalogLoadErr != nil {
		return cachedCatalog, catalogLoadErr
	}

	catalogOnce.Do(func() {
		cachedCatalog, catalogLoadErr = LoadCatalog(defaultCatalogYAML)
	})
	return cachedCatalog, catalogLoadErr
}

// ResetCatalogForTest clears the cached catalog so tests can reload with
// different data.
func ResetCatalogForTest() {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	cachedCatalog = nil
	catalogLoadErr = nil
	catalogOnce = sync.Once{}
}

// LoadCatalog parses, derives keyword profiles for, and validates a Catalog
// from raw YAML bytes. Construction is total for well-formed data; malformed
// data (invariant violations) is a programmer error, returned here rather
// than panicking so callers can decide how to surface it.
func LoadCatalog(data []byte) (*Catalog, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("LoadCatalog: empty YAML data")
	}

	var raw catalogData
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("LoadCatalog: parsing YAML: %w", err)
	}

	shared := make(map[string]struct{}, len(raw.SharedTools))
	for _, t := range raw.SharedTools {
		shared[t] = struct{}{}
	}
	if len(shared) != 8 {
		return nil, fmt.Errorf("LoadCatalog: shared_tools must have exactly 8 entries, got %d", len(shared))
	}

	defs := make([]ExpertDefinition, 0, len(raw.Experts))
	vocab := make(map[ExpertID][]string, len(raw.Experts))
	order := make(map[ExpertID]int, len(raw.Experts))

	for i, e := range raw.Experts {
		id := ExpertID(e.ID)
		if id == "" {
			return nil, fmt.Errorf("LoadCatalog: expert[%d]: id must not be empty", i)
		}
		if len(e.DomainTools) == 0 || len(e.DomainTools) > 12 {
			return nil, fmt.Errorf("LoadCatalog: expert %q: domain_tools must have 1-12 entries, got %d", id, len(e.DomainTools))
		}
		for _, dt := range e.DomainTools {
			if _, ok := shared[dt]; ok {
				return nil, fmt.Errorf("LoadCatalog: expert %q: domain tool %q collides with a shared tool", id, dt)
			}
		}
		defs = append(defs, ExpertDefinition{ID: id, DomainTools: append([]string(nil), e.DomainTools...)})
		vocab[id] = append([]string(nil), e.Vocabulary...)
		order[id] = i
	}
	if len(defs) != 20 {
		return nil, fmt.Errorf("LoadCatalog: catalog must define exactly 20 experts, got %d", len(defs))
	}

	classPrimary := make(map[ClassificationKind]ExpertID, len(raw.ClassificationPrimaryExpert))
	for k, v := range raw.ClassificationPrimaryExpert {
		id := ExpertID(v)
		if _, ok := order[id]; !ok {
			return nil, fmt.Errorf("LoadCatalog: classification_primary_experts[%s]: unknown expert %q", k, v)
		}
		classPrimary[ClassificationKind(k)] = id
	}

	workflowPrimary := make(map[string]ExpertID, len(raw.WorkflowPrimaryExpert))
	for k, v := range raw.WorkflowPrimaryExpert {
		id := ExpertID(v)
		if _, ok := order[id]; !ok {
			return nil, fmt.Errorf("LoadCatalog: workflow_primary_experts[%s]: unknown expert %q", k, v)
		}
		workflowPrimary[k] = id
	}

	cat := &Catalog{
		experts:         defs,
		order:           order,
		shared:          shared,
		sharedOrdered:   append([]string(nil), raw.SharedTools...),
		vocabulary:      vocab,
		classPrimary:    classPrimary,
		workflowPrimary: workflowPrimary,
	}
	cat.buildKeywordProfiles()

	slog.Info("moe: catalog loaded",
		slog.Int("expert_count", len(defs)),
		slog.Int("shared_tool_count", len(shared)),
	)
	return cat, nil
}
