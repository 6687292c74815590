// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package moe implements the sparse Mixture-of-Experts tool router: it maps
// a natural-language task to a small set of specialized expert tool bundles
// and renders the exact tool-schema payload sent to the downstream model.
//
// # DeepSeek V3 Parallels
//
// | DeepSeek V3 concept        | This package                          |
// |-----------------------------|----------------------------------------|
// | Sigmoid gating per expert   | keyword affinity, independent per expert |
// | Top-K (8 of 256) activation | Top-K (1-3 of 20) activation            |
// | Shared expert (always-on)   | 8 shared tools always sent              |
// | Auxiliary-loss-free bias    | per-expert bias updated by outcomes     |
// | FP8 mixed precision         | Full/Half/Quarter tool schema precision |
//
// The router scores every expert independently (no softmax competition),
// selects the top K above a threshold, merges their tool sets with
// mixed-precision schemas, and caps the result at a token budget — cutting
// per-request tool-description cost from ~25-35K tokens to ~3-7K while
// preserving full coverage across the catalog.
package moe

import "time"

// ExpertID identifies one of the fixed set of 20 specialized experts.
type ExpertID string

// The closed set of expert identifiers. Order here is the canonical order
// used for stable tie-breaking during selection and for shared-tool-first
// tool ordering.
const (
	ExpertGeneral       ExpertID = "general"
	ExpertCalendar      ExpertID = "calendar"
	ExpertFileOps       ExpertID = "file_ops"
	ExpertGit           ExpertID = "git"
	ExpertCode          ExpertID = "code"
	ExpertBrowser       ExpertID = "browser"
	ExpertResearch      ExpertID = "research"
	ExpertMessaging     ExpertID = "messaging"
	ExpertMusic         ExpertID = "music"
	ExpertHome          ExpertID = "home"
	ExpertSecurity      ExpertID = "security"
	ExpertDataAnalysis  ExpertID = "data_analysis"
	ExpertWeb           ExpertID = "web"
	ExpertSystem        ExpertID = "system"
	ExpertMedia         ExpertID = "media"
	ExpertDevOps        ExpertID = "devops"
	ExpertPlanning      ExpertID = "planning"
	ExpertMemory        ExpertID = "memory"
	ExpertVoice         ExpertID = "voice"
	ExpertShell         ExpertID = "shell"
)

// ClassificationKind enumerates the closed set of task classification tags.
type ClassificationKind string

const (
	ClassGeneral       ClassificationKind = "General"
	ClassCalendar      ClassificationKind = "Calendar"
	ClassFileOperation ClassificationKind = "FileOperation"
	ClassGitOperation  ClassificationKind = "GitOperation"
	ClassCodeAnalysis  ClassificationKind = "CodeAnalysis"
	ClassBrowser       ClassificationKind = "Browser"
	ClassArxivResearch ClassificationKind = "ArxivResearch"
	ClassMessaging     ClassificationKind = "Messaging"
	ClassMusic         ClassificationKind = "Music"
	ClassHomeKit       ClassificationKind = "HomeKit"
	ClassDeepResearch  ClassificationKind = "DeepResearch"
	ClassWorkflow      ClassificationKind = "Workflow"
)

// TaskClassification is the tagged-variant classification of a task. Workflow
// classifications carry a Name; every other kind leaves Name empty.
//
// Thread Safety: immutable value type, safe to share and copy.
type TaskClassification struct {
	Kind ClassificationKind
	Name string // only meaningful when Kind == ClassWorkflow
}

// Workflow builds a Workflow(name) classification.
func Workflow(name string) TaskClassification {
	return TaskClassification{Kind: ClassWorkflow, Name: name}
}

// Pre-built simple classifications, for callers who don't want to spell out
// the struct literal.
var (
	General       = TaskClassification{Kind: ClassGeneral}
	Calendar      = TaskClassification{Kind: ClassCalendar}
	FileOperation = TaskClassification{Kind: ClassFileOperation}
	GitOperation  = TaskClassification{Kind: ClassGitOperation}
	CodeAnalysis  = TaskClassification{Kind: ClassCodeAnalysis}
	Browser       = TaskClassification{Kind: ClassBrowser}
	ArxivResearch = TaskClassification{Kind: ClassArxivResearch}
	Messaging     = TaskClassification{Kind: ClassMessaging}
	Music         = TaskClassification{Kind: ClassMusic}
	HomeKit       = TaskClassification{Kind: ClassHomeKit}
	DeepResearch  = TaskClassification{Kind: ClassDeepResearch}
)

// IsZero reports whether c is the zero value, i.e. "no classification given".
func (c TaskClassification) IsZero() bool {
	return c.Kind == ""
}

// String renders the classification the way a fingerprint or log line wants
// it: the tag, plus "(name)" for workflows.
func (c TaskClassification) String() string {
	if c.Kind == ClassWorkflow {
		return string(c.Kind) + "(" + c.Name + ")"
	}
	return string(c.Kind)
}

// ToolPrecision controls how verbosely a tool's schema is rendered.
type ToolPrecision int

const (
	// PrecisionFull emits the verbatim schema: description, enum values,
	// per-field examples.
	PrecisionFull ToolPrecision = iota
	// PrecisionHalf emits name, one-sentence description, and top-level
	// parameter keys/types only.
	PrecisionHalf
	// PrecisionQuarter emits only the tool name and a one-line summary.
	PrecisionQuarter
)

// String renders the precision level for logs and rendered output.
func (p ToolPrecision) String() string {
	switch p {
	case PrecisionFull:
		return "full"
	case PrecisionHalf:
		return "half"
	case PrecisionQuarter:
		return "quarter"
	default:
		return "unknown"
	}
}

// demote returns the next-lower precision, or ok=false if already at the
// floor (Quarter).
func (p ToolPrecision) demote() (ToolPrecision, bool) {
	switch p {
	case PrecisionFull:
		return PrecisionHalf, true
	case PrecisionHalf:
		return PrecisionQuarter, true
	default:
		return PrecisionQuarter, false
	}
}

// ParamField is one top-level field of a tool's parameter object.
type ParamField struct {
	Name        string
	Type        string // JSON-schema type keyword: "string", "integer", ...
	Description string
	Enum        []string
	Examples    []string
}

// ToolSchema is the opaque structured description of a single tool, as
// returned by a SchemaProvider. The router never interprets parameter
// semantics; it only renders this value at one of three precisions.
type ToolSchema struct {
	Name        string
	Description string // full prose description
	Summary     string // one-line purpose, used at Quarter precision
	Parameters  []ParamField
}

// RenderedTool is one tool schema rendered at a specific precision.
type RenderedTool struct {
	Name      string
	Precision ToolPrecision
	Text      string
	Tokens    int
}

// SelectedExpert is one expert chosen by the Top-K selector, with the score
// that earned its place and the precision its tools should render at.
type SelectedExpert struct {
	ExpertID  ExpertID
	Score     float64
	Precision ToolPrecision
}

// SparseRouteResult is the output of a single Route call.
type SparseRouteResult struct {
	Selected        []SelectedExpert
	Tools           []RenderedTool
	TotalToolTokens int
	Truncated       bool
	CacheHit        bool
}

// toolNames returns the unique, ordered tool names in the result.
func (r SparseRouteResult) toolNames() []string {
	names := make([]string, len(r.Tools))
	for i, t := range r.Tools {
		names[i] = t.Name
	}
	return names
}

// Fact is a single domain-specific key/value fact extracted from an expert's
// output.
type Fact struct {
	Key   string
	Value string
}

// ExpertResult is an immutable record of one expert's execution, recorded
// into the MoE Context Buffer for forwarding to the next expert.
type ExpertResult struct {
	ExpertID  ExpertID
	Summary   string
	Facts     []Fact
	Timestamp time.Time
}

// ExpertDefinition is the static, immutable definition of one expert: its
// identity and its domain tool set. The shared tool set is not part of
// DomainTools; it is added implicitly by the catalog.
type ExpertDefinition struct {
	ID          ExpertID
	DomainTools []string
}
