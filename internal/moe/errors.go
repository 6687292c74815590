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

import "fmt"

// ErrorCode enumerates the router's small recoverable error taxonomy.
// EmptyInput and BudgetExceeded are not represented here: they are policy
// outcomes folded into SparseRouteResult (truncated shared-tools-only
// results), not returned errors.
type ErrorCode string

const (
	// ErrCodeUnknownTool marks a tool present in the catalog for which the
	// schema provider returned nothing. The compressor logs a warning and
	// skips the tool; routing continues.
	ErrCodeUnknownTool ErrorCode = "unknown_tool"

	// ErrCodePrefetchFailure marks a failure in the fire-and-forget
	// speculative-prefetch task. Always swallowed; prefetch is best effort.
	ErrCodePrefetchFailure ErrorCode = "prefetch_failure"

	// ErrCodeInvalidConfig marks a programmer error caught at construction
	// time: a negative size, an out-of-range threshold, or similar.
	ErrCodeInvalidConfig ErrorCode = "invalid_config"
)

// RouterError is the router's error type. Recoverable errors never abort a
// Route call; they are logged and the pipeline degrades gracefully.
// Non-recoverable errors are programmer errors raised at construction time.
type RouterError struct {
	Code        ErrorCode
	Message     string
	Recoverable bool
}

// NewRouterError constructs a RouterError.
func NewRouterError(code ErrorCode, message string, recoverable bool) *RouterError {
	return &RouterError{Code: code, Message: message, Recoverable: recoverable}
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("moe: %s: %s", e.Code, e.Message)
}
