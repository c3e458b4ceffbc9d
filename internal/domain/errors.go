// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates the input was rejected before any run was started.
var ErrValidation = errors.New("validation failed")

// ErrGenerationUnavailable indicates a generation call returned no usable
// content, including responses suppressed by a safety or policy filter.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// ErrLoopFailure indicates a run ended without producing a result.
var ErrLoopFailure = errors.New("revision loop failed")
