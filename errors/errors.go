// Package errors provides error handling for kgmorph.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Sentinel marking for error classification (errors.Mark / errors.Is)
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Classify an error against a sentinel
//	return errors.Mark(err, provider.ErrTransient)
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Classification. Mark attaches a sentinel to an error so that
// errors.Is(err, sentinel) holds without changing the error message.
var (
	Mark          = crdb.Mark
	CombineErrors = crdb.CombineErrors
)

// Assertions for engine-internal invariant breaches. These should never
// fire in correct operation; an assertion failure indicates a bug.
var (
	AssertionFailedf    = crdb.AssertionFailedf
	HasAssertionFailure = crdb.HasAssertionFailure
)
