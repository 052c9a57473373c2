// Package errors provides error handling for vidmask.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints for CLI users
//   - Assertion failures for contract violations
//
// Usage:
//
//	// Create new error
//	err := errors.New("runtime rejected tuning file")
//
//	// Wrap with context
//	if err := rt.Configure(settings); err != nil {
//	    return errors.Wrap(err, "failed to configure portable runtime")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "run 'vidmask resolve' to see the search order")
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotAvailable) {
//	    // accelerated path not compiled in
//	}
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
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapOnce     = crdb.UnwrapOnce
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
	CombineErrors  = crdb.CombineErrors
)

// Assertions and panics
var (
	AssertionFailedf                 = crdb.AssertionFailedf
	HasAssertionFailure              = crdb.HasAssertionFailure
	NewAssertionErrorWithWrappedErrf = crdb.NewAssertionErrorWithWrappedErrf
)

// Common sentinel errors for use across vidmask.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates a file or directory was not found in any search location
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates a malformed argument or configuration value
	ErrInvalidRequest = New("invalid request")

	// ErrNotAvailable indicates a runtime or backend is not compiled into this build
	ErrNotAvailable = New("not available in this build")

	// ErrUnsupportedFormat indicates a pixel format the engine cannot consume
	ErrUnsupportedFormat = New("unsupported pixel format")

	// ErrIncompatibleRuntime indicates a vendor runtime reported a version outside the supported range
	ErrIncompatibleRuntime = New("incompatible runtime version")

	// ErrClosed indicates use of a runtime or engine after Close
	ErrClosed = New("closed")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsNotAvailableError checks if an error is or wraps ErrNotAvailable
func IsNotAvailableError(err error) bool {
	return err != nil && Is(err, ErrNotAvailable)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// ContractViolation panics with an assertion failure. Used for programmer
// errors at the engine boundary (wrong mask accessor, zero-area frame).
func ContractViolation(format string, args ...interface{}) {
	panic(AssertionFailedf(format, args...))
}
