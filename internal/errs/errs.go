package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline stages. Every stage returns one of these
// (possibly wrapped) instead of letting failures escape the pipeline
// boundary.
var (
	ErrInvalidSession     = errors.New("invalid session")
	ErrRateLimited        = errors.New("rate limited")
	ErrValidation         = errors.New("validation error")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrActionFailed       = errors.New("action execution failed")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrNotFound           = errors.New("not found")
	ErrUnexpected         = errors.New("unexpected error")
)

// InvalidSession wraps reason as a session validation failure.
func InvalidSession(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSession, reason)
}

// RateLimited wraps reason as a rate limit denial.
func RateLimited(reason string) error {
	return fmt.Errorf("%w: %s", ErrRateLimited, reason)
}

// Validation wraps reason as an input validation failure.
func Validation(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// PermissionDenied wraps reason as an authorization denial.
func PermissionDenied(reason string) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, reason)
}

// ActionFailed wraps err as a handler-level execution failure.
func ActionFailed(err error) error {
	if err == nil {
		return ErrActionFailed
	}
	return fmt.Errorf("%w: %v", ErrActionFailed, err)
}

// ServiceUnavailable wraps reason as an NLU availability failure.
func ServiceUnavailable(reason string) error {
	return fmt.Errorf("%w: %s", ErrServiceUnavailable, reason)
}
