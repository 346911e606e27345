package domain

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means the backing store credentials are absent. It is
// checked before any store access so the caller gets a clear failure
// instead of a confusing downstream error.
var ErrNotConfigured = errors.New("server not configured")

// ValidationError is a caller mistake: a missing required field or an
// unrecognized enum value. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Required builds the common "field is required" validation error.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "required"}
}

// NotFoundError means a referenced entity does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
