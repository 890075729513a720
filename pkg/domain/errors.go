package domain

import (
	"errors"
	"fmt"
)

// Common errors returned across the gateway.
var (
	// ErrNotFound is returned when an object does not exist upstream or a slug
	// could not be resolved within the scanned window.
	ErrNotFound = errors.New("not found")

	// ErrInvalidFilter is returned for unknown, inapplicable or malformed filters.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrValidation is returned when a raw payload cannot produce a valid record.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupported is returned when an operation is not offered for an object type.
	ErrUnsupported = errors.New("unsupported")
)

// ValidationError describes a single field that failed construction.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError wraps ErrNotFound with the object that was looked up.
type NotFoundError struct {
	ObjectType ObjectType
	Key        string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.ObjectType, e.Key)
}

// Is lets errors.Is(err, ErrNotFound) match any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
