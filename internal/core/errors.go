package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized is returned when a caller has no valid identity or an
	// insufficient role for the requested operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when a record, user, or download id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a create-only write collides with an
	// existing object.
	ErrConflict = errors.New("conflict")
	// ErrStoreUnavailable wraps failures reported by the relational store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field-level problems found while validating a
// request. It is surfaced as unprocessable input.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

// Add appends a field problem.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns nil when no field problems were recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NotFoundf wraps ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Unauthorizedf wraps ErrUnauthorized with context.
func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnauthorized)
}

// StoreError wraps a driver failure so callers can detect ErrStoreUnavailable
// while keeping the original cause in the chain.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
