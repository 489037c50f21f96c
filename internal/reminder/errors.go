package reminder

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound matches every *NotFoundError via errors.Is.
	ErrNotFound = errors.New("reminder not found")
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an unknown reminder id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("reminder %q not found", e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
