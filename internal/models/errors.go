package models

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is; services wrap them with context.
var (
	ErrValidation              = errors.New("validation failed")
	ErrNotFound                = errors.New("not found")
	ErrInvalidState            = errors.New("invalid state")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrInvalidItemTransition   = errors.New("invalid item transition")
	ErrConflict                = errors.New("version conflict")
	ErrAlreadyPaid             = errors.New("split already paid")
	ErrAlreadySettled          = errors.New("order already settled")
	ErrSplitInProgress         = errors.New("split bill in progress")
	ErrDirectPaymentInProgress = errors.New("direct payment already in progress")
	ErrOverAssignedItem        = errors.New("item over-assigned across splits")
	ErrInvalidSplitCount       = errors.New("invalid split count")
	ErrExternalService         = errors.New("external service unavailable")
)

// ValidationError describes malformed input for a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, format string, args ...interface{}) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransitionError reports an illegal edge in one of the state machines.
type TransitionError struct {
	Kind error
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", e.Kind, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return e.Kind
}

// IsRetryable reports whether err may be retried after re-reading state.
// Only optimistic concurrency conflicts qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
