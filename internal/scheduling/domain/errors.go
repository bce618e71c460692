package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPatternNotFound  = errors.New("pattern not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInstanceNotFound = errors.New("job instance not found")
)

// ValidationError rejects malformed input before any model building starts.
// It is locally recoverable by adjusting the input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
