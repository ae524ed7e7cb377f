package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTrained is returned for prediction requests when no demand
	// estimator is available.
	ErrNotTrained = errors.New("model not trained")

	// ErrDatasetUnavailable marks a reference dataset that could not be loaded.
	ErrDatasetUnavailable = errors.New("dataset unavailable")
)

// ValidationError reports a scenario or feature row that is missing a field
// or carries a value that cannot be coerced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation returns true if err (or any error in its chain) is a
// *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidation extracts the *ValidationError from err's chain, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
