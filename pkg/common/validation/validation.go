// Package validation provides common validation utilities for the gotally library.
package validation

import (
	"cmp"
	"fmt"
	"time"

	gferrors "github.com/vnykmshr/gotally/pkg/common/errors"
)

// ValidatePositive validates that an integer value is positive (> 0).
// Returns a ValidationError if the value is not positive.
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return gferrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNonNegativeDuration validates that a duration is not negative.
func ValidateNonNegativeDuration(module, field string, value time.Duration) error {
	if value < 0 {
		return gferrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 to disable")
	}
	return nil
}

// ValidatePositiveFloat validates that a float64 value is positive (> 0).
// Returns a ValidationError if the value is not positive.
func ValidatePositiveFloat(module, field string, value float64) error {
	if value <= 0 {
		return gferrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateGreaterThan validates that value is strictly greater than floor.
func ValidateGreaterThan(module, field string, value, floor float64) error {
	if !(value > floor) {
		return gferrors.NewValidationError(module, field, value, fmt.Sprintf("must be greater than %v", floor))
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not empty.
// Returns a ValidationError if the string is empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return gferrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}

// ValidateStrictlyIncreasing validates that values is non-empty and every
// element is greater than the one before it.
func ValidateStrictlyIncreasing[T cmp.Ordered](module, field string, values []T) error {
	if len(values) == 0 {
		return gferrors.NewValidationError(module, field, values, "cannot be empty").
			WithHint("provide at least one bucket boundary")
	}
	for i := 1; i < len(values); i++ {
		if !(values[i] > values[i-1]) {
			return gferrors.NewValidationError(module, field, values,
				fmt.Sprintf("must be strictly increasing (index %d)", i)).
				WithHint("sort boundaries ascending and remove duplicates")
		}
	}
	return nil
}
