// Package errors defines the error taxonomy shared by the gotally packages.
package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the gotally library

var (
	// ErrClosed indicates that an operation was attempted on a closed scope or reporter
	ErrClosed = errors.New("resource is closed")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrCapabilityNotSupported indicates a call the configured reporter cannot serve
	ErrCapabilityNotSupported = errors.New("capability not supported")

	// ErrSnapshotUnsupported indicates a snapshot was requested from a scope whose
	// reporter does not capture snapshots
	ErrSnapshotUnsupported = fmt.Errorf("snapshots require a snapshot reporter: %w", ErrCapabilityNotSupported)

	// ErrTimeout indicates that a reporter operation timed out
	ErrTimeout = errors.New("operation timed out")
)

// ValidationError describes a rejected construction parameter.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError for module.field.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap makes every ValidationError match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OperationError wraps a failure of an administrative operation such as a
// reporter flush.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError for module.operation.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches extra detail and returns the same error for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsUnsupported reports whether err signals a missing reporter capability.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrCapabilityNotSupported)
}

// IsTemporary returns true if the error indicates a condition that might clear
// on the next report iteration
func IsTemporary(err error) bool {
	return errors.Is(err, ErrTimeout)
}
