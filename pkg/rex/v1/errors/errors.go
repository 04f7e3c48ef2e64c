// Package errors defines the typed error values shared by go-rex packages.
package errors

import (
	"errors"
	"fmt"
)

// ConfigError represents an error encountered while assembling a store or
// loading CLI scenario configuration.
type ConfigError struct {
	Message string
	Cause   error
}

func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{Message: message, Cause: cause}
}
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}
func (e *ConfigError) Unwrap() error { return e.Cause }

// ValidationError indicates that some input (scenario structure, schema
// version, action parameters) failed validation checks.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
func (e *ValidationError) Unwrap() error { return e.Cause }

// NavigationError signals an out-of-bounds time-travel operation. The store
// treats it as a no-op, never as a fatal condition: state and subscribers
// are left untouched.
type NavigationError struct {
	Op     string // "undo", "redo", or "jump"
	Index  int    // requested index; meaningful for "jump" only
	Cursor int    // history cursor at the time of the call
	Length int    // history length at the time of the call
}

func NewNavigationError(op string, index, cursor, length int) *NavigationError {
	return &NavigationError{Op: op, Index: index, Cursor: cursor, Length: length}
}
func (e *NavigationError) Error() string {
	if e.Op == "jump" {
		return fmt.Sprintf("time-travel %s to index %d out of bounds (cursor %d, length %d)", e.Op, e.Index, e.Cursor, e.Length)
	}
	return fmt.Sprintf("time-travel %s out of bounds (cursor %d, length %d)", e.Op, e.Cursor, e.Length)
}

// IsNavigation checks if an error is a NavigationError using errors.As.
func IsNavigation(err error) bool {
	var navErr *NavigationError
	return errors.As(err, &navErr)
}

// EffectError wraps a failure raised by an effect's operation. The effect
// queue logs and publishes it; it is never propagated to dispatch callers.
type EffectError struct {
	EffectName string // optional label assigned at construction
	Cause      error
}

func NewEffectError(effectName string, cause error) *EffectError {
	return &EffectError{EffectName: effectName, Cause: cause}
}
func (e *EffectError) Error() string {
	if e.EffectName == "" {
		return fmt.Sprintf("effect failed: %v", e.Cause)
	}
	return fmt.Sprintf("effect '%s' failed: %v", e.EffectName, e.Cause)
}
func (e *EffectError) Unwrap() error { return e.Cause }

// RetryExhaustedError indicates that a retrying effect gave up after its
// configured number of attempts. Cause holds the last attempt's error.
type RetryExhaustedError struct {
	Attempts int
	Cause    error
}

func NewRetryExhaustedError(attempts int, cause error) *RetryExhaustedError {
	return &RetryExhaustedError{Attempts: attempts, Cause: cause}
}
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry gave up after %d attempts: %v", e.Attempts, e.Cause)
}
func (e *RetryExhaustedError) Unwrap() error { return e.Cause }
