package core

import (
	"fmt"
)

// CoverageError represents a structured error with category and details
type CoverageError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: corrupt_state, write_state, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *CoverageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *CoverageError) Unwrap() error {
	return e.Cause
}

// Is matches another CoverageError with the same code, so predefined errors
// work as sentinels after WithCause/WithDetails.
func (e *CoverageError) Is(target error) bool {
	t, ok := target.(*CoverageError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *CoverageError) WithCause(cause error) *CoverageError {
	return &CoverageError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *CoverageError) WithMessage(msg string) *CoverageError {
	return &CoverageError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *CoverageError) WithDetails(details map[string]interface{}) *CoverageError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &CoverageError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Selector errors never escape the matcher; they are logged and the
	// selector is treated as unmatched.
	ErrMalformedSelector = &CoverageError{
		Category: ErrCategorySelectorParse,
		Code:     "malformed_selector",
		Message:  "selector could not be parsed",
	}

	// Persistence errors
	ErrCorruptState = &CoverageError{
		Category: ErrCategoryPersistence,
		Code:     "corrupt_state",
		Message:  "coverage state could not be read",
	}
	ErrWriteState = &CoverageError{
		Category: ErrCategoryPersistence,
		Code:     "write_state",
		Message:  "coverage state could not be written",
	}
	ErrLockState = &CoverageError{
		Category: ErrCategoryPersistence,
		Code:     "lock_state",
		Message:  "coverage state lock could not be acquired",
	}

	// Element errors
	ErrElementSkipped = &CoverageError{
		Category: ErrCategoryElement,
		Code:     "element_skipped",
		Message:  "element could not be processed",
	}

	// Config errors
	ErrInvalidConfig = &CoverageError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}

	// Discovery errors
	ErrDiscoveryFailed = &CoverageError{
		Category: ErrCategoryDiscovery,
		Code:     "discovery_failed",
		Message:  "element discovery failed",
	}
)

// NewCoverageError creates a new CoverageError with the given parameters
func NewCoverageError(category ErrorCategory, code, message string) *CoverageError {
	return &CoverageError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}
