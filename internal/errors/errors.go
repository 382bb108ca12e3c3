// Package errors provides structured error types for the stitchload system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryProtocol   ErrorCategory = "PROTOCOL"
	ErrCategorySchema     ErrorCategory = "SCHEMA"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategorySubmit     ErrorCategory = "SUBMIT"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Protocol codes
	CodeMalformedInput     = "MALFORMED_INPUT"
	CodeMissingKind        = "MISSING_KIND"
	CodeMissingStream      = "MISSING_STREAM"
	CodeMissingValue       = "MISSING_VALUE"
	CodeMissingKeyProps    = "MISSING_KEY_PROPERTIES"
	CodeUnknownMessageKind = "UNKNOWN_MESSAGE_KIND"

	// Schema codes
	CodeSchemaNotDeclared = "SCHEMA_NOT_DECLARED"
	CodeInvalidSchema     = "INVALID_SCHEMA"

	// Validation codes
	CodeValidationFailed = "VALIDATION_FAILED"

	// Submit codes
	CodeSubmissionFailed = "SUBMISSION_FAILED"

	// Storage codes
	CodeArchiveFailed = "ARCHIVE_FAILED"
	CodeJournalFailed = "JOURNAL_FAILED"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// LoaderError is the structured error type used throughout the system.
type LoaderError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *LoaderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *LoaderError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *LoaderError) Is(target error) bool {
	var t *LoaderError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new LoaderError.
func New(category ErrorCategory, code, message string) *LoaderError {
	return &LoaderError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new LoaderError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *LoaderError {
	return &LoaderError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *LoaderError) WithDetails(details map[string]interface{}) *LoaderError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Every pipeline error is fatal to the run; only archive storage
// operations are ever eligible for retry by a caller.
func IsRetryable(err error) bool {
	var le *LoaderError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a LoaderError.
func GetCategory(err error) ErrorCategory {
	var le *LoaderError
	if errors.As(err, &le) {
		return le.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a LoaderError.
func GetCode(err error) string {
	var le *LoaderError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryStorage && code == CodeArchiveFailed
}

// Convenience constructors for common errors.

func NewProtocolError(code, message string) *LoaderError {
	return New(ErrCategoryProtocol, code, message)
}

func NewSchemaError(code, message string) *LoaderError {
	return New(ErrCategorySchema, code, message)
}

func NewValidationError(message string, cause error) *LoaderError {
	return Wrap(ErrCategoryValidation, CodeValidationFailed, message, cause)
}

func NewSubmitError(message string, cause error) *LoaderError {
	return Wrap(ErrCategorySubmit, CodeSubmissionFailed, message, cause)
}

func NewStorageError(code, message string, cause error) *LoaderError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewConfigError(message string) *LoaderError {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}

func NewInternalError(message string, cause error) *LoaderError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
