package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeMissingColumn ErrorType = "MISSING_COLUMN"
	ErrTypeTypeMismatch  ErrorType = "TYPE_MISMATCH"
	ErrTypeNetwork       ErrorType = "NETWORK"
	ErrTypeParsing       ErrorType = "PARSING"
	ErrTypeStorage       ErrorType = "STORAGE"
	ErrTypeValidation    ErrorType = "VALIDATION"
	ErrTypeNotFound      ErrorType = "NOT_FOUND"
	ErrTypeConfig        ErrorType = "CONFIG"
)

// Context keys attached to pipeline errors
const (
	ContextColumn    = "column"
	ContextRuleIndex = "rule_index"
	ContextRuleKind  = "rule_kind"
	ContextExpected  = "expected"
	ContextActual    = "actual"
	ContextFields    = "fields"
)

// Sentinels for errors.Is. Any AppError of the same Type matches.
var (
	ErrMissingColumn = &AppError{Type: ErrTypeMissingColumn, Message: "missing column"}
	ErrTypeMismatch  = &AppError{Type: ErrTypeTypeMismatch, Message: "type mismatch"}
	ErrValidation    = &AppError{Type: ErrTypeValidation, Message: "validation failed"}
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError of the same type, so callers can test against the sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Column returns the column the error names, if any.
func (e *AppError) Column() string {
	col, _ := e.Context[ContextColumn].(string)
	return col
}

// RuleIndex returns the zero-based rule index the error names, or -1.
func (e *AppError) RuleIndex() int {
	if idx, ok := e.Context[ContextRuleIndex].(int); ok {
		return idx
	}
	return -1
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Helper functions for common error types

// NewMissingColumnError reports a referenced column that is absent from the table.
func NewMissingColumnError(column string) *AppError {
	return NewAppError(ErrTypeMissingColumn, fmt.Sprintf("column %q not found", column), nil).
		WithContext(ContextColumn, column)
}

// NewTypeMismatchError reports a value whose type does not suit the operation.
func NewTypeMismatchError(column, expected, actual string) *AppError {
	return NewAppError(ErrTypeTypeMismatch,
		fmt.Sprintf("column %q: expected %s value, got %s", column, expected, actual), nil).
		WithContext(ContextColumn, column).
		WithContext(ContextExpected, expected).
		WithContext(ContextActual, actual)
}

// NewNetworkError creates a network-related error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// RuleError wraps err with the position and kind of the derivation rule that
// failed. If err carries an AppError the rule index is recorded in its context.
func RuleError(index int, kind string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		appErr.WithContext(ContextRuleIndex, index).WithContext(ContextRuleKind, kind)
	}
	return fmt.Errorf("rule %d (%s): %w", index, kind, err)
}

// AsAppError extracts the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
