package operations

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of run error
type ErrorType string

const (
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeCancellation ErrorType = "cancellation"
)

// StepError reports the step a run stopped at. The cause keeps its
// identity for errors.Is and errors.As.
type StepError struct {
	Type  ErrorType `json:"type"`
	Step  string    `json:"step"`
	Cause error     `json:"-"`
}

// Error implements the error interface
func (e *StepError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Type, e.Step)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Type, e.Step, e.Cause)
}

// Unwrap returns the underlying error
func (e *StepError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates a new execution error
func NewExecutionError(step string, cause error) *StepError {
	return &StepError{Type: ErrorTypeExecution, Step: step, Cause: cause}
}

// NewCancellationError creates a new cancellation error
func NewCancellationError(step string, cause error) *StepError {
	return &StepError{Type: ErrorTypeCancellation, Step: step, Cause: cause}
}

// IsCancellation reports whether err stopped a run because its context ended.
func IsCancellation(err error) bool {
	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Type == ErrorTypeCancellation {
		return true
	}
	return false
}

// FailedStep returns the step ID carried by err, if any.
func FailedStep(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return ""
}
