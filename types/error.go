package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Structural error codes (construction and validation time)
const (
	ErrInvalidNode       ErrorCode = "INVALID_NODE"
	ErrDuplicateNode     ErrorCode = "DUPLICATE_NODE"
	ErrNodeNotFound      ErrorCode = "NODE_NOT_FOUND"
	ErrEmptyGraph        ErrorCode = "EMPTY_GRAPH"
	ErrNoInitialNodes    ErrorCode = "NO_INITIAL_NODES"
	ErrNoTerminalNodes   ErrorCode = "NO_TERMINAL_NODES"
	ErrIsolatedNode      ErrorCode = "ISOLATED_NODE"
	ErrCycleDetected     ErrorCode = "CYCLE_DETECTED"
	ErrInvalidBranch     ErrorCode = "INVALID_BRANCH"
	ErrInvalidLoop       ErrorCode = "INVALID_LOOP"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Execution error codes
const (
	ErrNodeFailed       ErrorCode = "NODE_FAILED"
	ErrNoBranch         ErrorCode = "NO_BRANCH"
	ErrDelegateNotFound ErrorCode = "DELEGATE_NOT_FOUND"
	ErrDuplicateName    ErrorCode = "DUPLICATE_DELEGATE"
	ErrCircuitOpen      ErrorCode = "CIRCUIT_OPEN"
	ErrEvaluation       ErrorCode = "EVALUATION_FAILED"
	ErrInvalidPlan      ErrorCode = "INVALID_PLAN"
	ErrMissingVariable  ErrorCode = "MISSING_VARIABLE"
	ErrRunNotFound      ErrorCode = "RUN_NOT_FOUND"
)

// Budget error codes
const (
	ErrStepBudgetExceeded ErrorCode = "STEP_BUDGET_EXCEEDED"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrStalled            ErrorCode = "STALLED"
	ErrCanceled           ErrorCode = "CANCELED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	NodeID    string    `json:"node_id,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.NodeID != "" {
		msg = fmt.Sprintf("%s (node %s)", msg, e.NodeID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code. This lets
// package-level sentinels match errors that carry extra detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithNode records the node the error refers to.
func (e *Error) WithNode(nodeID string) *Error {
	e.NodeID = nodeID
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
