package types

import "fmt"

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

const (
	// ErrIngestion: the document source was unreachable or empty. Fatal to
	// startup; the store is left untouched.
	ErrIngestion ErrorCode = "INGESTION"

	// ErrRetrieval: both underlying search engines failed. Surfaced to the
	// caller; retrying is the orchestrator's decision.
	ErrRetrieval ErrorCode = "RETRIEVAL"

	// ErrGeneration: the generation collaborator failed or streamed an error.
	ErrGeneration ErrorCode = "GENERATION"

	// ErrEmbedding: the embedding collaborator failed.
	ErrEmbedding ErrorCode = "EMBEDDING"

	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrUpstreamError  ErrorCode = "UPSTREAM_ERROR"
	ErrTimeout        ErrorCode = "TIMEOUT"
)

// Error represents a structured error with code, message, and cause.
//
// Absent cache entries, expired sessions, and unknown parent IDs are NOT
// errors: lookups report those as plain (value, ok) returns.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
