package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur during a crawl
type ErrorType string

const (
	ErrorTypeInvalidURL  ErrorType = "invalid_url"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeHTTP        ErrorType = "http"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeCancelled   ErrorType = "cancelled"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a crawl error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the error belongs to the transient network class
func (e *Error) Transient() bool {
	return IsRetryable(e.Type)
}

// New creates a typed error
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, err error, msg string) *Error {
	return &Error{Type: t, Message: msg, Err: err}
}

// FromStatus builds a typed error for an unexpected HTTP status
func FromStatus(statusCode int, msg string) *Error {
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &Error{Type: TypeForStatus(statusCode), Message: msg, Code: statusCode}
}

// TypeForStatus maps an HTTP status code to an error type
func TypeForStatus(statusCode int) ErrorType {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case IsRetryableStatusCode(statusCode):
		return ErrorTypeServerError
	default:
		return ErrorTypeHTTP
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a transient failure
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case http.StatusTooManyRequests:
		return true
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// TypeOf returns the type of err, unwrapping as needed.
// Context cancellation is always reported as ErrorTypeCancelled.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	if stderrors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryableError is suitable as a retry predicate
func IsRetryableError(err error) bool {
	return IsRetryable(TypeOf(err))
}

// IsCancelled reports whether err stems from cancellation
func IsCancelled(err error) bool {
	return Is(err, ErrorTypeCancelled)
}

// StatusCode extracts the HTTP status code carried by err, or 0
func StatusCode(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}
