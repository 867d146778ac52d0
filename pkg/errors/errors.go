package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies collection failures so callers can decide whether a
// retry is worthwhile.
type ErrorType string

const (
	ErrorTypeFetch         ErrorType = "fetch"          // transport/HTTP failure
	ErrorTypeParse         ErrorType = "parse"          // payload shape mismatch
	ErrorTypeStoreConflict ErrorType = "store_conflict" // natural-key duplicate, benign
	ErrorTypeConfiguration ErrorType = "configuration"  // no client registered, bad setup
	ErrorTypeStorage       ErrorType = "storage"        // repository failure
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error is a classified collection error. Code carries the HTTP status for
// fetch errors and is zero otherwise.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// NewFetchError reports a transport or HTTP-level failure.
func NewFetchError(code int, format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeFetch, Message: fmt.Sprintf(format, args...), Code: code}
}

// NewParseError reports a payload whose shape did not match expectations.
func NewParseError(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeParse, Message: fmt.Sprintf(format, args...)}
}

// NewConfigurationError reports a setup problem, e.g. an unregistered source.
func NewConfigurationError(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NewStorageError reports a repository failure.
func NewStorageError(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeStorage, Message: fmt.Sprintf(format, args...)}
}

func isType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// IsFetch reports whether err is a transport/HTTP failure.
func IsFetch(err error) bool { return isType(err, ErrorTypeFetch) }

// IsParse reports whether err is a payload shape mismatch.
func IsParse(err error) bool { return isType(err, ErrorTypeParse) }

// IsConfiguration reports whether err is a setup problem.
func IsConfiguration(err error) bool { return isType(err, ErrorTypeConfiguration) }

// IsRetryable reports whether re-running the operation may succeed without a
// code change. Parse and configuration failures never are.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrorTypeFetch, ErrorTypeStorage:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode reports whether an HTTP status is worth retrying.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error, no response
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
