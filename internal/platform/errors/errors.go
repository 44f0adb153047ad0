// Package errors provides the structured error type every layer shares:
// a stable machine code, a developer-facing message, optional field metadata
// and a wrapped cause
package errors

// Import the project errors package as perr so stdlib errors stays available

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies failures across services.
// Values are stable for wire compatibility; add sparingly
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodePanic marks panics recovered by middleware
	ErrorCodePanic

	// ErrorCodeUnavailable marks transient conditions where retry may succeed
	ErrorCodeUnavailable

	// ErrorCodeTooManyRequests marks rate limiting, ours or a provider's
	ErrorCodeTooManyRequests

	// ErrorCodeConflict marks editing conflicts beyond duplicate key
	ErrorCodeConflict

	// ErrorCodeUnauthorized marks missing or invalid credentials
	ErrorCodeUnauthorized

	// ErrorCodeForbidden marks access control failures
	ErrorCodeForbidden

	// ErrorCodeInvalidArgument marks bad input parameters
	ErrorCodeInvalidArgument

	// ErrorCodeValidation marks input data that failed validation
	ErrorCodeValidation

	// ErrorCodeJSON marks JSON parse or shape errors
	ErrorCodeJSON

	// ErrorCodeNotFound marks missing resources
	ErrorCodeNotFound

	// ErrorCodeDuplicateKey marks unique constraint violations
	ErrorCodeDuplicateKey

	// ErrorCodeDB marks general database errors
	ErrorCodeDB
)

// HTTPStatusCode turns an ErrorCode into an http status code
func HTTPStatusCode(c ErrorCode) int {
	switch c {
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeInvalidArgument:
		return http.StatusUnprocessableEntity
	case ErrorCodeDuplicateKey, ErrorCodeConflict:
		return http.StatusConflict
	case ErrorCodeValidation, ErrorCodeJSON:
		return http.StatusBadRequest
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodeForbidden:
		return http.StatusForbidden
	case ErrorCodeTooManyRequests:
		return http.StatusTooManyRequests
	case ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrNotFound is a sentinel for callers that only care about existence
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error carries a code, a message and an optional wrapped cause.
// msg is developer facing; code is machine facing; field names the offending
// input for validation-shaped errors
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
}

// Wire is the JSON-serializable form returned by the API
type Wire struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped cause, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// ToWire converts an *Error to its wire payload. The wrapped cause never
// crosses the API boundary
func (e *Error) ToWire() Wire { return Wire{Code: e.code, Message: e.msg, Field: e.field} }

// WireFrom converts any error into a Wire payload with best-effort mapping.
// A nil err yields the zero Wire
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return e.ToWire()
	}
	return Wire{Code: ErrorCodeUnknown, Message: err.Error()}
}

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HTTPStatus returns the mapped HTTP status for any error
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// HTTP bundles status and wire payload in one call for response writers
func HTTP(err error) (int, Wire) {
	if err == nil {
		return http.StatusOK, Wire{}
	}
	return HTTPStatus(err), WireFrom(err)
}

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// WithField attaches a field name copy-on-write. Foreign errors pass through
// unchanged
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// Sugar for the codes handlers raise directly

// NotFoundf returns a not found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// InvalidArgf returns an invalid argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// JSONErrf returns a JSON error
func JSONErrf(format string, a ...any) error { return Newf(ErrorCodeJSON, format, a...) }

// PanicErrf returns a panic error
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }

// Unauthorizedf returns an unauthorized error
func Unauthorizedf(format string, a ...any) error { return Newf(ErrorCodeUnauthorized, format, a...) }

// Retry semantics

// Retryable reports whether the error is a transient condition worth another
// attempt. Backed by the SQLite classification in sqlite.go
func Retryable(err error) bool { return IsRetryable(err) }
