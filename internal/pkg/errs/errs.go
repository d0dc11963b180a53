/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and carries a business code, a user-facing message, the HTTP status that produced it
(zero when no response was received) and an optional wrapped cause.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"localmart/internal/pkg/logx"
)

// fallbackMessage replaces a message template that was given no details to fill it.
const fallbackMessage = "Request failed."

// CustomError is the error type surfaced by every public operation of the client core.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the short, human-readable description safe to show to a user.
	Message string

	// Status is the HTTP status code that produced this error, or 0 when the
	// error originated locally (validation, transport, socket state).
	Status int

	// Err is the underlying cause. It is never part of Message.
	Err error
}

// Error implements the standard Go error interface.
func (e *CustomError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("error code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("error code %d: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError constructs a new *CustomError from a predefined error code.
// Details fill printf-style placeholders in the message template. For ErrUnknown
// an error detail is logged and kept as the cause instead. Unknown codes
// degrade to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]
	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)
		unknownErr := errorMap[ErrUnknown]
		return &unknownErr
	}

	customErr := templateErr

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			logx.Error(originalErr, "Handling ErrUnknown with underlying error")
			customErr.Err = originalErr
			return &customErr
		}
	}

	if strings.Contains(customErr.Message, "%") {
		if len(details) == 0 {
			customErr.Message = fallbackMessage
		} else {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		}
	} else if len(details) > 0 {
		logx.Warn("Details provided for error, but message template has no formatting placeholders. Details ignored.",
			"code", code,
		)
	}

	return &customErr
}

// NewLocalError is NewError for a failure detected before any request was sent.
// Its Status is always 0.
func NewLocalError(code int, details ...any) *CustomError {
	customErr := NewError(code, details...)
	customErr.Status = 0
	return customErr
}

// Wrap constructs a local error for code and records cause as its underlying error.
// The cause's text never reaches Message. Like NewLocalError its Status is 0, so
// Status stays reserved for errors built from a received response.
func Wrap(code int, cause error) *CustomError {
	customErr := NewLocalError(code)
	customErr.Err = cause
	return customErr
}

// FromResponse classifies a non-2xx HTTP response. message is the error text the
// server supplied, or empty when the body could not be parsed.
func FromResponse(status int, message string) *CustomError {
	var customErr *CustomError

	switch {
	case status == http.StatusUnauthorized:
		customErr = NewError(ErrUnauthorized)
		if message != "" {
			customErr.Message = message
		}
	case status == http.StatusNotFound:
		customErr = NewError(ErrNotFound)
		if message != "" {
			customErr.Message = message
		}
	case message == "":
		customErr = NewError(ErrUnknown)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		customErr = NewError(ErrValidation, message)
	case status == http.StatusForbidden:
		customErr = NewError(ErrForbidden)
		customErr.Message = message
	default:
		customErr = NewError(ErrServer, message)
	}

	customErr.Status = status
	return customErr
}

// As extracts a *CustomError from err's chain.
func As(err error) (*CustomError, bool) {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr, true
	}
	return nil, false
}

// IsCode reports whether err is a *CustomError carrying code.
func IsCode(err error, code int) bool {
	customErr, ok := As(err)
	return ok && customErr.Code == code
}

// IsUnauthorized reports whether err signals an expired or missing session.
func IsUnauthorized(err error) bool {
	return IsCode(err, ErrUnauthorized)
}

// Message returns the user-facing message of err, falling back to the generic
// unknown-error text for errors that are not a *CustomError.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if customErr, ok := As(err); ok {
		return customErr.Message
	}
	return errorMap[ErrUnknown].Message
}
