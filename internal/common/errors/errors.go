// Package errors defines the error kinds surfaced by GFM handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	ErrCodePrecondition = "PRECONDITION"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeExecution    = "EXECUTION"
	ErrCodeExternal     = "EXTERNAL"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeInternal     = "INTERNAL"
)

// AppError carries a user-facing message together with the HTTP status it maps to.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"http_status"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Precondition reports a missing or invalid input the caller can fix.
func Precondition(message string) *AppError {
	return &AppError{Code: ErrCodePrecondition, Message: message, HTTPStatus: http.StatusBadRequest}
}

// Preconditionf is Precondition with formatting.
func Preconditionf(format string, args ...any) *AppError {
	return Precondition(fmt.Sprintf(format, args...))
}

// NotFound reports a missing resource.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// Conflict reports a stale write, e.g. an outdated rules etag.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

// Execution wraps a failed external tool invocation.
func Execution(message string, err error) *AppError {
	return &AppError{Code: ErrCodeExecution, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// External wraps an SDK or remote API failure.
func External(message string, err error) *AppError {
	return &AppError{Code: ErrCodeExternal, Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

// Timeout reports an operation that exceeded its deadline.
func Timeout(message string, err error) *AppError {
	return &AppError{Code: ErrCodeTimeout, Message: message, HTTPStatus: http.StatusGatewayTimeout, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// Wrap prefixes message onto err, keeping the kind when err is already an AppError.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:       appErr.Code,
			Message:    fmt.Sprintf("%s: %s", message, appErr.Message),
			HTTPStatus: appErr.HTTPStatus,
			Err:        err,
		}
	}
	return Internal(message, err)
}

// As returns the AppError in err's chain, or an INTERNAL one wrapping err.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err.Error(), err)
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound reports whether err is a NOT_FOUND AppError.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsTimeout reports whether err is a TIMEOUT AppError.
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsPrecondition reports whether err is a PRECONDITION AppError.
func IsPrecondition(err error) bool { return hasCode(err, ErrCodePrecondition) }
