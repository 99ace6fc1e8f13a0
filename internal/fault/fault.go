// Package fault defines the error taxonomy shared by subdevice components.
package fault

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

// Error codes.
const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeOutOfRange      Code = "OUT_OF_RANGE"
	CodeDetection       Code = "DETECTION_FAILED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeReadOnly        Code = "READ_ONLY"
	CodeTruncated       Code = "TRUNCATED"
	CodeAlreadyExists   Code = "ALREADY_EXISTS"
	CodeInvalidLink     Code = "INVALID_LINK"
)

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
	ErrOutOfRange      = &Error{Code: CodeOutOfRange}
	ErrDetection       = &Error{Code: CodeDetection}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrReadOnly        = &Error{Code: CodeReadOnly}
	ErrTruncated       = &Error{Code: CodeTruncated}
	ErrAlreadyExists   = &Error{Code: CodeAlreadyExists}
	ErrInvalidLink     = &Error{Code: CodeInvalidLink}
)

// Error is a coded error with optional context and cause.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Cause   error          `json:"-"`
}

// New creates an error without a cause.
func New(code Code, message string, context map[string]any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: context,
	}
}

// Wrap creates an error carrying cause.
func Wrap(code Code, message string, cause error, context map[string]any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: context,
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
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

// Is matches any *Error with the same code. An OUT_OF_RANGE error is also an
// INVALID_ARGUMENT.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return e.Code == CodeOutOfRange && t.Code == CodeInvalidArgument
}

// HasCode reports whether err or anything it wraps carries code.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}
