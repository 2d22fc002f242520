package admissions

import (
	"errors"
	"fmt"

	"admissions/pkg/types"
)

type Code string

// OutcomeOK labels successful operations in metrics; it is never carried by an Error.
const OutcomeOK Code = "OK"

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeInvalidFormat Code = "INVALID_FORMAT"
	CodePinNotFound   Code = "PIN_NOT_FOUND"
	CodeNotFound      Code = "NOT_FOUND"
	CodePinUsed       Code = "PIN_ALREADY_USED_BY_OTHER"
	CodeConflict      Code = "CONFLICT"
	CodePinExpired    Code = "PIN_EXPIRED"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// Error is the coded failure returned by every Service operation. Message is safe
// to show to the caller; Err carries the underlying cause for logs only.
type Error struct {
	Code    Code
	Message string

	// Payment is set on PIN_EXPIRED so callers can still show the payment identity.
	Payment *types.Payment

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func validationError(format string, args ...any) *Error {
	return newError(CodeValidation, fmt.Sprintf(format, args...))
}

func internalError(msg string, err error) *Error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

// CodeOf returns the code carried by err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// AsError unwraps err into an *Error, wrapping uncoded errors as internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internalError("unexpected error", err)
}
