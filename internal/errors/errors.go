package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the structured error type carried across package boundaries.
// It pairs an ErrorCode with a human-readable message, an optional wrapped
// cause, and optional key/value context for diagnostics.
type Error struct {
	// Code classifies the error condition.
	Code ErrorCode

	// Message is the human-readable description of the failure.
	Message string

	// Context carries additional diagnostic key/value pairs.
	// May be nil when no context was attached.
	Context map[string]interface{}

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
// The rendered form is "CODE: message" with the cause appended when present.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause so the error works with errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the given code and a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewWithContext creates a new Error with the given code, message, and
// diagnostic context.
func NewWithContext(code ErrorCode, message string, context map[string]interface{}) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: context,
	}
}

// Wrap wraps an existing error with a code and message.
// Returns nil if err is nil so call sites can wrap unconditionally.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapWithContext wraps an existing error with a code, message, and
// diagnostic context. Returns nil if err is nil.
func WrapWithContext(err error, code ErrorCode, message string, context map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Context: context,
		Err:     err,
	}
}

// GetCode extracts the ErrorCode from an error chain.
// It returns the code of the outermost *Error found, or CodeUnknown when the
// chain contains no *Error.
func GetCode(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode reports whether any error in the chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}
