package errs

import (
	"errors"
)

// Code classifies why a check run failed.
type Code string

const (
	// Connectivity means the target could not be reached at all.
	Connectivity Code = "connectivity"
	// SelectorNotFound means a probe exhausted every candidate selector.
	SelectorNotFound Code = "selector_not_found"
	// Timeout means a bounded wait expired.
	Timeout Code = "timeout"
	// AssertionMismatch means a URL or page content did not have the expected shape.
	AssertionMismatch Code = "assertion_mismatch"
	Internal          Code = "internal"
)

// Error is a coded check error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	return Internal
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the message recorded in results for err.
// Untyped errors keep their own text since run bundles are local artifacts.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return err.Error()
}

// Label returns a short human label for a code, used in reports.
func Label(code Code) string {
	switch code {
	case Connectivity:
		return "Connectivity failure"
	case SelectorNotFound:
		return "Selector not found"
	case Timeout:
		return "Timeout"
	case AssertionMismatch:
		return "Assertion mismatch"
	default:
		return "Internal error"
	}
}
