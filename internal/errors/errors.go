// Package errors defines the coded error type shared by snaptest packages.
// Every fatal condition surfaced to the user carries a stable Code so the CLI
// can print it and pick an exit status without string matching.
package errors

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

// Code is a stable error code string.
type Code string

// Error codes.
const (
	EUsage    Code = "E_USAGE"
	EConfig   Code = "E_CONFIG"
	EParse    Code = "E_PARSE"
	ELaunch   Code = "E_LAUNCH"
	ETimeout  Code = "E_TIMEOUT"
	ECapture  Code = "E_CAPTURE"
	ENotFound Code = "E_NOT_FOUND"
	EStore    Code = "E_STORE"
	EInternal Code = "E_INTERNAL"
)

// SnapError is the standard error type for snaptest errors.
type SnapError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string
}

// Error returns "CODE: message".
func (e *SnapError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *SnapError) Unwrap() error {
	return e.Cause
}

// ExitCodeError wraps an error with an explicit process exit code.
type ExitCodeError struct {
	Err  error
	Code int
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// ExitCode returns the wrapped exit code.
func (e *ExitCodeError) ExitCode() int {
	return e.Code
}

// WithExitCode wraps err with a specific process exit code.
func WithExitCode(err error, code int) error {
	return &ExitCodeError{Err: err, Code: code}
}

// New creates a new SnapError with the given code and message.
func New(code Code, msg string) error {
	return &SnapError{Code: code, Msg: msg}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...any) error {
	return &SnapError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// NewWithDetails creates a new SnapError with code, message, and details.
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &SnapError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new SnapError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &SnapError{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails creates a new SnapError wrapping an underlying error with details.
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &SnapError{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the error code from an error, or "" if err carries none.
func GetCode(err error) Code {
	var se *SnapError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// AsSnapError returns (*SnapError, true) if err is or wraps a SnapError.
func AsSnapError(err error) (*SnapError, bool) {
	var se *SnapError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

// ExitCode returns the process exit code for err.
// Returns 0 if err is nil, the explicit code of an ExitCodeError, 2 for
// E_USAGE and 1 for all other errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec *ExitCodeError
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	if GetCode(err) == EUsage {
		return 2
	}
	return 1
}

// Print writes err to w in the stable stderr format:
//
//	error_code: <CODE>
//	<message>: <cause>
//
// Errors without a code are printed verbatim.
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	se, ok := AsSnapError(err)
	if !ok {
		_, _ = fmt.Fprintln(w, err.Error())
		return
	}
	_, _ = fmt.Fprintf(w, "error_code: %s\n", se.Code)
	_, _ = fmt.Fprintln(w, Describe(se))
	for _, k := range sortedKeys(se.Details) {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", k, se.Details[k])
	}
}

// Describe returns the message of err followed by its cause, without the code.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	se, ok := AsSnapError(err)
	if !ok {
		return err.Error()
	}
	if se.Cause != nil {
		return se.Msg + ": " + se.Cause.Error()
	}
	return se.Msg
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
