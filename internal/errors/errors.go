// Package errors provides sentinel errors, detailed error formatting and exit
// codes for the lto2 driver.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the four failure classes of a run.
var (
	// ErrParse indicates a malformed command-line value, such as a resolution
	// specifier or an optimization level.
	ErrParse = errors.New("parse error")

	// ErrReconcile indicates the resolution table did not match the symbols
	// enumerated by the input modules.
	ErrReconcile = errors.New("symbol resolution mismatch")

	// ErrIO indicates a file could not be read, created or written.
	ErrIO = errors.New("i/o error")

	// ErrEngine indicates the LTO engine rejected a module or failed the run.
	ErrEngine = errors.New("lto engine error")
)

// Exit codes. Every failure of the driver maps to ExitGeneralError.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates the command failed.
	ExitGeneralError = 1
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int

	// Printed reports whether the command layer already printed the error.
	Printed bool
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given error and exit code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// ExitCodeFromError determines the exit code for an error.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitGeneralError
}

// DetailError captures structured error information.
type DetailError struct {
	// Type is the error category (required).
	Type string

	// Message is the specific description (required).
	Message string

	// Location is the file the error refers to (optional).
	Location string

	// Context contains additional key-value context (optional).
	Context map[string]string

	// Hint provides actionable guidance (optional).
	Hint string

	// Cause is the underlying error (optional).
	Cause error

	// Kind is the sentinel the error is classified as (optional).
	Kind error
}

// Error implements the error interface. The format is a single line so that
// diagnostics stay greppable in build logs.
func (e *DetailError) Error() string {
	var b strings.Builder

	if e.Location != "" {
		b.WriteString(e.Location)
		b.WriteString(": ")
	}
	b.WriteString(e.Type)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	for _, k := range sortedKeys(e.Context) {
		fmt.Fprintf(&b, " %s=%s", k, e.Context[k])
	}
	if e.Hint != "" {
		b.WriteString(" (hint: ")
		b.WriteString(e.Hint)
		b.WriteString(")")
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *DetailError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel this error was classified as.
func (e *DetailError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewIOError creates an I/O error naming the path and the operation.
func NewIOError(path, op string, cause error) error {
	msg := op
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", op, cause)
	}
	return &DetailError{
		Type:     "i/o failed",
		Message:  msg,
		Location: path,
		Cause:    cause,
		Kind:     ErrIO,
	}
}

// NewEngineError creates an engine error. location names the offending module
// and may be empty for run-level failures.
func NewEngineError(location, message string, cause error) error {
	msg := message
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", message, cause)
	}
	return &DetailError{
		Type:     "lto failed",
		Message:  msg,
		Location: location,
		Cause:    cause,
		Kind:     ErrEngine,
	}
}

// NewParseError creates an invalid-argument error with an optional hint.
func NewParseError(message, hint string) error {
	return &DetailError{
		Type:    "invalid argument",
		Message: message,
		Hint:    hint,
		Kind:    ErrParse,
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
