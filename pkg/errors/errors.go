// Package errors provides structured error types for text2block.
//
// Every terminal failure of the diagram pipeline is reported as an [*Error]
// carrying a machine-readable [Code], the [Stage] that produced it, and,
// where relevant, the number of render attempts made and the last engine
// diagnostic. Callers branch on the code rather than on message text:
//
//	res, err := svc.Produce(ctx, intent, dest)
//	if errors.Is(err, errors.ErrCodeRetryBudgetExhausted) {
//	    fmt.Println(errors.DiagnosticOf(err))
//	}
//
// # Error Codes
//
//   - MALFORMED_OUTPUT: generator text contained no graph keyword
//   - RENDER_FAILURE: the engine rejected a description
//   - RETRY_BUDGET_EXHAUSTED: every attempt failed to render
//   - COLLABORATOR_ERROR: the generator or engine failed at the transport level
//   - INVALID_*: input or configuration validation failures
//   - CANCELED: the caller abandoned the request
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Pipeline errors
	ErrCodeMalformedOutput      Code = "MALFORMED_OUTPUT"
	ErrCodeRetryBudgetExhausted Code = "RETRY_BUDGET_EXHAUSTED"
	ErrCodeCollaborator         Code = "COLLABORATOR_ERROR"
	ErrCodeCanceled             Code = "CANCELED"

	// ErrCodeRenderFailure is reserved for a single engine rejection raised
	// as an error. The renderer reports rejections as a diagnostic on
	// render.Result and the repair loop ends in RETRY_BUDGET_EXHAUSTED, so
	// nothing in this module returns it.
	ErrCodeRenderFailure Code = "RENDER_FAILURE"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidLayout Code = "INVALID_LAYOUT"

	// Resource errors
	ErrCodeNotFound    Code = "NOT_FOUND"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Stage names the pipeline step an error originated from.
type Stage string

const (
	StageGenerate Stage = "generate"
	StageRender   Stage = "render"
	StageRepair   Stage = "repair"
	StageExplain  Stage = "explain"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code       Code   // Machine-readable error code
	Message    string // Human-readable message
	Cause      error  // Underlying error (optional)
	Stage      Stage  // Pipeline stage (optional)
	Attempts   int    // Render attempts made before failing (0 if none)
	Diagnostic string // Last engine diagnostic, verbatim (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Stage != "" {
		fmt.Fprintf(&b, " [%s]", e.Stage)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithStage sets the pipeline stage and returns e.
func (e *Error) WithStage(s Stage) *Error {
	e.Stage = s
	return e
}

// WithAttempts records the number of render attempts and returns e.
func (e *Error) WithAttempts(n int) *Error {
	e.Attempts = n
	return e
}

// WithDiagnostic records the last engine diagnostic and returns e.
func (e *Error) WithDiagnostic(d string) *Error {
	e.Diagnostic = d
	return e
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// Only the outermost *Error in the chain is considered, so a repair failure
// wrapping a generator error reports the repair code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// StageOf returns the stage recorded on err, or "" if none.
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

// AttemptsOf returns the number of render attempts recorded on err.
func AttemptsOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Attempts
	}
	return 0
}

// DiagnosticOf returns the last engine diagnostic recorded on err.
func DiagnosticOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Diagnostic
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RateLimitedError provides additional information for rate-limited responses.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}
