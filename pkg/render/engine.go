package render

import (
	"context"
	"strings"
)

// Engine compiles DOT source into an artifact.
//
// Compile returns a [*DiagnosticError] when the engine rejects the source.
// Any other error is a failure of the engine itself. Implementations must be
// safe for concurrent use.
type Engine interface {
	Compile(ctx context.Context, source string, format Format, layout Layout) ([]byte, error)
	Name() string
}

// DiagnosticError carries the engine's description of why a source was rejected.
type DiagnosticError struct {
	Message string
}

func (e *DiagnosticError) Error() string { return e.Message }

// diagnostic builds a DiagnosticError, falling back to fallback when msg is blank.
// The message is otherwise returned exactly as the engine produced it.
func diagnostic(msg, fallback string) *DiagnosticError {
	if strings.TrimSpace(msg) == "" {
		msg = fallback
	}
	return &DiagnosticError{Message: msg}
}

// EngineFunc adapts a function to the [Engine] interface.
type EngineFunc func(ctx context.Context, source string, format Format, layout Layout) ([]byte, error)

// Compile calls f.
func (f EngineFunc) Compile(ctx context.Context, source string, format Format, layout Layout) ([]byte, error) {
	return f(ctx, source, format, layout)
}

// Name returns "func".
func (f EngineFunc) Name() string { return "func" }
