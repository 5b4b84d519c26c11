package render

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecConfig configures an [ExecEngine].
type ExecConfig struct {
	// BinaryPath is the dot executable to run. It is used as given; no PATH
	// lookup or environment mutation takes place.
	BinaryPath string

	// Timeout bounds a single compile. Zero means no limit beyond ctx.
	Timeout time.Duration

	// Args are extra command-line arguments placed before -T and -K.
	Args []string
}

// ExecEngine renders DOT by running an external Graphviz binary.
type ExecEngine struct {
	cfg ExecConfig
}

// NewExecEngine creates an engine that runs cfg.BinaryPath.
func NewExecEngine(cfg ExecConfig) (*ExecEngine, error) {
	if strings.TrimSpace(cfg.BinaryPath) == "" {
		return nil, fmt.Errorf("exec engine: binary path is required")
	}
	return &ExecEngine{cfg: cfg}, nil
}

// Name returns "exec".
func (e *ExecEngine) Name() string { return "exec" }

// Compile pipes source into the binary. A non-zero exit becomes a diagnostic
// holding the binary's stderr; failing to start it, or hitting the timeout,
// is an engine error.
func (e *ExecEngine) Compile(ctx context.Context, source string, format Format, layout Layout) ([]byte, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, e.cfg.Args...), "-T"+string(format), "-K"+string(layout))
	cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, args...)
	cmd.Stdin = strings.NewReader(source)
	cmd.WaitDelay = 500 * time.Millisecond

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s: %w", e.cfg.BinaryPath, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return nil, diagnostic(errBuf.String(), fmt.Sprintf("%s exited with status %d", e.cfg.BinaryPath, exitErr.ExitCode()))
		}
		return nil, fmt.Errorf("run %s: %w", e.cfg.BinaryPath, err)
	}
	return out.Bytes(), nil
}

var _ Engine = (*ExecEngine)(nil)
