package render

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// fakeDot writes a shell script standing in for the dot binary. It echoes its
// arguments followed by stdin, and fails with a Graphviz-style message when
// the input contains "bad".
func fakeDot(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	script := `#!/bin/sh
input=$(cat)
case "$input" in
  *bad*) echo "Error: <stdin>: syntax error in line 1 near 'bad'" >&2; exit 1 ;;
  *slow*) sleep 5 ;;
esac
printf '%s|%s' "$*" "$input"
`
	path := filepath.Join(t.TempDir(), "dot")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewExecEngineRequiresPath(t *testing.T) {
	if _, err := NewExecEngine(ExecConfig{}); err == nil {
		t.Error("NewExecEngine() should reject an empty binary path")
	}
}

func TestExecEngineSuccess(t *testing.T) {
	e, err := NewExecEngine(ExecConfig{BinaryPath: fakeDot(t), Args: []string{"-Gdpi=96"}})
	if err != nil {
		t.Fatal(err)
	}

	out, err := e.Compile(context.Background(), "digraph{a->b}", SVG, LayoutFdp)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got, want := string(out), "-Gdpi=96 -Tsvg -Kfdp|digraph{a->b}"; got != want {
		t.Errorf("Compile() = %q, want %q", got, want)
	}
}

func TestExecEngineDiagnostic(t *testing.T) {
	e, _ := NewExecEngine(ExecConfig{BinaryPath: fakeDot(t)})

	_, err := e.Compile(context.Background(), "digraph{bad}", PNG, LayoutDot)
	var diag *DiagnosticError
	if !stderrors.As(err, &diag) {
		t.Fatalf("Compile() error = %v, want diagnostic", err)
	}
	if !strings.Contains(diag.Message, "syntax error in line 1") {
		t.Errorf("diagnostic = %q", diag.Message)
	}
}

func TestExecEngineMissingBinary(t *testing.T) {
	e, _ := NewExecEngine(ExecConfig{BinaryPath: filepath.Join(t.TempDir(), "no-such-dot")})

	_, err := e.Compile(context.Background(), "digraph{}", PNG, LayoutDot)
	if err == nil {
		t.Fatal("Compile() should fail for a missing binary")
	}
	var diag *DiagnosticError
	if stderrors.As(err, &diag) {
		t.Error("a missing binary is an engine error, not a diagnostic")
	}
}

func TestExecEngineTimeout(t *testing.T) {
	e, _ := NewExecEngine(ExecConfig{BinaryPath: fakeDot(t), Timeout: 100 * time.Millisecond})

	_, err := e.Compile(context.Background(), "digraph{slow}", PNG, LayoutDot)
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Compile() error = %v, want deadline exceeded", err)
	}
}
