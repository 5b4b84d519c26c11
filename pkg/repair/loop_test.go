package repair

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/text2block/pkg/dot"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/render"
)

// scriptedRenderer returns the scripted results in order. A step with a
// non-empty diagnostic fails; an empty step succeeds; err steps return an error.
type scriptedRenderer struct {
	mu    sync.Mutex
	steps []step
	seen  []string
}

type step struct {
	diagnostic string
	err        error
}

func (r *scriptedRenderer) Render(_ context.Context, desc dot.Description, dest render.Destination) (render.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := len(r.seen)
	r.seen = append(r.seen, desc.String())
	if i >= len(r.steps) {
		return render.Result{}, fmt.Errorf("unexpected render call %d", i+1)
	}
	s := r.steps[i]
	if s.err != nil {
		return render.Result{}, s.err
	}
	if s.diagnostic != "" {
		_ = dest.Remove()
		return render.Result{Diagnostic: s.diagnostic}, nil
	}
	data := []byte("IMG:" + desc.String())
	if err := dest.Write(data); err != nil {
		return render.Result{}, err
	}
	return render.Result{Artifact: &render.Artifact{Location: dest.Location(), Format: render.PNG, Data: data}}, nil
}

func (r *scriptedRenderer) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

type fixCall struct {
	description string
	diagnostic  string
}

type recordingFixer struct {
	outputs []string
	err     error
	calls   []fixCall
}

func (f *recordingFixer) fix(_ context.Context, d dot.Description, diagnostic string) (string, error) {
	f.calls = append(f.calls, fixCall{description: d.String(), diagnostic: diagnostic})
	if f.err != nil {
		return "", f.err
	}
	i := len(f.calls) - 1
	if i < len(f.outputs) {
		return f.outputs[i], nil
	}
	return fmt.Sprintf("digraph { fixed%d }", i+1), nil
}

func newLoop(t *testing.T, r Renderer, max int) *Loop {
	t.Helper()
	l, err := New(r, Options{MaxAttempts: max})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l
}

var initial = dot.MustSanitize("digraph { a -> }")

func TestResolveFirstAttemptSucceeds(t *testing.T) {
	r := &scriptedRenderer{steps: []step{{}}}
	f := &recordingFixer{}
	dest := render.NewMemoryDestination("mem")

	out, err := newLoop(t, r, 3).Resolve(context.Background(), initial, f.fix, dest)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if r.calls() != 1 {
		t.Errorf("renders = %d, want 1", r.calls())
	}
	if len(f.calls) != 0 {
		t.Errorf("fix called %d times, want 0", len(f.calls))
	}
	if out.Artifact == nil || string(dest.Bytes()) != "IMG:"+initial.String() {
		t.Errorf("artifact = %+v, dest = %q", out.Artifact, dest.Bytes())
	}
	if len(out.Attempts) != 1 || !out.Attempts[0].Succeeded {
		t.Errorf("attempts = %+v", out.Attempts)
	}
}

func TestResolveRepairsUntilSuccess(t *testing.T) {
	r := &scriptedRenderer{steps: []step{
		{diagnostic: "syntax error in line 1 near '}'"},
		{diagnostic: "Error: unknown layout"},
		{},
	}}
	f := &recordingFixer{outputs: []string{
		"Here you go:\n```\ndigraph { a -> b }\n```",
		"digraph { a -> c }",
	}}
	dest := render.NewMemoryDestination("mem")

	out, err := newLoop(t, r, 3).Resolve(context.Background(), initial, f.fix, dest)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if r.calls() != 3 {
		t.Errorf("renders = %d, want 3", r.calls())
	}
	if len(f.calls) != 2 {
		t.Fatalf("fix calls = %d, want 2", len(f.calls))
	}

	// Each repair sees the description that failed and its diagnostic verbatim.
	if f.calls[0].description != initial.String() || f.calls[0].diagnostic != "syntax error in line 1 near '}'" {
		t.Errorf("first fix call = %+v", f.calls[0])
	}
	if f.calls[1].description != "digraph { a -> b }\n   " || f.calls[1].diagnostic != "Error: unknown layout" {
		t.Errorf("second fix call = %+v", f.calls[1])
	}

	// Repaired output is sanitized before rendering.
	if r.seen[1] != "digraph { a -> b }\n   " {
		t.Errorf("second render saw %q", r.seen[1])
	}
	if out.Description.String() != "digraph { a -> c }" {
		t.Errorf("final description = %q", out.Description)
	}
	if len(out.Attempts) != 3 || out.Attempts[0].Succeeded || out.Attempts[1].Succeeded || !out.Attempts[2].Succeeded {
		t.Errorf("attempts = %+v", out.Attempts)
	}
	if out.LastDiagnostic() != "Error: unknown layout" {
		t.Errorf("LastDiagnostic() = %q", out.LastDiagnostic())
	}
}

func TestResolveBudgetExhausted(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		wantFixes int
	}{
		{"single attempt never repairs", 1, 0},
		{"three attempts repair twice", 3, 2},
		{"five attempts repair four times", 5, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := make([]step, tt.max)
			for i := range steps {
				steps[i] = step{diagnostic: fmt.Sprintf("diag %d", i+1)}
			}
			r := &scriptedRenderer{steps: steps}
			f := &recordingFixer{}
			dest := render.NewMemoryDestination("mem")
			_ = dest.Write([]byte("stale"))

			out, err := newLoop(t, r, tt.max).Resolve(context.Background(), initial, f.fix, dest)
			if !errors.Is(err, errors.ErrCodeRetryBudgetExhausted) {
				t.Fatalf("Resolve() error = %v, want budget exhausted", err)
			}
			if r.calls() != tt.max {
				t.Errorf("renders = %d, want %d", r.calls(), tt.max)
			}
			if len(f.calls) != tt.wantFixes {
				t.Errorf("fix calls = %d, want %d", len(f.calls), tt.wantFixes)
			}
			if got := errors.AttemptsOf(err); got != tt.max {
				t.Errorf("AttemptsOf() = %d, want %d", got, tt.max)
			}
			if got, want := errors.DiagnosticOf(err), fmt.Sprintf("diag %d", tt.max); got != want {
				t.Errorf("DiagnosticOf() = %q, want %q", got, want)
			}
			if errors.StageOf(err) != errors.StageRender {
				t.Errorf("stage = %q", errors.StageOf(err))
			}
			if out.Artifact != nil || dest.Bytes() != nil {
				t.Error("no artifact may remain after failure")
			}
			if len(out.Attempts) != tt.max {
				t.Errorf("attempt history = %d entries", len(out.Attempts))
			}
		})
	}
}

func TestResolveRepairFailures(t *testing.T) {
	upstream := stderrors.New("503 service unavailable")

	tests := []struct {
		name     string
		fixer    *recordingFixer
		wantCode errors.Code
		cause    error
	}{
		{
			name:     "generator error",
			fixer:    &recordingFixer{err: upstream},
			wantCode: errors.ErrCodeCollaborator,
			cause:    upstream,
		},
		{
			name:     "output without graph keyword",
			fixer:    &recordingFixer{outputs: []string{"I'm sorry, I can't fix that."}},
			wantCode: errors.ErrCodeMalformedOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &scriptedRenderer{steps: []step{{diagnostic: "bad edge"}, {}}}
			dest := render.NewMemoryDestination("mem")

			out, err := newLoop(t, r, 3).Resolve(context.Background(), initial, tt.fixer.fix, dest)
			if !errors.Is(err, tt.wantCode) {
				t.Fatalf("Resolve() error = %v, want %s", err, tt.wantCode)
			}
			if errors.StageOf(err) != errors.StageRepair {
				t.Errorf("stage = %q, want repair", errors.StageOf(err))
			}
			if !strings.Contains(err.Error(), "repair failed") {
				t.Errorf("error %q should say repair failed", err)
			}
			if errors.DiagnosticOf(err) != "bad edge" {
				t.Errorf("DiagnosticOf() = %q", errors.DiagnosticOf(err))
			}
			if tt.cause != nil && !stderrors.Is(err, tt.cause) {
				t.Error("generator error should be preserved as cause")
			}
			if r.calls() != 1 {
				t.Errorf("renders = %d, want 1 (no retry after repair failure)", r.calls())
			}
			if len(tt.fixer.calls) != 1 {
				t.Errorf("fix calls = %d, want 1", len(tt.fixer.calls))
			}
			if out.Artifact != nil || dest.Bytes() != nil {
				t.Error("no artifact may remain after failure")
			}
		})
	}
}

func TestResolveEngineError(t *testing.T) {
	boom := stderrors.New("dot: not found")
	r := &scriptedRenderer{steps: []step{{err: boom}}}
	f := &recordingFixer{}

	_, err := newLoop(t, r, 3).Resolve(context.Background(), initial, f.fix, render.NewMemoryDestination("m"))
	if !errors.Is(err, errors.ErrCodeCollaborator) {
		t.Fatalf("Resolve() error = %v, want collaborator", err)
	}
	if errors.StageOf(err) != errors.StageRender {
		t.Errorf("stage = %q, want render", errors.StageOf(err))
	}
	if errors.AttemptsOf(err) != 1 {
		t.Errorf("attempts = %d", errors.AttemptsOf(err))
	}
	if len(f.calls) != 0 {
		t.Error("engine errors must not trigger repair")
	}
}

func TestResolveCanceledDuringRepair(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &scriptedRenderer{steps: []step{{diagnostic: "bad"}, {}}}
	fix := func(context.Context, dot.Description, string) (string, error) {
		cancel()
		return "digraph { ok }", nil
	}
	dest := render.NewMemoryDestination("mem")

	out, err := newLoop(t, r, 3).Resolve(ctx, initial, fix, dest)
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Fatalf("Resolve() error = %v, want canceled", err)
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Error("context.Canceled should be in the chain")
	}
	if r.calls() != 1 {
		t.Errorf("renders = %d, want 1 (stop before next attempt)", r.calls())
	}
	if out.Artifact != nil || dest.Bytes() != nil {
		t.Error("no artifact may remain after cancellation")
	}
}

func TestResolveAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &scriptedRenderer{steps: []step{{}}}
	_, err := newLoop(t, r, 3).Resolve(ctx, initial, (&recordingFixer{}).fix, render.NewMemoryDestination("m"))
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Fatalf("Resolve() error = %v, want canceled", err)
	}
	if r.calls() != 0 {
		t.Errorf("renders = %d, want 0", r.calls())
	}
}

func TestNewValidation(t *testing.T) {
	r := &scriptedRenderer{}
	for _, max := range []int{0, -1} {
		if _, err := New(r, Options{MaxAttempts: max}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
			t.Errorf("New(max=%d) error = %v", max, err)
		}
	}
	if _, err := New(nil, Options{MaxAttempts: 1}); err == nil {
		t.Error("New(nil renderer) should fail")
	}
}

func TestResolveInputValidation(t *testing.T) {
	r := &scriptedRenderer{steps: []step{{}}}

	if _, err := newLoop(t, r, 2).Resolve(context.Background(), dot.Description{}, (&recordingFixer{}).fix, render.NewMemoryDestination("m")); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("zero description error = %v", err)
	}
	if _, err := newLoop(t, r, 2).Resolve(context.Background(), initial, nil, render.NewMemoryDestination("m")); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("nil fix error = %v", err)
	}
	if r.calls() != 0 {
		t.Error("invalid input must not reach the renderer")
	}

	// A single-attempt loop never repairs, so fix may be nil.
	if _, err := newLoop(t, r, 1).Resolve(context.Background(), initial, nil, render.NewMemoryDestination("m")); err != nil {
		t.Errorf("single attempt with nil fix error = %v", err)
	}
}

func TestResolveHelper(t *testing.T) {
	r := &scriptedRenderer{steps: []step{{diagnostic: "x"}, {}}}
	f := &recordingFixer{}

	out, err := Resolve(context.Background(), r, initial, 2, f.fix, render.NewMemoryDestination("m"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(out.Attempts) != 2 || len(f.calls) != 1 {
		t.Errorf("attempts = %d, fixes = %d", len(out.Attempts), len(f.calls))
	}
	if _, err := Resolve(context.Background(), r, initial, 0, f.fix, render.NewMemoryDestination("m")); err == nil {
		t.Error("Resolve() with zero attempts should fail")
	}
}

func TestResolveConcurrentRunsShareNothing(t *testing.T) {
	engine := render.EngineFunc(func(_ context.Context, source string, _ render.Format, _ render.Layout) ([]byte, error) {
		if strings.Contains(source, "broken") {
			return nil, &render.DiagnosticError{Message: "broken: " + source}
		}
		return []byte(source), nil
	})
	loop := newLoop(t, render.New(engine, render.Config{}), 2)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := dot.MustSanitize(fmt.Sprintf("digraph { broken%d }", i))
			fix := func(_ context.Context, d dot.Description, diag string) (string, error) {
				if !strings.Contains(diag, d.String()) {
					return "", fmt.Errorf("run %d saw foreign diagnostic %q", i, diag)
				}
				return fmt.Sprintf("digraph { ok%d }", i), nil
			}
			dest := render.NewMemoryDestination(fmt.Sprint(i))
			out, err := loop.Resolve(context.Background(), start, fix, dest)
			if err != nil {
				errs <- err
				return
			}
			if want := fmt.Sprintf("digraph { ok%d }", i); string(dest.Bytes()) != want || len(out.Attempts) != 2 {
				errs <- fmt.Errorf("run %d: dest %q attempts %d", i, dest.Bytes(), len(out.Attempts))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
