package repair

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/text2block/pkg/dot"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/observability"
	"github.com/matzehuels/text2block/pkg/render"
)

// FixFunc asks the generator for a corrected version of description given the
// engine diagnostic. It returns raw generator text, which the loop sanitizes.
type FixFunc func(ctx context.Context, description dot.Description, diagnostic string) (string, error)

// Renderer renders a description to a destination. [*render.Renderer]
// satisfies it.
type Renderer interface {
	Render(ctx context.Context, desc dot.Description, dest render.Destination) (render.Result, error)
}

// Attempt records one render of the loop.
type Attempt struct {
	Number      int             `json:"number"`
	Description dot.Description `json:"description"`
	Succeeded   bool            `json:"succeeded"`
	Diagnostic  string          `json:"diagnostic,omitempty"`
	Duration    time.Duration   `json:"duration"`
}

// Outcome is the result of a loop run. On failure Artifact is nil and
// Attempts still lists every render that was made.
type Outcome struct {
	Artifact    *render.Artifact
	Description dot.Description
	Attempts    []Attempt
	Duration    time.Duration
}

// LastDiagnostic returns the diagnostic of the final failed attempt, or "".
func (o *Outcome) LastDiagnostic() string {
	for i := len(o.Attempts) - 1; i >= 0; i-- {
		if !o.Attempts[i].Succeeded {
			return o.Attempts[i].Diagnostic
		}
	}
	return ""
}

// Options configures a [Loop].
type Options struct {
	// MaxAttempts bounds the number of renders per run. Must be at least 1.
	MaxAttempts int

	// Hooks receives loop events. Nil fields are no-ops.
	Hooks observability.Hooks

	// Logger receives progress messages. Nil uses log.Default().
	Logger *log.Logger
}

// Loop runs the repair state machine. It is stateless between runs.
type Loop struct {
	renderer    Renderer
	maxAttempts int
	hooks       observability.LoopHooks
	logger      *log.Logger
}

// New creates a loop rendering with r.
func New(r Renderer, opts Options) (*Loop, error) {
	if r == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "repair loop requires a renderer")
	}
	if opts.MaxAttempts < 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "max attempts must be at least 1, got %d", opts.MaxAttempts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Loop{
		renderer:    r,
		maxAttempts: opts.MaxAttempts,
		hooks:       opts.Hooks.WithDefaults().Loop,
		logger:      logger,
	}, nil
}

// Resolve is a one-shot helper that builds a Loop and runs it.
func Resolve(ctx context.Context, r Renderer, initial dot.Description, maxAttempts int, fix FixFunc, dest render.Destination) (*Outcome, error) {
	l, err := New(r, Options{MaxAttempts: maxAttempts})
	if err != nil {
		return nil, err
	}
	return l.Resolve(ctx, initial, fix, dest)
}

// MaxAttempts returns the loop's attempt budget.
func (l *Loop) MaxAttempts() int { return l.maxAttempts }

// Resolve renders initial, repairing it through fix until a render succeeds
// or the attempt budget is spent. The returned Outcome is never nil.
func (l *Loop) Resolve(ctx context.Context, initial dot.Description, fix FixFunc, dest render.Destination) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{Description: initial}

	err := l.run(ctx, initial, fix, dest, out)
	out.Duration = time.Since(start)
	if err != nil {
		out.Artifact = nil
		_ = dest.Remove()
	}

	l.hooks.OnResolveComplete(ctx, len(out.Attempts), out.Duration, err)
	return out, err
}

func (l *Loop) run(ctx context.Context, initial dot.Description, fix FixFunc, dest render.Destination, out *Outcome) error {
	if initial.IsZero() {
		return errors.New(errors.ErrCodeInvalidInput, "initial description is empty")
	}
	if fix == nil && l.maxAttempts > 1 {
		return errors.New(errors.ErrCodeInvalidInput, "a fix function is required when more than one attempt is allowed")
	}

	desc := initial
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return canceled(err, n-1)
		}
		out.Description = desc

		l.logger.Debug("rendering description", "attempt", n, "max", l.maxAttempts, "bytes", desc.Len())
		started := time.Now()
		res, err := l.renderer.Render(ctx, desc, dest)
		elapsed := time.Since(started)
		l.hooks.OnRenderComplete(ctx, n, elapsed, err == nil && res.Succeeded(), err)

		if err != nil {
			out.Attempts = append(out.Attempts, Attempt{Number: n, Description: desc, Duration: elapsed})
			if ctxErr := ctx.Err(); ctxErr != nil {
				return canceled(ctxErr, n)
			}
			return withAttempts(err, n)
		}

		out.Attempts = append(out.Attempts, Attempt{
			Number:      n,
			Description: desc,
			Succeeded:   res.Succeeded(),
			Diagnostic:  res.Diagnostic,
			Duration:    elapsed,
		})

		if res.Succeeded() {
			out.Artifact = res.Artifact
			l.logger.Info("rendered diagram", "attempts", n, "location", res.Artifact.Location, "bytes", res.Artifact.Size())
			return nil
		}

		if n >= l.maxAttempts {
			return errors.New(errors.ErrCodeRetryBudgetExhausted,
				"description failed to render after %d attempts", n).
				WithStage(errors.StageRender).
				WithAttempts(n).
				WithDiagnostic(res.Diagnostic)
		}

		l.logger.Warn("render attempt failed, requesting repair", "attempt", n, "diagnostic", firstLine(res.Diagnostic))

		if err := ctx.Err(); err != nil {
			return canceled(err, n)
		}
		next, err := l.repair(ctx, n, desc, res.Diagnostic, fix)
		if err != nil {
			return err
		}
		desc = next
	}
}

func (l *Loop) repair(ctx context.Context, n int, desc dot.Description, diagnostic string, fix FixFunc) (dot.Description, error) {
	started := time.Now()
	raw, err := fix(ctx, desc, diagnostic)
	if err != nil {
		l.hooks.OnRepairComplete(ctx, n, time.Since(started), err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dot.Description{}, canceled(ctxErr, n)
		}
		return dot.Description{}, errors.Wrap(errors.ErrCodeCollaborator, err,
			"repair failed: generator error after attempt %d", n).
			WithStage(errors.StageRepair).
			WithAttempts(n).
			WithDiagnostic(diagnostic)
	}

	next, err := dot.Sanitize(raw)
	if err != nil {
		err = errors.Wrap(errors.ErrCodeMalformedOutput, err,
			"repair failed: corrected output after attempt %d contains no graph", n).
			WithStage(errors.StageRepair).
			WithAttempts(n).
			WithDiagnostic(diagnostic)
	}
	l.hooks.OnRepairComplete(ctx, n, time.Since(started), err)
	return next, err
}

func canceled(cause error, attempts int) error {
	return errors.Wrap(errors.ErrCodeCanceled, cause, "resolve canceled after %d attempts", attempts).
		WithAttempts(attempts)
}

func withAttempts(err error, n int) error {
	if e, ok := err.(*errors.Error); ok {
		if e.Stage == "" {
			e.Stage = errors.StageRender
		}
		return e.WithAttempts(n)
	}
	return errors.Wrap(errors.ErrCodeCollaborator, err, "render engine failed").
		WithStage(errors.StageRender).
		WithAttempts(n)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
