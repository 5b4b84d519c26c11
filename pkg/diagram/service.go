package diagram

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/text2block/pkg/dot"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/explain"
	"github.com/matzehuels/text2block/pkg/llm"
	"github.com/matzehuels/text2block/pkg/observability"
	"github.com/matzehuels/text2block/pkg/prompt"
	"github.com/matzehuels/text2block/pkg/render"
	"github.com/matzehuels/text2block/pkg/repair"
)

// DefaultMaxAttempts is the render budget used when Options.MaxAttempts is 0.
const DefaultMaxAttempts = 3

// Generators assigns a generator to each prompt role. Repair and Explain
// default to Diagram when nil.
type Generators struct {
	Diagram llm.Generator
	Repair  llm.Generator
	Explain llm.Generator
}

// Options configures a [Service].
type Options struct {
	Generators Generators
	Renderer   repair.Renderer

	// Prompts renders the generator requests. Nil uses [prompt.Default].
	Prompts *prompt.Set

	// MaxAttempts bounds renders per request. Zero uses DefaultMaxAttempts.
	MaxAttempts int

	// ExplainMode selects text or structured explanations.
	ExplainMode explain.Mode

	Hooks  observability.Hooks
	Logger *log.Logger
}

// Service produces diagrams. It is safe for concurrent use.
type Service struct {
	gens    Generators
	loop    *repair.Loop
	prompts *prompt.Set
	parser  *explain.Parser
	mode    explain.Mode
	hooks   observability.GeneratorHooks
	logger  *log.Logger
}

// Stats records per-stage timings of one request.
type Stats struct {
	GenerateTime time.Duration `json:"generate_time"`
	ResolveTime  time.Duration `json:"resolve_time"`
	ExplainTime  time.Duration `json:"explain_time"`
}

// Result is a produced diagram.
type Result struct {
	Artifact    *render.Artifact    `json:"-"`
	Explanation explain.Explanation `json:"explanation"`
	Description dot.Description     `json:"description"`
	Attempts    []repair.Attempt    `json:"attempts"`
	Duration    time.Duration       `json:"duration"`
	Stats       Stats               `json:"stats"`
}

// NewService validates opts and builds a service.
func NewService(opts Options) (*Service, error) {
	if opts.Generators.Diagram == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "diagram generator is required")
	}
	if opts.Generators.Repair == nil {
		opts.Generators.Repair = opts.Generators.Diagram
	}
	if opts.Generators.Explain == nil {
		opts.Generators.Explain = opts.Generators.Diagram
	}
	if opts.Prompts == nil {
		opts.Prompts = prompt.Default()
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.ExplainMode == "" {
		opts.ExplainMode = explain.ModeText
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	hooks := opts.Hooks.WithDefaults()

	loop, err := repair.New(opts.Renderer, repair.Options{
		MaxAttempts: opts.MaxAttempts,
		Hooks:       hooks,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	parser, err := explain.NewParser()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "build explanation parser")
	}

	return &Service{
		gens:    opts.Generators,
		loop:    loop,
		prompts: opts.Prompts,
		parser:  parser,
		mode:    opts.ExplainMode,
		hooks:   hooks.Generator,
		logger:  opts.Logger,
	}, nil
}

// MaxAttempts returns the render budget per request.
func (s *Service) MaxAttempts() int { return s.loop.MaxAttempts() }

// Produce generates, renders and explains a diagram for intent, writing the
// artifact to dest. On error nothing is left at dest.
func (s *Service) Produce(ctx context.Context, intent string, dest render.Destination) (*Result, error) {
	res, err := s.produce(ctx, intent, dest)
	if err != nil {
		_ = dest.Remove()
		return nil, err
	}
	return res, nil
}

func (s *Service) produce(ctx context.Context, intent string, dest render.Destination) (*Result, error) {
	if err := errors.ValidateIntent(intent); err != nil {
		return nil, err
	}
	start := time.Now()
	result := &Result{}

	// Stage 1: Generate
	genStart := time.Now()
	desc, err := s.describe(ctx, intent)
	if err != nil {
		return nil, err
	}
	result.Stats.GenerateTime = time.Since(genStart)
	s.logger.Info("generated description",
		"keyword", desc.Keyword(),
		"bytes", desc.Len(),
		"duration", result.Stats.GenerateTime)

	// Stage 2: Render and repair
	out, err := s.loop.Resolve(ctx, desc, s.fix, dest)
	if err != nil {
		return nil, err
	}
	result.Artifact = out.Artifact
	result.Description = out.Description
	result.Attempts = out.Attempts
	result.Stats.ResolveTime = out.Duration

	// Stage 3: Explain
	explainStart := time.Now()
	expl, err := s.explain(ctx, intent, out)
	if err != nil {
		return nil, err
	}
	result.Explanation = expl
	result.Stats.ExplainTime = time.Since(explainStart)
	s.logger.Info("explained diagram",
		"structured", expl.Structured,
		"duration", result.Stats.ExplainTime)

	result.Duration = time.Since(start)
	return result, nil
}

// Resolve renders an existing description through the repair loop, using the
// repair generator to fix rejected attempts.
func (s *Service) Resolve(ctx context.Context, desc dot.Description, dest render.Destination) (*repair.Outcome, error) {
	return s.loop.Resolve(ctx, desc, s.fix, dest)
}

func (s *Service) describe(ctx context.Context, intent string) (dot.Description, error) {
	p, err := s.prompts.Initial(intent)
	if err != nil {
		return dot.Description{}, stage(err, errors.StageGenerate)
	}
	raw, err := s.generate(ctx, observability.RoleInitial, s.gens.Diagram, p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dot.Description{}, errors.Wrap(errors.ErrCodeCanceled, ctxErr, "request canceled during generation").
				WithStage(errors.StageGenerate)
		}
		return dot.Description{}, errors.Wrap(errors.ErrCodeCollaborator, err, "generate description").
			WithStage(errors.StageGenerate)
	}

	desc, err := dot.Sanitize(raw)
	if err != nil {
		return dot.Description{}, errors.Wrap(errors.ErrCodeMalformedOutput, err, "generator output contains no graph").
			WithStage(errors.StageGenerate)
	}
	return desc, nil
}

func (s *Service) fix(ctx context.Context, desc dot.Description, diagnostic string) (string, error) {
	p, err := s.prompts.Repair(desc, diagnostic)
	if err != nil {
		return "", err
	}
	return s.generate(ctx, observability.RoleRepair, s.gens.Repair, p)
}

func (s *Service) explain(ctx context.Context, intent string, out *repair.Outcome) (explain.Explanation, error) {
	attempts := len(out.Attempts)
	p, err := s.prompts.Explain(intent, out.Description, s.mode == explain.ModeStructured)
	if err != nil {
		return explain.Explanation{}, stage(err, errors.StageExplain)
	}
	raw, err := s.generate(ctx, observability.RoleExplain, s.gens.Explain, p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return explain.Explanation{}, errors.Wrap(errors.ErrCodeCanceled, ctxErr, "request canceled during explanation").
				WithStage(errors.StageExplain).
				WithAttempts(attempts)
		}
		return explain.Explanation{}, errors.Wrap(errors.ErrCodeCollaborator, err, "explain diagram").
			WithStage(errors.StageExplain).
			WithAttempts(attempts)
	}

	expl, err := s.parser.Parse(raw, s.mode)
	if err != nil {
		s.logger.Warn("structured explanation rejected, using text", "reason", errors.UserMessage(err))
	}
	return expl, nil
}

func (s *Service) generate(ctx context.Context, role string, gen llm.Generator, p string) (string, error) {
	start := time.Now()
	raw, err := gen.Generate(ctx, p)
	s.hooks.OnGenerateComplete(ctx, role, time.Since(start), err)
	return raw, err
}

func stage(err error, st errors.Stage) error {
	if e, ok := err.(*errors.Error); ok {
		return e.WithStage(st)
	}
	return errors.Wrap(errors.ErrCodeInternal, err, "%s prompt", st).WithStage(st)
}
