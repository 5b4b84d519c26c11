package diagram

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/text2block/pkg/dot"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/explain"
	"github.com/matzehuels/text2block/pkg/llm"
	"github.com/matzehuels/text2block/pkg/observability"
	"github.com/matzehuels/text2block/pkg/render"
)

// fakeGenerator replays replies in order and records the prompts it saw.
type fakeGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, p string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "", stderrors.New("no scripted reply")
	}
	r := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return r, nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// fakeEngine rejects any source containing BAD.
func fakeEngine(calls *int) render.Engine {
	return render.EngineFunc(func(_ context.Context, source string, _ render.Format, _ render.Layout) ([]byte, error) {
		*calls++
		if strings.Contains(source, "BAD") {
			return nil, &render.DiagnosticError{Message: "syntax error near BAD"}
		}
		return []byte("IMG:" + source), nil
	})
}

type fixture struct {
	diagram, repair, explain *fakeGenerator
	renders                  int
	svc                      *Service
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{diagram: &fakeGenerator{}, repair: &fakeGenerator{}, explain: &fakeGenerator{}}
	opts.Generators = Generators{Diagram: f.diagram, Repair: f.repair, Explain: f.explain}
	opts.Renderer = render.New(fakeEngine(&f.renders), render.Config{})
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	svc, err := NewService(opts)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	f.svc = svc
	return f
}

func TestProduceFirstTry(t *testing.T) {
	f := newFixture(t, Options{})
	f.diagram.replies = []string{"Sure! Here it is:\n```dot\ndigraph G { a -> b }\n```"}
	f.explain.replies = []string{"  a flows into b.  "}
	dest := render.NewMemoryDestination("mem")

	res, err := f.svc.Produce(context.Background(), "show a then b", dest)
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if f.renders != 1 || f.repair.calls() != 0 {
		t.Errorf("renders = %d, repairs = %d, want 1 and 0", f.renders, f.repair.calls())
	}
	if len(res.Attempts) != 1 || !res.Attempts[0].Succeeded {
		t.Errorf("attempts = %+v", res.Attempts)
	}
	if got := res.Description.String(); !strings.HasPrefix(got, "digraph G { a -> b }") {
		t.Errorf("description = %q", got)
	}
	if string(dest.Bytes()) != string(res.Artifact.Data) || res.Artifact.Location != "mem" {
		t.Error("artifact not written to destination")
	}
	if res.Explanation.Overview != "a flows into b." || res.Explanation.Structured {
		t.Errorf("explanation = %+v", res.Explanation)
	}
	if !strings.Contains(f.explain.prompts[0], res.Description.String()) {
		t.Error("explain prompt must include the rendered description")
	}
	if !strings.Contains(f.diagram.prompts[0], "show a then b") {
		t.Error("initial prompt must include the intent")
	}
}

func TestProduceRepairs(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 3})
	f.diagram.replies = []string{"digraph G { BAD }"}
	f.repair.replies = []string{"digraph G { BAD again }", "digraph G { fixed }"}
	f.explain.replies = []string{"fixed"}

	res, err := f.svc.Produce(context.Background(), "x", render.NewMemoryDestination("mem"))
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if f.renders != 3 || f.repair.calls() != 2 {
		t.Errorf("renders = %d, repairs = %d, want 3 and 2", f.renders, f.repair.calls())
	}
	if res.Description.String() != "digraph G { fixed }" {
		t.Errorf("description = %q", res.Description)
	}
	first := f.repair.prompts[0]
	if !strings.Contains(first, "digraph G { BAD }") || !strings.Contains(first, "syntax error near BAD") {
		t.Errorf("repair prompt must embed description and diagnostic verbatim:\n%s", first)
	}
	if !strings.Contains(f.explain.prompts[0], "digraph G { fixed }") {
		t.Error("explanation must describe the description that rendered")
	}
}

func TestProduceFailures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(f *fixture)
		code        errors.Code
		stage       errors.Stage
		attempts    int
		wantRenders int
	}{
		{
			name: "budget exhausted",
			setup: func(f *fixture) {
				f.diagram.replies = []string{"digraph { BAD }"}
				f.repair.replies = []string{"digraph { BAD }"}
			},
			code:        errors.ErrCodeRetryBudgetExhausted,
			stage:       errors.StageRender,
			attempts:    2,
			wantRenders: 2,
		},
		{
			name:  "initial generator error",
			setup: func(f *fixture) { f.diagram.err = stderrors.New("503 from provider") },
			code:  errors.ErrCodeCollaborator,
			stage: errors.StageGenerate,
		},
		{
			name:  "initial output malformed",
			setup: func(f *fixture) { f.diagram.replies = []string{"I cannot draw that."} },
			code:  errors.ErrCodeMalformedOutput,
			stage: errors.StageGenerate,
		},
		{
			name: "repair generator error",
			setup: func(f *fixture) {
				f.diagram.replies = []string{"digraph { BAD }"}
				f.repair.err = stderrors.New("timeout")
			},
			code:        errors.ErrCodeCollaborator,
			stage:       errors.StageRepair,
			attempts:    1,
			wantRenders: 1,
		},
		{
			name: "explain generator error",
			setup: func(f *fixture) {
				f.diagram.replies = []string{"digraph { ok }"}
				f.explain.err = stderrors.New("rate limited")
			},
			code:        errors.ErrCodeCollaborator,
			stage:       errors.StageExplain,
			attempts:    1,
			wantRenders: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{MaxAttempts: 2})
			tt.setup(f)
			dest := render.NewMemoryDestination("mem")

			res, err := f.svc.Produce(context.Background(), "x", dest)
			if res != nil {
				t.Error("result should be nil on failure")
			}
			if !errors.Is(err, tt.code) {
				t.Fatalf("error = %v, want %s", err, tt.code)
			}
			if got := errors.StageOf(err); got != tt.stage {
				t.Errorf("stage = %q, want %q", got, tt.stage)
			}
			if got := errors.AttemptsOf(err); got != tt.attempts {
				t.Errorf("attempts = %d, want %d", got, tt.attempts)
			}
			if f.renders != tt.wantRenders {
				t.Errorf("renders = %d, want %d", f.renders, tt.wantRenders)
			}
			if dest.Bytes() != nil {
				t.Error("destination must be empty after failure")
			}
		})
	}
}

func TestProduceBudgetCarriesDiagnostic(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 1})
	f.diagram.replies = []string{"digraph { BAD }"}

	_, err := f.svc.Produce(context.Background(), "x", render.NewMemoryDestination("mem"))
	if got := errors.DiagnosticOf(err); got != "syntax error near BAD" {
		t.Errorf("diagnostic = %q", got)
	}
	if f.repair.calls() != 0 {
		t.Error("repair must not run with a budget of one")
	}
	if f.explain.calls() != 0 {
		t.Error("explain must not run after a failed render")
	}
}

func TestProduceRejectsEmptyIntent(t *testing.T) {
	f := newFixture(t, Options{})
	for _, intent := range []string{"", "   \n\t"} {
		_, err := f.svc.Produce(context.Background(), intent, render.NewMemoryDestination("mem"))
		if !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("Produce(%q) error = %v, want INVALID_INPUT", intent, err)
		}
	}
	if f.diagram.calls() != 0 {
		t.Error("generator must not be called for an empty intent")
	}
}

func TestProduceCanceled(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	f.svc.gens.Diagram = llm.GeneratorFunc(func(ctx context.Context, _ string) (string, error) {
		cancel()
		return "", ctx.Err()
	})

	_, err := f.svc.Produce(ctx, "x", render.NewMemoryDestination("mem"))
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Errorf("error = %v, want CANCELED", err)
	}
	if f.renders != 0 {
		t.Error("nothing should render after cancellation")
	}
}

func TestProduceStructuredExplanation(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		structured bool
		overview   string
	}{
		{"valid json", `{"explanation":{"overview":"A loop.","details":[{"heading":"Start","description":"Begin."}]}}`, true, "A loop."},
		{"falls back to text", "A loop, in words.", false, "A loop, in words."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{ExplainMode: explain.ModeStructured})
			f.diagram.replies = []string{"digraph { a -> a }"}
			f.explain.replies = []string{tt.reply}

			res, err := f.svc.Produce(context.Background(), "x", render.NewMemoryDestination("mem"))
			if err != nil {
				t.Fatalf("Produce() error = %v", err)
			}
			if res.Explanation.Structured != tt.structured || res.Explanation.Overview != tt.overview {
				t.Errorf("explanation = %+v", res.Explanation)
			}
			if !strings.Contains(f.explain.prompts[0], `"overview"`) {
				t.Error("structured mode should request JSON")
			}
		})
	}
}

func TestResolveUsesRepairGenerator(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 2})
	f.repair.replies = []string{"graph { ok }"}

	desc := mustDesc(t, "graph { BAD }")
	out, err := f.svc.Resolve(context.Background(), desc, render.NewMemoryDestination("mem"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(out.Attempts) != 2 || f.diagram.calls() != 0 {
		t.Errorf("attempts = %d, diagram calls = %d", len(out.Attempts), f.diagram.calls())
	}
}

func TestGeneratorHooksSeeEveryRole(t *testing.T) {
	rec := &roleRecorder{}
	f := newFixture(t, Options{MaxAttempts: 2, Hooks: observability.Hooks{Generator: rec}})
	f.diagram.replies = []string{"digraph { BAD }"}
	f.repair.replies = []string{"digraph { ok }"}
	f.explain.replies = []string{"ok"}

	if _, err := f.svc.Produce(context.Background(), "x", render.NewMemoryDestination("mem")); err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if got := strings.Join(rec.roles, ","); got != "initial,repair,explain" {
		t.Errorf("roles = %q", got)
	}
}

func TestNewServiceDefaults(t *testing.T) {
	if _, err := NewService(Options{}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("missing generator: error = %v, want INVALID_CONFIG", err)
	}

	gen := &fakeGenerator{}
	svc, err := NewService(Options{
		Generators: Generators{Diagram: gen},
		Renderer:   render.New(fakeEngine(new(int)), render.Config{}),
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if svc.gens.Repair != llm.Generator(gen) || svc.gens.Explain != llm.Generator(gen) {
		t.Error("repair and explain should default to the diagram generator")
	}
	if svc.MaxAttempts() != DefaultMaxAttempts {
		t.Errorf("MaxAttempts() = %d, want %d", svc.MaxAttempts(), DefaultMaxAttempts)
	}

	if _, err := NewService(Options{Generators: Generators{Diagram: gen}, Renderer: render.New(fakeEngine(new(int)), render.Config{}), MaxAttempts: -1}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("negative budget: error = %v, want INVALID_CONFIG", err)
	}
}

type roleRecorder struct {
	roles []string
}

func (r *roleRecorder) OnGenerateComplete(_ context.Context, role string, _ time.Duration, _ error) {
	r.roles = append(r.roles, role)
}

func mustDesc(t *testing.T, s string) dot.Description {
	t.Helper()
	d, err := dot.Sanitize(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

var requestToken = regexp.MustCompile(`req\d+`)

func TestProduceConcurrentRequestsWithGraphviz(t *testing.T) {
	// Odd requests start with DOT the engine rejects and need one repair.
	diagramGen := llm.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		tok := requestToken.FindString(p)
		var n int
		fmt.Sscanf(tok, "req%d", &n)
		if n%2 == 1 {
			return "digraph { " + tok + " -> ; [[ }", nil
		}
		return "Here it is:\ndigraph { " + tok + " -> done }", nil
	})
	repairGen := llm.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		return "digraph { " + requestToken.FindString(p) + " -> done }", nil
	})
	explainGen := llm.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		return "explains " + requestToken.FindString(p), nil
	})

	svc, err := NewService(Options{
		Generators: Generators{Diagram: diagramGen, Repair: repairGen, Explain: explainGen},
		Renderer:   render.New(render.NewGraphvizEngine(), render.Config{Format: render.SVG}),
		Logger:     log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 12)
	for i := range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := fmt.Sprintf("req%d", i)
			dest := render.NewMemoryDestination(tok)
			res, err := svc.Produce(context.Background(), "draw "+tok, dest)
			if err != nil {
				errs <- fmt.Errorf("%s: %v", tok, err)
				return
			}
			wantAttempts := 1 + i%2
			switch {
			case len(res.Attempts) != wantAttempts:
				errs <- fmt.Errorf("%s: attempts = %d, want %d", tok, len(res.Attempts), wantAttempts)
			case !strings.Contains(string(dest.Bytes()), tok):
				errs <- fmt.Errorf("%s: artifact does not mention its own node", tok)
			case res.Explanation.Text() != "explains "+tok:
				errs <- fmt.Errorf("%s: explanation = %q", tok, res.Explanation.Text())
			case res.Description.String() != "digraph { "+tok+" -> done }":
				errs <- fmt.Errorf("%s: description = %q", tok, res.Description)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
