package pipeline

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/text2block/pkg/cache"
	"github.com/matzehuels/text2block/pkg/config"
	"github.com/matzehuels/text2block/pkg/diagram"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/explain"
	"github.com/matzehuels/text2block/pkg/history"
	"github.com/matzehuels/text2block/pkg/llm"
	"github.com/matzehuels/text2block/pkg/observability"
	"github.com/matzehuels/text2block/pkg/prompt"
	"github.com/matzehuels/text2block/pkg/render"
)

// BuildOptions adjusts what [Build] wires.
type BuildOptions struct {
	Logger *log.Logger

	// Hooks receives events in addition to the debug log hooks.
	Hooks observability.Hooks

	// NoCache replaces the configured cache with a NullCache.
	NoCache bool

	// NoHistory replaces the configured history store with a NullStore.
	NoHistory bool
}

// Build wires a runner from cfg: generators, engine, renderer, prompts,
// the diagram service, the result cache and the history store. cfg should
// already be validated.
func Build(ctx context.Context, cfg config.Config, opts BuildOptions) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	hooks := observability.Multi(observability.NewLogHooks(logger).Hooks(), opts.Hooks)

	gens, err := NewGenerators(cfg)
	if err != nil {
		return nil, err
	}
	renderer, err := NewRenderer(cfg.Render)
	if err != nil {
		return nil, err
	}
	prompts, err := prompt.New(cfg.Prompts)
	if err != nil {
		return nil, err
	}
	mode, err := explain.ParseMode(cfg.Explain.Mode)
	if err != nil {
		return nil, err
	}

	svc, err := diagram.NewService(diagram.Options{
		Generators:  gens,
		Renderer:    renderer,
		Prompts:     prompts,
		MaxAttempts: cfg.Repair.MaxAttempts,
		ExplainMode: mode,
		Hooks:       hooks,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	var c cache.Cache = cache.NewNullCache()
	if !opts.NoCache {
		if c, err = OpenCache(ctx, cfg); err != nil {
			return nil, err
		}
	}
	var store history.Store = history.NewNullStore()
	if !opts.NoHistory {
		if store, err = OpenHistory(ctx, cfg); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	r := NewRunner(svc, cache.Instrument(c, hooks.Cache, cacheKeyType), store, logger)
	r.Renderer = renderer
	r.Meta = MetaFor(cfg)
	r.KeyOpts = KeyOptsFor(cfg)
	if cfg.Cache.TTL > 0 {
		r.TTL = cfg.Cache.TTL
	}
	return r, nil
}

// NewGenerators builds the diagram generator and, when an explain override
// is configured, a separate explanation generator.
func NewGenerators(cfg config.Config) (diagram.Generators, error) {
	gen, err := llm.New(cfg.DiagramLLM())
	if err != nil {
		return diagram.Generators{}, err
	}
	gens := diagram.Generators{Diagram: gen, Repair: gen, Explain: gen}
	if cfg.LLM.Explain != nil {
		if gens.Explain, err = llm.New(cfg.ExplainLLM()); err != nil {
			return diagram.Generators{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "llm.explain")
		}
	}
	return gens, nil
}

// NewEngine builds the configured rendering engine.
func NewEngine(cfg config.RenderConfig) (render.Engine, error) {
	switch cfg.Engine {
	case config.EngineGraphviz, "":
		return render.NewGraphvizEngine(), nil
	case config.EngineExec:
		e, err := render.NewExecEngine(render.ExecConfig{
			BinaryPath: cfg.Binary,
			Timeout:    cfg.Timeout,
			Args:       cfg.Args,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "render engine")
		}
		return e, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown render engine %q", cfg.Engine)
}

// NewRenderer builds a renderer with the configured engine, format and layout.
func NewRenderer(cfg config.RenderConfig) (*render.Renderer, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	rc, err := RenderConfig(cfg)
	if err != nil {
		return nil, err
	}
	return render.New(engine, rc), nil
}

// RenderConfig parses the format and layout names of cfg.
func RenderConfig(cfg config.RenderConfig) (render.Config, error) {
	var rc render.Config
	var err error
	if cfg.Format != "" {
		if rc.Format, err = render.ParseFormat(cfg.Format); err != nil {
			return render.Config{}, err
		}
	}
	if cfg.Layout != "" {
		if rc.Layout, err = render.ParseLayout(cfg.Layout); err != nil {
			return render.Config{}, err
		}
	}
	return rc.WithDefaults(), nil
}

// OpenCache opens the configured result cache backend.
func OpenCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case cache.BackendNone:
		return cache.NewNullCache(), nil
	case cache.BackendFile, "":
		dir, err := cfg.CacheDir()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "resolve cache dir")
		}
		return cache.NewFileCache(dir)
	case cache.BackendRedis:
		return cache.NewRedisCache(ctx, cfg.Cache.Redis)
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", cfg.Cache.Backend)
}

// OpenHistory opens the configured history backend.
func OpenHistory(ctx context.Context, cfg config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case history.BackendNone:
		return history.NewNullStore(), nil
	case history.BackendFile, "":
		dir, err := cfg.HistoryDir()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "resolve history dir")
		}
		return history.NewFileStore(dir)
	case history.BackendMongo:
		return history.NewMongoStore(ctx, cfg.History.Mongo)
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown history backend %q", cfg.History.Backend)
}

// MetaFor returns the history metadata of requests run with cfg.
func MetaFor(cfg config.Config) history.Meta {
	llmCfg := cfg.DiagramLLM()
	format := cfg.Render.Format
	if f, err := render.ParseFormat(format); err == nil {
		format = string(f)
	}
	return history.Meta{Provider: llmCfg.Provider, Model: llmCfg.Model, Format: format}
}

// KeyOptsFor returns the cache key settings of requests run with cfg.
func KeyOptsFor(cfg config.Config) cache.ResultKeyOpts {
	llmCfg := cfg.DiagramLLM()
	rc, _ := RenderConfig(cfg.Render)
	opts := cache.ResultKeyOpts{
		Provider:    llmCfg.Provider,
		Model:       llmCfg.Model,
		Format:      string(rc.Format),
		Layout:      string(rc.Layout),
		MaxAttempts: cfg.Repair.MaxAttempts,
		ExplainMode: cfg.Explain.Mode,
	}
	if cfg.LLM.Explain != nil {
		ex := cfg.ExplainLLM()
		opts.ExplainModel = ex.Provider + "/" + ex.Model
	}
	return opts
}
