package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/text2block/pkg/cache"
	"github.com/matzehuels/text2block/pkg/diagram"
	"github.com/matzehuels/text2block/pkg/dot"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/history"
	"github.com/matzehuels/text2block/pkg/render"
	"github.com/matzehuels/text2block/pkg/repair"
)

// Runner executes requests against a diagram service with caching and
// history. It holds no per-request state; one Runner serves concurrent
// requests as long as its cache and store do.
type Runner struct {
	Service  *diagram.Service
	Renderer repair.Renderer
	Cache    cache.Cache
	Keyer    cache.Keyer
	History  history.Store
	Logger   *log.Logger

	// Meta is copied into every history record.
	Meta history.Meta

	// KeyOpts are the settings hashed into result cache keys.
	KeyOpts cache.ResultKeyOpts

	// TTL is the lifetime of cached results.
	TTL time.Duration
}

// NewRunner creates a runner. A nil cache disables caching, a nil store
// disables history and a nil logger uses log.Default().
func NewRunner(svc *diagram.Service, c cache.Cache, store history.Store, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if store == nil {
		store = history.NewNullStore()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Service: svc,
		Cache:   c,
		Keyer:   cache.NewDefaultKeyer(),
		History: store,
		Logger:  logger,
		TTL:     cache.TTLResult,
	}
}

// Execute produces the diagram for opts.Intent into opts.Dest, replaying a
// cached result when one exists. Requests that fail [Options.Validate] are
// returned without being recorded.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	key := r.Keyer.ResultKey(opts.Intent, r.KeyOpts)

	if !opts.NoCache && !opts.Refresh {
		if res, ok := r.lookup(ctx, key, opts.Dest); ok {
			res.Duration = time.Since(start)
			rec := history.FromResult(opts.Intent, r.Meta, res)
			rec.Cached = true
			r.Logger.Info("served cached diagram", "location", opts.Dest.Location())
			return &Result{Result: res, Cached: true, RecordID: r.record(ctx, rec)}, nil
		}
	}

	res, err := r.Service.Produce(ctx, opts.Intent, opts.Dest)
	if err != nil {
		r.record(ctx, history.FromError(opts.Intent, r.Meta, err, time.Since(start)))
		return nil, err
	}
	if !opts.NoCache {
		r.store(ctx, key, res)
	}
	return &Result{Result: res, RecordID: r.record(ctx, history.FromResult(opts.Intent, r.Meta, res))}, nil
}

// Repair renders source through the repair loop, asking the repair
// generator to fix rejected attempts.
func (r *Runner) Repair(ctx context.Context, source string, dest render.Destination) (*repair.Outcome, error) {
	desc, err := dot.Sanitize(source)
	if err != nil {
		return nil, err
	}
	return r.Service.Resolve(ctx, desc, dest)
}

// Render sanitizes source and renders it once with r.Renderer. No generator
// is involved.
func (r *Runner) Render(ctx context.Context, source string, dest render.Destination) (*repair.Outcome, error) {
	return RenderSource(ctx, r.Renderer, source, dest)
}

// RenderSource sanitizes source and renders it once. An engine rejection is
// returned as RETRY_BUDGET_EXHAUSTED with the diagnostic attached.
func RenderSource(ctx context.Context, renderer repair.Renderer, source string, dest render.Destination) (*repair.Outcome, error) {
	desc, err := dot.Sanitize(source)
	if err != nil {
		return nil, err
	}
	return repair.Resolve(ctx, renderer, desc, 1, nil, dest)
}

// Close releases the cache and the history store.
func (r *Runner) Close() error {
	return stderrors.Join(r.Cache.Close(), r.History.Close())
}

func (r *Runner) lookup(ctx context.Context, key string, dest render.Destination) (*diagram.Result, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache lookup failed", "err", err)
		return nil, false
	}
	if !hit {
		return nil, false
	}
	c, err := decodeResult(data)
	if err != nil {
		r.Logger.Warn("discarding unreadable cache entry", "key", key, "err", err)
		_ = r.Cache.Delete(ctx, key)
		return nil, false
	}
	if err := dest.Write(c.Data); err != nil {
		r.Logger.Warn("replaying cached artifact failed", "location", dest.Location(), "err", err)
		return nil, false
	}
	return &diagram.Result{
		Artifact:    &render.Artifact{Location: dest.Location(), Format: c.Format, Data: c.Data},
		Explanation: c.Explanation,
		Description: c.Description,
		Attempts:    c.Attempts,
		Stats:       c.Stats,
	}, true
}

func (r *Runner) store(ctx context.Context, key string, res *diagram.Result) {
	data, err := encodeResult(res)
	if err == nil {
		err = r.Cache.Set(ctx, key, data, r.TTL)
	}
	if err != nil {
		r.Logger.Warn("caching result failed", "err", err)
	}
}

// record saves rec and returns its ID, or "" when the store rejected it.
// The save outlives a canceled request so failures are still recorded.
func (r *Runner) record(ctx context.Context, rec *history.Record) string {
	if err := r.History.Save(context.WithoutCancel(ctx), rec); err != nil {
		r.Logger.Warn("recording request failed", "id", rec.ID, "err", errors.UserMessage(err))
		return ""
	}
	r.Logger.Debug("recorded request", "id", rec.ID, "status", rec.Status)
	return rec.ID
}
