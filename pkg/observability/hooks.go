// Package observability provides hooks for metrics and logging.
//
// This package enables optional instrumentation without tying the diagram
// pipeline to a specific backend. Components accept hooks as explicit
// dependencies; there is no process-wide registry, so two services in one
// process can report to different backends.
//
// # Architecture
//
//   - Hook interfaces for each event category ([LoopHooks], [GeneratorHooks], [CacheHooks])
//   - No-op implementations used when a field is left nil
//   - [Hooks] bundles one of each and is what constructors take
//
// Backends live alongside: [LogHooks] writes structured log lines and
// [Prometheus] records counters and histograms.
//
// # Usage
//
//	metrics, err := observability.NewPrometheus(prometheus.DefaultRegisterer)
//	hooks := observability.Multi(observability.NewLogHooks(logger).Hooks(), metrics.Hooks())
//	svc := diagram.NewService(diagram.Options{Hooks: hooks, ...})
package observability

import (
	"context"
	"time"
)

// Prompt roles reported through [GeneratorHooks].
const (
	RoleInitial = "initial"
	RoleRepair  = "repair"
	RoleExplain = "explain"
)

// =============================================================================
// Loop Hooks
// =============================================================================

// LoopHooks receives events from the generate-validate-repair loop.
type LoopHooks interface {
	// OnRenderComplete records one render attempt. ok is false when the engine
	// rejected the description; err is set when the engine itself failed.
	OnRenderComplete(ctx context.Context, attempt int, duration time.Duration, ok bool, err error)

	// OnRepairComplete records one call for a corrected description.
	OnRepairComplete(ctx context.Context, attempt int, duration time.Duration, err error)

	// OnResolveComplete records the end of a loop run.
	OnResolveComplete(ctx context.Context, attempts int, duration time.Duration, err error)
}

// =============================================================================
// Generator Hooks
// =============================================================================

// GeneratorHooks receives events from text generation calls.
type GeneratorHooks interface {
	OnGenerateComplete(ctx context.Context, role string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from result cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopLoopHooks is a no-op implementation of LoopHooks.
type NoopLoopHooks struct{}

func (NoopLoopHooks) OnRenderComplete(context.Context, int, time.Duration, bool, error) {}
func (NoopLoopHooks) OnRepairComplete(context.Context, int, time.Duration, error)       {}
func (NoopLoopHooks) OnResolveComplete(context.Context, int, time.Duration, error)      {}

// NoopGeneratorHooks is a no-op implementation of GeneratorHooks.
type NoopGeneratorHooks struct{}

func (NoopGeneratorHooks) OnGenerateComplete(context.Context, string, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Bundles
// =============================================================================

// Hooks bundles one hook of each category. Nil fields are treated as no-ops.
type Hooks struct {
	Loop      LoopHooks
	Generator GeneratorHooks
	Cache     CacheHooks
}

// WithDefaults returns h with nil fields replaced by no-op implementations.
func (h Hooks) WithDefaults() Hooks {
	if h.Loop == nil {
		h.Loop = NoopLoopHooks{}
	}
	if h.Generator == nil {
		h.Generator = NoopGeneratorHooks{}
	}
	if h.Cache == nil {
		h.Cache = NoopCacheHooks{}
	}
	return h
}

// Noop returns a bundle of no-op hooks.
func Noop() Hooks {
	return Hooks{}.WithDefaults()
}

// Multi fans events out to every bundle in order.
func Multi(bundles ...Hooks) Hooks {
	var m multi
	for _, b := range bundles {
		m = append(m, b.WithDefaults())
	}
	return Hooks{Loop: m, Generator: m, Cache: m}
}

type multi []Hooks

func (m multi) OnRenderComplete(ctx context.Context, attempt int, d time.Duration, ok bool, err error) {
	for _, h := range m {
		h.Loop.OnRenderComplete(ctx, attempt, d, ok, err)
	}
}

func (m multi) OnRepairComplete(ctx context.Context, attempt int, d time.Duration, err error) {
	for _, h := range m {
		h.Loop.OnRepairComplete(ctx, attempt, d, err)
	}
}

func (m multi) OnResolveComplete(ctx context.Context, attempts int, d time.Duration, err error) {
	for _, h := range m {
		h.Loop.OnResolveComplete(ctx, attempts, d, err)
	}
}

func (m multi) OnGenerateComplete(ctx context.Context, role string, d time.Duration, err error) {
	for _, h := range m {
		h.Generator.OnGenerateComplete(ctx, role, d, err)
	}
}

func (m multi) OnCacheHit(ctx context.Context, keyType string) {
	for _, h := range m {
		h.Cache.OnCacheHit(ctx, keyType)
	}
}

func (m multi) OnCacheMiss(ctx context.Context, keyType string) {
	for _, h := range m {
		h.Cache.OnCacheMiss(ctx, keyType)
	}
}

func (m multi) OnCacheSet(ctx context.Context, keyType string, size int) {
	for _, h := range m {
		h.Cache.OnCacheSet(ctx, keyType, size)
	}
}
