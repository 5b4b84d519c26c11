package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "text2block"

// Prometheus records hook events as Prometheus metrics.
type Prometheus struct {
	renders          *prometheus.CounterVec
	renderDuration   prometheus.Histogram
	repairs          *prometheus.CounterVec
	resolves         *prometheus.CounterVec
	resolveAttempts  prometheus.Histogram
	generations      *prometheus.CounterVec
	generateDuration *prometheus.HistogramVec
	cacheEvents      *prometheus.CounterVec
}

// NewPrometheus creates the metric collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_attempts_total",
				Help:      "Render attempts by result",
			},
			[]string{"result"}, // result: success|rejected|error
		),
		renderDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Duration of single render attempts",
				Buckets:   prometheus.DefBuckets,
			},
		),
		repairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repair_calls_total",
				Help:      "Requests for corrected descriptions by result",
			},
			[]string{"result"},
		),
		resolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolves_total",
				Help:      "Finished repair loop runs by outcome",
			},
			[]string{"outcome"},
		),
		resolveAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolve_attempts",
				Help:      "Render attempts used per repair loop run",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
		),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generate_requests_total",
				Help:      "Generator calls by prompt role and result",
			},
			[]string{"role", "result"},
		),
		generateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generate_duration_seconds",
				Help:      "Duration of generator calls",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s..32s
			},
			[]string{"role"},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_events_total",
				Help:      "Result cache events by key type and event",
			},
			[]string{"type", "event"}, // event: hit|miss|set
		),
	}

	for _, c := range p.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.renders, p.renderDuration, p.repairs, p.resolves,
		p.resolveAttempts, p.generations, p.generateDuration, p.cacheEvents,
	}
}

// Hooks returns a bundle routing every category to p.
func (p *Prometheus) Hooks() Hooks {
	return Hooks{Loop: p, Generator: p, Cache: p}
}

func (p *Prometheus) OnRenderComplete(_ context.Context, _ int, d time.Duration, ok bool, err error) {
	result := "success"
	switch {
	case err != nil:
		result = "error"
	case !ok:
		result = "rejected"
	}
	p.renders.WithLabelValues(result).Inc()
	p.renderDuration.Observe(d.Seconds())
}

func (p *Prometheus) OnRepairComplete(_ context.Context, _ int, _ time.Duration, err error) {
	p.repairs.WithLabelValues(Outcome(err)).Inc()
}

func (p *Prometheus) OnResolveComplete(_ context.Context, attempts int, _ time.Duration, err error) {
	p.resolves.WithLabelValues(Outcome(err)).Inc()
	if attempts > 0 {
		p.resolveAttempts.Observe(float64(attempts))
	}
}

func (p *Prometheus) OnGenerateComplete(_ context.Context, role string, d time.Duration, err error) {
	p.generations.WithLabelValues(role, Outcome(err)).Inc()
	p.generateDuration.WithLabelValues(role).Observe(d.Seconds())
}

func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, _ int) {
	p.cacheEvents.WithLabelValues(keyType, "set").Inc()
}

var (
	_ LoopHooks      = (*Prometheus)(nil)
	_ GeneratorHooks = (*Prometheus)(nil)
	_ CacheHooks     = (*Prometheus)(nil)
)
