// Package server exposes the diagram pipeline over HTTP.
//
// Routes:
//
//	POST /api/analyze        {"prompt": "..."} -> base64 artifact and explanation
//	GET  /api/history        recent requests, newest first (?limit=N)
//	GET  /api/history/{id}   one request
//	GET  /healthz            liveness
//	GET  /metrics            Prometheus metrics
//
// Every artifact is rendered into a file inside a per-request temporary
// directory, read back into the response and deleted before the handler
// returns.
package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/text2block/pkg/config"
	"github.com/matzehuels/text2block/pkg/pipeline"
	"github.com/matzehuels/text2block/pkg/render"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Options configures a [Server].
type Options struct {
	Config config.ServerConfig

	// Format is the artifact format the runner renders, used for temporary
	// file names and the mime_type field.
	Format render.Format

	// Registry receives the HTTP metrics and backs /metrics. Nil creates a
	// private registry.
	Registry *prometheus.Registry

	// TempDir is the parent of per-request directories. Empty uses
	// os.TempDir().
	TempDir string

	Logger *log.Logger
}

// Server serves the HTTP API.
type Server struct {
	runner   *pipeline.Runner
	cfg      config.ServerConfig
	format   render.Format
	registry *prometheus.Registry
	metrics  *httpMetrics
	tempDir  string
	logger   *log.Logger
}

// New creates a server backed by runner.
func New(runner *pipeline.Runner, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Format == "" {
		opts.Format = render.DefaultFormat
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	metrics, err := newHTTPMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}
	return &Server{
		runner:   runner,
		cfg:      opts.Config,
		format:   opts.Format,
		registry: opts.Registry,
		metrics:  metrics,
		tempDir:  opts.TempDir,
		logger:   opts.Logger,
	}, nil
}

// Handler returns the routed handler with middleware and CORS applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/history", s.handleListHistory)
		r.Get("/history/{id}", s.handleGetHistory)
	})

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)
}

// Run listens on the configured address until ctx is canceled, then shuts
// down gracefully within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// logRequests writes one log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
