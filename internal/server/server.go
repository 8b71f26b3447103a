// Package server exposes the reflection surface over HTTP.
//
// All routes are read-only except cache invalidation and snapshot export.
// Append ?fresh=true to any reflection route to bypass the catalog cache.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/koustreak/d1meta/internal/catalog"
	"github.com/koustreak/d1meta/internal/logger"
	"github.com/koustreak/d1meta/internal/schema"
	"github.com/koustreak/d1meta/internal/snapshot"
)

// Config holds HTTP listener settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options are the components the server serves from. Reader is required;
// the rest switch features on when set.
type Options struct {
	Reader   schema.Reader
	Pinger   Pinger
	Cache    *catalog.Cache
	Exporter *snapshot.Exporter
	Database string // name recorded in snapshots
	Logger   *logger.Logger

	// Registry, when set, receives the HTTP metrics and is served on /metrics.
	Registry *prometheus.Registry
}

// Server is the reflection HTTP server.
type Server struct {
	cfg     Config
	opts    Options
	log     *logger.Logger
	metrics *httpMetrics
	router  chi.Router
}

// New builds the router. Call Run to start listening.
func New(cfg Config, opts Options) *Server {
	log := logger.Nop()
	if opts.Logger != nil {
		log = opts.Logger.Component("http")
	}

	s := &Server{cfg: cfg, opts: opts, log: log}
	if opts.Registry != nil {
		s.metrics = newHTTPMetrics(opts.Registry)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
		freshParam,
	)

	r.Get("/healthz", s.handleHealth)
	if s.opts.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/schemas", s.handleSchemas)
		r.Get("/schemas/{schema}/tables", s.handleTables)
		r.Get("/schemas/{schema}/views", s.handleViews)

		r.Route("/tables/{table}", func(r chi.Router) {
			r.Get("/", s.handleTable)
			r.Get("/exists", s.handleTableExists)
			r.Get("/columns", s.handleColumns)
			r.Get("/primary-key", s.handlePrimaryKey)
			r.Get("/foreign-keys", s.handleForeignKeys)
			r.Get("/indexes", s.handleIndexes)
			r.Get("/unique-constraints", s.handleUniqueConstraints)
		})

		r.Get("/snapshot", s.handleSnapshot)
		r.Post("/snapshot/export", s.handleSnapshotExport)
		r.Get("/snapshot/exports", s.handleSnapshotList)

		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/invalidate", s.handleCacheInvalidate)
	})

	return r
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
	}

	eg.Go(func() error {
		s.log.InfoWith("http server listening", map[string]any{"addr": s.cfg.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
