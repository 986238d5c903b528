// Package server exposes the analytics service over HTTP.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Ce1ectric/groundmeas/internal/utils"
	"github.com/Ce1ectric/groundmeas/pkg/analytics"
	"github.com/Ce1ectric/groundmeas/pkg/config"
	"github.com/Ce1ectric/groundmeas/pkg/export"
	"github.com/Ce1ectric/groundmeas/pkg/profiling"
	"github.com/Ce1ectric/groundmeas/pkg/store"
	"github.com/Ce1ectric/groundmeas/pkg/webhook"
	"github.com/Ce1ectric/groundmeas/pkg/worker"
)

// Server bundles router, worker pool and dependencies for the REST API.
type Server struct {
	cfg        *config.Config
	service    *analytics.Service
	exporter   *export.Exporter
	router     *chi.Mux
	workerPool *worker.Pool
	httpServer *http.Server
	profiler   *profiling.Profiler
}

// Options holds configuration for creating a new server.
type Options struct {
	Config       *config.Config
	Service      *analytics.Service
	Measurements store.MeasurementReader
}

// New creates a server instance with routes and a running worker pool.
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}

	s := &Server{
		cfg:      opts.Config,
		service:  opts.Service,
		router:   chi.NewRouter(),
		profiler: profiling.New(&opts.Config.Server),
	}
	if opts.Measurements != nil {
		s.exporter = export.New(opts.Measurements)
	}

	webhookClient := webhook.NewClient(opts.Config.Server.WebhookURL)
	s.workerPool = worker.New(worker.Options{
		Workers:   opts.Config.Server.WorkerCount,
		Processor: s.processInversionJob,
		Webhook:   webhookClient,
	})

	s.setupRoutes()
	return s
}

// Router exposes the underlying chi router (for tests).
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestIDMiddleware)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/measurements/{id}", func(r chi.Router) {
		r.Get("/impedance", s.handleImpedance)
		r.Get("/impedance/complex", s.handleImpedanceComplex)
		r.Get("/profile", s.handleProfile)
		r.Get("/soil-profile", s.handleSoilProfile)
	})

	s.router.Get("/impedance", s.handleImpedanceMulti)
	s.router.Get("/voltage-epr", s.handleVoltageEPR)
	s.router.Post("/rhof", s.handleRhoF)
	s.router.Post("/split-factor", s.handleSplitFactor)
	s.router.Post("/invert", s.handleInvert)
	s.router.Post("/invert/batch", s.handleInvertBatch)
	s.router.Get("/invert/results", s.handleInvertResults)
	s.router.Get("/export", s.handleExport)

	s.httpServer = &http.Server{
		Addr:         ":" + s.cfg.Server.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// requestIDMiddleware tags every request with an id for log correlation.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = utils.RequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	if err := s.profiler.Start(); err != nil {
		log.Printf("Failed to start profiler: %v", err)
	}

	log.Printf("Starting HTTP server on port %s", s.cfg.Server.Port)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and the worker pool.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("Shutting down server...")
	err := s.httpServer.Shutdown(ctx)
	if perr := s.profiler.Stop(); perr != nil {
		log.Printf("Profiler shutdown error: %v", perr)
	}
	s.workerPool.Shutdown()
	log.Printf("Server shutdown complete")
	return err
}
