// Package core provides the HTTP chassis of the Stripe facility. It builds a
// chi router that serves both a standard HTTP listener (local) and AWS Lambda
// proxy events, and enforces cross-cutting concerns (recovery, request IDs,
// logging, metrics) before requests reach handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stripefacility/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
type MetricsCollector interface {
	// RecordRequest records latency and count. endpoint is the matched route
	// pattern, not the raw path.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of routes. Handlers are registered through
// registrars populated by the entry point, which keeps core free of imports
// on handler packages.
type RouteRegistrar func(r chi.Router)

// Server holds the dependencies of the HTTP surface.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      MetricsCollector
	HealthProbes []HealthProbe
	Registrars   []RouteRegistrar

	closers []func(context.Context) error
	router  *chi.Mux
}

// NewServer validates critical dependencies and prepares an empty router.
// Routes are added by MountRoutes once registrars are set.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run during Shutdown, in registration order.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

// Shutdown releases server resources (database pools and the like). Every
// registered closer runs; their errors are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for _, fn := range s.closers {
		if err := fn(ctx); err != nil {
			s.Logger.Error("error releasing server resource", "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("server shutdown: %w", errors.Join(errs...))
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
