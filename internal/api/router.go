package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the database ping behind GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter mounts the middleware stack and every declared route.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	for _, mw := range s.middleware() {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.writeFailure(w, req, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		s.writeFailure(w, req, ErrMethodNotAllowed)
	})

	for _, route := range s.routes() {
		r.Method(route.Method, route.Pattern, s.handle(route))
	}

	if s.metrics != nil {
		r.Method(http.MethodGet, s.metricsPath, s.metrics.Handler())
	}

	return r
}

// routes is the full route table.
func (s *Server) routes() []Route {
	routes := []Route{
		{
			Method:  http.MethodGet,
			Pattern: "/health",
			Handle:  s.handleHealth,
		},
	}
	return append(routes, s.userRoutes()...)
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(ctx context.Context, _ Args) (int, any, error) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := s.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		return http.StatusServiceUnavailable, map[string]any{
			"status":  "unavailable",
			"version": s.version,
		}, nil
	}
	return http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	}, nil
}
