package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/ams-auth/internal/infrastructure/influxdb"
)

// Middleware wraps a handler. The pre-auth stack is an ordered list of these.
type Middleware func(http.Handler) http.Handler

type contextKey string

const ctxKeyRequestMeta contextKey = "request_meta"

// requestMeta is shared by the middleware stack and the route handler.
// The handler fills in Strategy so the stats sinks can tag it.
type requestMeta struct {
	ID       string
	Strategy string
}

func metaFrom(ctx context.Context) *requestMeta {
	meta, _ := ctx.Value(ctxKeyRequestMeta).(*requestMeta)
	return meta
}

func requestIDFrom(ctx context.Context) string {
	if meta := metaFrom(ctx); meta != nil {
		return meta.ID
	}
	return ""
}

// middleware returns the pre-auth stack in execution order. Observers sit
// outside recovery so a recovered panic is still logged and counted as a 500.
func (s *Server) middleware() []Middleware {
	stack := []Middleware{
		s.requestIDMiddleware,
		s.loggingMiddleware,
	}
	if s.metrics != nil {
		stack = append(stack, s.metricsMiddleware)
	}
	if s.stats != nil {
		stack = append(stack, s.statsMiddleware)
	}
	return append(stack,
		s.recoveryMiddleware,
		s.corsMiddleware,
		s.bodySizeLimitMiddleware,
	)
}

// requestIDMiddleware uses the client's X-Request-ID or generates one.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestMeta, &requestMeta{ID: requestID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrapStatus(w)
		next.ServeHTTP(wrapped, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFrom(r.Context()),
		)
	})
}

// metricsMiddleware feeds the Prometheus request counters.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.InFlight(1)
		defer s.metrics.InFlight(-1)

		start := time.Now()
		wrapped := wrapStatus(w)
		next.ServeHTTP(wrapped, r)
		s.metrics.ObserveRequest(r.Method, routePattern(r), wrapped.status, time.Since(start))
	})
}

// statsMiddleware writes one InfluxDB point per request.
func (s *Server) statsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrapStatus(w)
		next.ServeHTTP(wrapped, r)

		var strategy string
		if meta := metaFrom(r.Context()); meta != nil {
			strategy = meta.Strategy
		}
		s.stats.WriteRequestStat(influxdb.RequestStat{
			Method:   r.Method,
			Route:    routePattern(r),
			Status:   wrapped.status,
			Strategy: strategy,
			Duration: time.Since(start),
			At:       start,
		})
	})
}

// recoveryMiddleware catches panics in handlers and returns a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", requestIDFrom(r.Context()),
				)
				writeJSON(w, http.StatusInternalServerError, errorEnvelope{
					Error: newErrorBody(http.StatusInternalServerError, "Internal Server Error", ""),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles Cross-Origin Resource Sharing headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", joinOrDefault(s.cfg.CORS.AllowedMethods, "GET, POST, OPTIONS"))
			w.Header().Set("Access-Control-Allow-Headers", joinOrDefault(s.cfg.CORS.AllowedHeaders, "Authorization, Content-Type, X-Request-ID"))
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Add("Vary", "Origin")
		}

		// Preflight
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// bodySizeLimitMiddleware caps request bodies; oversized reads fail with
// *http.MaxBytesError, which writeFailure maps to 413.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// isAllowedOrigin checks if the origin is in the allowed list.
// An empty list allows all origins.
func (s *Server) isAllowedOrigin(origin string) bool {
	if len(s.cfg.CORS.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.CORS.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// routePattern returns the matched chi pattern once routing has run.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapStatus(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// joinOrDefault joins a string slice with ", " or returns the default if empty.
func joinOrDefault(values []string, defaultVal string) string {
	if len(values) == 0 {
		return defaultVal
	}
	return strings.Join(values, ", ")
}
