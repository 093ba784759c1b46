package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/ams-auth/internal/auth"
	"github.com/nerrad567/ams-auth/internal/infrastructure/config"
	"github.com/nerrad567/ams-auth/internal/infrastructure/influxdb"
	"github.com/nerrad567/ams-auth/internal/infrastructure/logging"
	"github.com/nerrad567/ams-auth/internal/infrastructure/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker reports whether a backing service is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Login   *auth.LoginService
	Refresh *auth.RefreshTokenService
	Access  *auth.AccessTokenService
	Users   auth.UserRepository

	// Strategies overrides the default registry, which holds only the
	// bearer JWT strategy over Access.
	Strategies *StrategyRegistry

	// Optional.
	Database    HealthChecker
	Metrics     *metrics.Metrics
	MetricsPath string
	Stats       *influxdb.Client
	Version     string
}

// Server is the HTTP API server.
//
// It owns the router, the pre-auth middleware stack and the listener.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	login       *auth.LoginService
	refresh     *auth.RefreshTokenService
	users       auth.UserRepository
	strategies  *StrategyRegistry
	gate        auth.Gate
	database    HealthChecker
	metrics     *metrics.Metrics
	metricsPath string
	stats       *influxdb.Client
	version     string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.Login == nil:
		return nil, errors.New("login service is required")
	case deps.Refresh == nil:
		return nil, errors.New("refresh token service is required")
	case deps.Users == nil:
		return nil, errors.New("user repository is required")
	case deps.Strategies == nil && deps.Access == nil:
		return nil, errors.New("access token service or strategy registry is required")
	}

	strategies := deps.Strategies
	if strategies == nil {
		strategies = NewStrategyRegistry(NewJWTStrategy(deps.Access))
	}
	metricsPath := deps.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	return &Server{
		cfg:         deps.Config,
		logger:      deps.Logger.With("component", "api"),
		login:       deps.Login,
		refresh:     deps.Refresh,
		users:       deps.Users,
		strategies:  strategies,
		database:    deps.Database,
		metrics:     deps.Metrics,
		metricsPath: metricsPath,
		stats:       deps.Stats,
		version:     deps.Version,
	}, nil
}

// Handler returns the full HTTP handler: middleware, routes and error
// mapping. Start serves it; tests drive it through httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine. Binding
// errors such as a port already in use are returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}
	s.server = srv
	s.listener = listener

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", listener.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = srv.ServeTLS(listener, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", listener.Addr().String())
			err = srv.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server is running and its database answers.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.database != nil {
		if err := s.database.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api health check: %w", err)
		}
	}
	return nil
}
