package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nerrad567/ams-auth/internal/auth"
)

// ─── Request Types ─────────────────────────────────────────────────

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate reports a missing field as a credential failure so a well-formed
// login request only ever gets 200 or 401.
func (r *loginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return auth.InvalidCredentials(errors.New("missing email or password"))
	}
	return nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *refreshRequest) Validate() error {
	if strings.TrimSpace(r.RefreshToken) == "" {
		return auth.BadRequest("refreshToken is required", nil)
	}
	return nil
}

// ─── Routes ────────────────────────────────────────────────────────

// userRoutes declares the account endpoints and their auth metadata.
func (s *Server) userRoutes() []Route {
	return []Route{
		{
			Method:  http.MethodPost,
			Pattern: "/user/login",
			Auth:    auth.Public(),
			Parse:   JSONBody[loginRequest](),
			Handle:  s.handleLogin,
		},
		{
			Method:  http.MethodPost,
			Pattern: "/user/refresh",
			Auth:    auth.Public(),
			Parse:   JSONBody[refreshRequest](),
			Handle:  s.handleRefresh,
		},
		{
			Method:  http.MethodPost,
			Pattern: "/user/logout",
			Auth:    auth.Public(),
			Parse:   JSONBody[refreshRequest](),
			Handle:  s.handleLogout,
		},
		{
			Method:  http.MethodPost,
			Pattern: "/user/signup",
			Auth:    auth.Public(),
			Parse:   JSONBody[auth.NewUser](),
			Handle:  s.handleSignup,
		},
		{
			Method:  http.MethodGet,
			Pattern: "/users/me",
			Auth:    auth.Authenticated(),
			Handle:  s.handleCurrentUser,
		},
		{
			Method:  http.MethodGet,
			Pattern: "/users",
			Auth:    auth.Authenticated(auth.SuperUser),
			Handle:  s.handleListUsers,
		},
		{
			Method:  http.MethodGet,
			Pattern: "/users/{id}",
			Auth:    auth.Authenticated(auth.SuperUser),
			Handle:  s.handleGetUser,
		},
	}
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleLogin exchanges credentials for a token pair.
func (s *Server) handleLogin(ctx context.Context, args Args) (int, any, error) {
	req := bodyAs[loginRequest](args)
	tokens, err := s.login.Login(ctx, req.Email, req.Password)
	s.recordAuth("login", err)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, tokens, nil
}

// handleRefresh rotates a refresh token and issues a new access token.
func (s *Server) handleRefresh(ctx context.Context, args Args) (int, any, error) {
	req := bodyAs[refreshRequest](args)
	tokens, err := s.refresh.Refresh(ctx, req.RefreshToken)
	s.recordAuth("refresh", err)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, tokens, nil
}

// handleLogout revokes the refresh token. It always succeeds so callers
// cannot tell which tokens exist.
func (s *Server) handleLogout(ctx context.Context, args Args) (int, any, error) {
	req := bodyAs[refreshRequest](args)
	s.refresh.Revoke(ctx, req.RefreshToken)
	s.recordAuth("logout", nil)
	return http.StatusNoContent, nil, nil
}

// handleSignup creates an inactive account with default permissions.
func (s *Server) handleSignup(ctx context.Context, args Args) (int, any, error) {
	req := bodyAs[auth.NewUser](args)
	user, err := s.login.Signup(ctx, *req)
	s.recordAuth("signup", err)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, user, nil
}

// handleCurrentUser returns the identity carried by the access token.
func (s *Server) handleCurrentUser(_ context.Context, args Args) (int, any, error) {
	return http.StatusOK, args.Identity, nil
}

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(ctx context.Context, _ Args) (int, any, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("listing users: %w", err)
	}
	if users == nil {
		users = []auth.User{}
	}
	return http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	}, nil
}

// handleGetUser returns a single account by id.
func (s *Server) handleGetUser(ctx context.Context, args Args) (int, any, error) {
	id := args.Params["id"]
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return 0, nil, fmt.Errorf("%w: user %q", ErrNotFound, id)
		}
		return 0, nil, fmt.Errorf("getting user: %w", err)
	}
	return http.StatusOK, user, nil
}

// recordAuth reports an auth outcome to Prometheus and InfluxDB.
func (s *Server) recordAuth(action string, err error) {
	outcome := authOutcome(err)
	if s.metrics != nil {
		s.metrics.AuthOutcome(action, outcome)
	}
	s.stats.WriteAuthEvent(action, outcome)
}

func authOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrForbidden):
		return "forbidden"
	case errors.Is(err, auth.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, auth.ErrEmailExists):
		return "conflict"
	case errors.Is(err, auth.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, auth.ErrStrategyNotFound):
		return "strategy_not_found"
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrTokenInvalid):
		return "unauthorized"
	default:
		return "error"
	}
}
