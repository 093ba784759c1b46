package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ams-auth/internal/auth"
)

// Args carries everything a route handler may read. Body is whatever the
// route's Parse returned; Identity is set only on authenticated routes.
type Args struct {
	Body     any
	Params   map[string]string
	Identity auth.Identity
}

// ParseFunc decodes and validates the request arguments.
type ParseFunc func(r *http.Request) (any, error)

// HandlerFunc runs the route logic and returns the status and body to send.
// A nil body sends no content.
type HandlerFunc func(ctx context.Context, args Args) (int, any, error)

// Route declares one endpoint. Auth nil means the route carries no auth
// metadata; auth.Public() marks it exempt explicitly.
type Route struct {
	Method  string
	Pattern string
	Auth    *auth.RouteAuth
	Parse   ParseFunc
	Handle  HandlerFunc
}

// Strategy authenticates a request and yields the caller's identity.
type Strategy interface {
	Name() string
	Authenticate(r *http.Request) (auth.Identity, error)
}

// StrategyRegistry maps strategy names to implementations.
type StrategyRegistry struct {
	mu     sync.RWMutex
	byName map[string]Strategy
}

// NewStrategyRegistry returns a registry holding strategies.
func NewStrategyRegistry(strategies ...Strategy) *StrategyRegistry {
	reg := &StrategyRegistry{byName: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		reg.Register(s)
	}
	return reg
}

// Register adds or replaces a strategy.
func (r *StrategyRegistry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[s.Name()] = s
}

// Lookup returns the named strategy or an error wrapping
// auth.ErrStrategyNotFound.
func (r *StrategyRegistry) Lookup(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", auth.ErrStrategyNotFound, name)
	}
	return s, nil
}

// TokenVerifier verifies an access token. *auth.AccessTokenService
// satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// JWTStrategy authenticates "Authorization: Bearer <token>" headers.
type JWTStrategy struct {
	tokens TokenVerifier
}

// NewJWTStrategy returns the bearer strategy backed by tokens.
func NewJWTStrategy(tokens TokenVerifier) *JWTStrategy {
	return &JWTStrategy{tokens: tokens}
}

func (*JWTStrategy) Name() string { return auth.StrategyJWT }

// Authenticate extracts the bearer token and verifies it. Verification
// errors pass through unchanged so an expired token still matches
// auth.ErrTokenExpired.
func (s *JWTStrategy) Authenticate(r *http.Request) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Identity{}, auth.Unauthorized("Authorization header not found.", auth.ErrTokenInvalid)
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return auth.Identity{}, auth.Unauthorized("Authorization header is not of type 'Bearer'.", auth.ErrTokenInvalid)
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, " ") {
		return auth.Identity{}, auth.Unauthorized(
			"Authorization header value must follow the pattern: 'Bearer xx.yy.zz'.", auth.ErrTokenInvalid)
	}

	return s.tokens.Verify(r.Context(), token)
}

// validator is implemented by request bodies that check their own shape.
type validator interface {
	Validate() error
}

// JSONBody returns a ParseFunc decoding the body into a new T and running
// its Validate method when it has one. The parsed value is a *T.
func JSONBody[T any]() ParseFunc {
	return func(r *http.Request) (any, error) {
		if r.Body == nil || r.Body == http.NoBody {
			return nil, auth.BadRequest("Request body is required.", nil)
		}

		v := new(T)
		if err := json.NewDecoder(r.Body).Decode(v); err != nil {
			var maxBytes *http.MaxBytesError
			switch {
			case errors.As(err, &maxBytes):
				return nil, err
			case errors.Is(err, io.EOF):
				return nil, auth.BadRequest("Request body is required.", err)
			default:
				return nil, auth.BadRequest("Request body is not valid JSON for this endpoint.", err)
			}
		}

		if val, ok := any(v).(validator); ok {
			if err := val.Validate(); err != nil {
				var authErr *auth.Error
				if errors.As(err, &authErr) {
					return nil, err
				}
				return nil, auth.BadRequest(err.Error(), err)
			}
		}
		return v, nil
	}
}

// bodyAs returns the parsed body of a route declared with JSONBody[T].
func bodyAs[T any](args Args) *T {
	v, _ := args.Body.(*T)
	return v
}

// handle turns a Route into an http.Handler: parse, authenticate,
// authorise, invoke, send. The first failing stage ends the request
// through writeFailure.
func (s *Server) handle(route Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		args := Args{Params: urlParams(r)}

		if route.Parse != nil {
			body, err := route.Parse(r)
			if err != nil {
				s.writeFailure(w, r, err)
				return
			}
			args.Body = body
		}

		if route.Auth != nil && !route.Auth.Skip {
			identity, err := s.authenticate(r, route.Auth)
			if err != nil {
				s.recordAuth("authenticate", err)
				s.writeFailure(w, r, err)
				return
			}
			ctx = auth.ContextWithIdentity(ctx, identity)
			args.Identity = identity
		}

		if err := s.gate.Authorize(ctx, route.Auth); err != nil {
			s.recordAuth("authorize", err)
			s.writeFailure(w, r, err)
			return
		}

		status, body, err := route.Handle(ctx, args)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		if body == nil {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, body)
	})
}

func (s *Server) authenticate(r *http.Request, meta *auth.RouteAuth) (auth.Identity, error) {
	name := meta.StrategyName()
	if rm := metaFrom(r.Context()); rm != nil {
		rm.Strategy = name
	}

	strategy, err := s.strategies.Lookup(name)
	if err != nil {
		return auth.Identity{}, err
	}
	return strategy.Authenticate(r)
}

func urlParams(r *http.Request) map[string]string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || len(rctx.URLParams.Keys) == 0 {
		return nil
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		params[key] = rctx.URLParams.Values[i]
	}
	return params
}
