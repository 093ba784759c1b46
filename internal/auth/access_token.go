package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the access token lifetime used when none is configured.
const DefaultAccessTokenTTL = 15 * time.Minute

// AccessClaims are the JWT claims of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email       string          `json:"email"`
	FirstName   string          `json:"firstName,omitempty"`
	LastName    string          `json:"lastName,omitempty"`
	Permissions []PermissionKey `json:"permissions"`
}

// AccessTokenService signs and verifies access tokens with a single
// process-wide HS256 secret.
type AccessTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// AccessTokenOption configures an AccessTokenService.
type AccessTokenOption func(*AccessTokenService)

// WithClock overrides the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) AccessTokenOption {
	return func(s *AccessTokenService) { s.now = now }
}

// NewAccessTokenService creates an access token service. A non-positive
// ttl falls back to DefaultAccessTokenTTL.
func NewAccessTokenService(secret []byte, ttl time.Duration, opts ...AccessTokenOption) *AccessTokenService {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	s := &AccessTokenService{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExpiresIn returns the configured access token lifetime.
func (s *AccessTokenService) ExpiresIn() time.Duration {
	return s.ttl
}

// Generate signs an access token for identity. The output depends only on
// the identity, the secret and the current time. Nil permissions are signed
// as an empty list.
func (s *AccessTokenService) Generate(identity Identity) (string, error) {
	if identity.ID == "" {
		return "", fmt.Errorf("%w: identity has no id", ErrTokenInvalid)
	}

	now := s.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email:       identity.Email,
		FirstName:   identity.FirstName,
		LastName:    identity.LastName,
		Permissions: identity.Permissions,
	}
	if claims.Permissions == nil {
		claims.Permissions = []PermissionKey{}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns the embedded
// identity. It returns ErrTokenExpired for a genuine but expired token and
// ErrTokenInvalid for anything else that fails. The user record is not
// consulted. Permissions is never nil, matching User.ToIdentity, so an
// identity with nil permissions comes back with an empty slice.
func (s *AccessTokenService) Verify(ctx context.Context, tokenString string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	if tokenString == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return Identity{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	perms := claims.Permissions
	if perms == nil {
		perms = []PermissionKey{}
	}
	return Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		FirstName:   claims.FirstName,
		LastName:    claims.LastName,
		Permissions: perms,
	}, nil
}
