package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Refresh token defaults.
const (
	DefaultRefreshIssuer   = "JWT_test"
	DefaultRefreshTokenTTL = 2629743 * time.Second // about one month
)

// RefreshTokenConfig holds the refresh signing parameters. Secret must
// differ from the access token secret.
type RefreshTokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// refreshClaims wrap the opaque random value that makes each refresh
// token unique.
type refreshClaims struct {
	jwt.RegisteredClaims
	Token string `json:"token"`
}

// RefreshTokenService issues, rotates and revokes refresh tokens. Each user
// has at most one live refresh token; issuing a new one replaces the old.
type RefreshTokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration

	store  RefreshTokenStore
	users  UserLookup
	access *AccessTokenService
	logger *slog.Logger
	now    func() time.Time
}

// RefreshTokenOption configures a RefreshTokenService.
type RefreshTokenOption func(*RefreshTokenService)

// WithRefreshClock overrides the time source for signing, verification and
// record timestamps.
func WithRefreshClock(now func() time.Time) RefreshTokenOption {
	return func(s *RefreshTokenService) { s.now = now }
}

// WithRefreshLogger sets the logger used for swallowed revocation errors.
func WithRefreshLogger(logger *slog.Logger) RefreshTokenOption {
	return func(s *RefreshTokenService) { s.logger = logger }
}

// NewRefreshTokenService creates a refresh token service.
func NewRefreshTokenService(cfg RefreshTokenConfig, store RefreshTokenStore, users UserLookup, access *AccessTokenService, opts ...RefreshTokenOption) *RefreshTokenService {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultRefreshIssuer
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRefreshTokenTTL
	}
	s := &RefreshTokenService{
		secret: append([]byte(nil), cfg.Secret...),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		store:  store,
		users:  users,
		access: access,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate issues a refresh token for identity and stores it as the
// user's only live record, replacing any previous one. The returned
// TokenObject pairs it with accessToken.
func (s *RefreshTokenService) Generate(ctx context.Context, identity Identity, accessToken string) (TokenObject, error) {
	value, err := s.sign()
	if err != nil {
		return TokenObject{}, err
	}

	if _, err := s.store.Upsert(ctx, identity.ID, value, s.now()); err != nil {
		return TokenObject{}, fmt.Errorf("storing refresh token: %w", err)
	}

	return s.tokenObject(accessToken, value), nil
}

// Refresh exchanges a live refresh token for a new access and refresh
// pair. The user record is reloaded so permission changes apply. The old
// value stops matching any record, so presenting it again fails. Every
// failure is reported as Unauthorized.
func (s *RefreshTokenService) Refresh(ctx context.Context, value string) (TokenObject, error) {
	rec, err := s.Verify(ctx, value)
	if err != nil {
		return TokenObject{}, err
	}

	user, err := s.users.FindByID(ctx, rec.UserID)
	if err != nil {
		return TokenObject{}, Unauthorized("invalid token", err)
	}
	if !user.Status {
		return TokenObject{}, Unauthorized("invalid token", ErrUserInactive)
	}

	identity := user.ToIdentity()
	accessToken, err := s.access.Generate(identity)
	if err != nil {
		return TokenObject{}, Unauthorized("Error generating token", err)
	}

	next, err := s.sign()
	if err != nil {
		return TokenObject{}, Unauthorized("Error generating token", err)
	}
	if _, err := s.store.Replace(ctx, value, next, s.now()); err != nil {
		return TokenObject{}, Unauthorized("invalid token", err)
	}

	return s.tokenObject(accessToken, next), nil
}

// Revoke deletes the record holding value. It never fails: a missing
// record or a store error is logged and dropped.
func (s *RefreshTokenService) Revoke(ctx context.Context, value string) {
	if value == "" {
		return
	}
	if err := s.store.DeleteByValue(ctx, value); err != nil && !errors.Is(err, ErrRefreshTokenNotFound) {
		s.logger.Debug("refresh token revocation failed", "error", err)
	}
}

// Verify checks the signature, issuer and expiry of value and returns the
// stored record that currently holds it.
func (s *RefreshTokenService) Verify(ctx context.Context, value string) (*RefreshToken, error) {
	if value == "" {
		return nil, Unauthorized("Error verifying token: refresh token is empty", nil)
	}

	token, err := jwt.ParseWithClaims(value, &refreshClaims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, Unauthorized("Error verifying token", fmt.Errorf("%w: %w", ErrTokenExpired, err))
		}
		return nil, Unauthorized("Error verifying token", fmt.Errorf("%w: %w", ErrTokenInvalid, err))
	}
	if claims, ok := token.Claims.(*refreshClaims); !ok || claims.Token == "" {
		return nil, Unauthorized("Error verifying token", ErrTokenInvalid)
	}

	rec, err := s.store.FindByValue(ctx, value)
	if err != nil {
		return nil, Unauthorized("Error verifying token: invalid token", err)
	}
	return rec, nil
}

// sign creates a new signed refresh token value.
func (s *RefreshTokenService) sign() (string, error) {
	now := s.now()
	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Token: uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing refresh token: %w", err)
	}
	return signed, nil
}

func (s *RefreshTokenService) tokenObject(accessToken, refreshToken string) TokenObject {
	return TokenObject{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.access.ExpiresIn() / time.Second),
	}
}
