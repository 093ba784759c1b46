package auth

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testIdentity() Identity {
	return Identity{
		ID:          "01HZX3K4Q3S9W7M2B8V5N6C1D0",
		Email:       "ada@example.com",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Permissions: []PermissionKey{ViewOwnUser, UpdateOwnUser},
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	clock := newTestClock()
	svc := NewAccessTokenService([]byte(testAccessSecret), 15*time.Minute, WithClock(clock.Now))

	identities := []Identity{
		testIdentity(),
		{ID: "u-2", Email: "root@example.com", Permissions: []PermissionKey{SuperUser}},
		{ID: "u-3", Email: "bare@example.com", Permissions: []PermissionKey{}},
	}

	for _, want := range identities {
		token, err := svc.Generate(want)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if parts := strings.Split(token, "."); len(parts) != 3 {
			t.Fatalf("token has %d segments, want 3", len(parts))
		}

		clock.Advance(14 * time.Minute)
		got, err := svc.Verify(context.Background(), token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Verify() = %+v, want %+v", got, want)
		}
		clock.Advance(-14 * time.Minute)
	}
}

func TestAccessToken_NilPermissions(t *testing.T) {
	clock := newTestClock()
	svc := NewAccessTokenService([]byte(testAccessSecret), 15*time.Minute, WithClock(clock.Now))

	in := Identity{ID: "u-4", Email: "nil@example.com"}
	token, err := svc.Generate(in)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	got, err := svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.Permissions == nil || len(got.Permissions) != 0 {
		t.Fatalf("Permissions = %#v, want empty non-nil slice", got.Permissions)
	}

	want := in
	want.Permissions = []PermissionKey{}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Verify() = %+v, want %+v", got, want)
	}

	user := &User{ID: "u-4", Email: "nil@example.com"}
	if !reflect.DeepEqual(got, user.ToIdentity()) {
		t.Errorf("Verify() = %+v, want ToIdentity() = %+v", got, user.ToIdentity())
	}

	// A token signed without the claim at all decodes the same way.
	claims := jwt.MapClaims{
		"sub":   "u-5",
		"email": "bare@example.com",
		"iat":   clock.Now().Unix(),
		"exp":   clock.Now().Add(time.Minute).Unix(),
	}
	bare, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	got, err = svc.Verify(context.Background(), bare)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.Permissions == nil {
		t.Error("Permissions = nil for a token without the claim, want empty slice")
	}
}

func TestAccessToken_Deterministic(t *testing.T) {
	clock := newTestClock()
	svc := NewAccessTokenService([]byte(testAccessSecret), time.Minute, WithClock(clock.Now))

	a, err := svc.Generate(testIdentity())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b, err := svc.Generate(testIdentity())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if a != b {
		t.Error("Generate() differs for identical identity, secret and time")
	}
}

func TestAccessToken_ClaimsShape(t *testing.T) {
	clock := newTestClock()
	svc := NewAccessTokenService([]byte(testAccessSecret), 15*time.Minute, WithClock(clock.Now))

	token, err := svc.Generate(testIdentity())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		t.Fatalf("ParseUnverified() error = %v", err)
	}
	if claims.Subject != testIdentity().ID {
		t.Errorf("sub = %q, want %q", claims.Subject, testIdentity().ID)
	}
	if !claims.IssuedAt.Equal(clock.Now()) {
		t.Errorf("iat = %v, want %v", claims.IssuedAt.Time, clock.Now())
	}
	if !claims.ExpiresAt.Equal(clock.Now().Add(15 * time.Minute)) {
		t.Errorf("exp = %v, want iat+15m", claims.ExpiresAt.Time)
	}
	if svc.ExpiresIn() != 15*time.Minute {
		t.Errorf("ExpiresIn() = %v, want 15m", svc.ExpiresIn())
	}
}

func TestAccessToken_Expired(t *testing.T) {
	clock := newTestClock()
	svc := NewAccessTokenService([]byte(testAccessSecret), 15*time.Minute, WithClock(clock.Now))

	token, err := svc.Generate(testIdentity())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	clock.Advance(15*time.Minute + time.Second)
	_, err = svc.Verify(context.Background(), token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify() error = %v, want ErrTokenExpired", err)
	}
	if errors.Is(err, ErrTokenInvalid) {
		t.Error("expired token should not also report ErrTokenInvalid")
	}
}

func TestAccessToken_Invalid(t *testing.T) {
	clock := newTestClock()
	svc := NewAccessTokenService([]byte(testAccessSecret), 15*time.Minute, WithClock(clock.Now))
	other := NewAccessTokenService([]byte("another-secret-of-at-least-32-characters"), 15*time.Minute, WithClock(clock.Now))

	good, err := svc.Generate(testIdentity())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	superID := testIdentity()
	superID.Permissions = []PermissionKey{SuperUser}
	forged, err := svc.Generate(superID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	goodParts := strings.Split(good, ".")
	forgedParts := strings.Split(forged, ".")
	spliced := goodParts[0] + "." + forgedParts[1] + "." + goodParts[2]

	foreign, err := other.Generate(testIdentity())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x", "exp": clock.Now().Add(time.Hour).Unix()})
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString(none) error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"two segments", goodParts[0] + "." + goodParts[1]},
		{"payload swapped", spliced},
		{"wrong secret", foreign},
		{"alg none", noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(context.Background(), tt.token)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestAccessToken_ExpiredWithBadSignatureIsInvalid(t *testing.T) {
	clock := newTestClock()
	svc := NewAccessTokenService([]byte(testAccessSecret), time.Minute, WithClock(clock.Now))
	other := NewAccessTokenService([]byte("another-secret-of-at-least-32-characters"), time.Minute, WithClock(clock.Now))

	token, err := other.Generate(testIdentity())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	clock.Advance(time.Hour)

	_, err = svc.Verify(context.Background(), token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}

func TestAccessToken_CancelledContext(t *testing.T) {
	svc := NewAccessTokenService([]byte(testAccessSecret), time.Minute)
	token, err := svc.Generate(testIdentity())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Verify(ctx, token); !errors.Is(err, context.Canceled) {
		t.Errorf("Verify() error = %v, want context.Canceled", err)
	}
}

func TestAccessToken_DefaultTTL(t *testing.T) {
	svc := NewAccessTokenService([]byte(testAccessSecret), 0)
	if svc.ExpiresIn() != DefaultAccessTokenTTL {
		t.Errorf("ExpiresIn() = %v, want %v", svc.ExpiresIn(), DefaultAccessTokenTTL)
	}
}

func TestAccessToken_RequiresID(t *testing.T) {
	svc := NewAccessTokenService([]byte(testAccessSecret), time.Minute)
	if _, err := svc.Generate(Identity{Email: "x@example.com"}); err == nil {
		t.Error("Generate() should fail for identity without id")
	}
}
