package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ams-auth/internal/auth"
	"github.com/nerrad567/ams-auth/internal/infrastructure/config"
	"github.com/nerrad567/ams-auth/internal/infrastructure/database"
	"github.com/nerrad567/ams-auth/internal/infrastructure/logging"
	"github.com/nerrad567/ams-auth/internal/infrastructure/metrics"
	"github.com/nerrad567/ams-auth/migrations"
)

const (
	testAccessSecret  = "api-test-access-secret-0123456789abcdef"
	testRefreshSecret = "api-test-refresh-secret-0123456789abcdef"
	testPassword      = "correct-horse-battery"
)

// testClock is a mutable time source shared by both token services.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv is a fully wired server over a migrated temp SQLite database.
type testEnv struct {
	server  *Server
	handler http.Handler
	db      *database.DB
	users   auth.UserRepository
	metrics *metrics.Metrics
	clock   *testClock
}

type envOption func(*Deps)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "ams.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.SQLite()); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	users := auth.NewUserRepository(db.DB)
	access := auth.NewAccessTokenService([]byte(testAccessSecret), 15*time.Minute, auth.WithClock(clock.Now))
	refresh := auth.NewRefreshTokenService(auth.RefreshTokenConfig{
		Secret: []byte(testRefreshSecret),
		TTL:    time.Hour,
	}, auth.NewTokenRepository(db.DB), users, access, auth.WithRefreshClock(clock.Now))
	m := metrics.New("test")

	deps := Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:   logging.Discard(),
		Login:    auth.NewLoginService(users, access, refresh),
		Refresh:  refresh,
		Access:   access,
		Users:    users,
		Database: db,
		Metrics:  m,
		Version:  "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{
		server:  srv,
		handler: srv.Handler(),
		db:      db,
		users:   users,
		metrics: m,
		clock:   clock,
	}
}

// provision creates an active user holding perms.
func (e *testEnv) provision(t *testing.T, email string, perms ...auth.PermissionKey) *auth.User {
	t.Helper()
	user, err := auth.ProvisionUser(context.Background(), e.users, auth.NewUser{
		Email:     email,
		Password:  testPassword,
		FirstName: "Test",
		LastName:  "User",
	}, perms)
	if err != nil {
		t.Fatalf("provisioning %s: %v", email, err)
	}
	return user
}

// do sends a request through the full handler. body may be nil, a string
// (sent raw) or any JSON-marshalable value.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf *bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewBuffer(raw)
	}

	var req *http.Request
	if buf != nil {
		req = httptest.NewRequest(method, path, buf)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// login returns a token pair for email, failing the test otherwise.
func (e *testEnv) login(t *testing.T, email string) auth.TokenObject {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/user/login", map[string]string{
		"email":    email,
		"password": testPassword,
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var tokens auth.TokenObject
	decodeBody(t, rec, &tokens)
	return tokens
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var env errorEnvelope
	decodeBody(t, rec, &env)
	return env.Error
}
