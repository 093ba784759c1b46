package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	testAccessSecret  = "test-access-secret-at-least-32-characters"
	testRefreshSecret = "test-refresh-secret-at-least-32-characters"
)

// testDB creates a temporary SQLite database with the auth schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() {
		os.Remove(dbPath)
		os.Remove(dbPath + "-wal")
		os.Remove(dbPath + "-shm")
	})

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT,
			password_hash TEXT NOT NULL,
			status INTEGER NOT NULL DEFAULT 0,
			permissions TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE refresh_tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			token TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying auth schema: %v", err)
	}

	return db
}

// seedTestUser inserts an active user holding perms and returns it.
func seedTestUser(t *testing.T, db *sql.DB, email string, perms ...PermissionKey) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &User{
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: hash,
		Status:       true,
		Permissions:  perms,
	}
	if err := NewUserRepository(db).Create(t.Context(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}

// testClock is a manually advanced time source.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// testServices wires the access and refresh services over the given stores.
func testServices(t *testing.T, store RefreshTokenStore, users UserLookup, clock *testClock) (*AccessTokenService, *RefreshTokenService) {
	t.Helper()

	access := NewAccessTokenService([]byte(testAccessSecret), 15*time.Minute, WithClock(clock.Now))
	refresh := NewRefreshTokenService(RefreshTokenConfig{
		Secret: []byte(testRefreshSecret),
		Issuer: DefaultRefreshIssuer,
		TTL:    time.Hour,
	}, store, users, access, WithRefreshClock(clock.Now))
	return access, refresh
}

// stubUsers is a map-backed UserRepository.
type stubUsers struct {
	byID map[string]*User
}

func newStubUsers(users ...*User) *stubUsers {
	s := &stubUsers{byID: make(map[string]*User)}
	for _, u := range users {
		s.byID[u.ID] = u
	}
	return s
}

func (s *stubUsers) FindByID(_ context.Context, id string) (*User, error) {
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (s *stubUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range s.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *stubUsers) Create(_ context.Context, user *User) error {
	for _, u := range s.byID {
		if u.Email == user.Email {
			return ErrEmailExists
		}
	}
	if user.ID == "" {
		user.ID = NewUserID(time.Now())
	}
	s.byID[user.ID] = user
	return nil
}

func (s *stubUsers) SetStatus(_ context.Context, id string, active bool) error {
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Status = active
	return nil
}

func (s *stubUsers) List(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (s *stubUsers) Count(_ context.Context) (int, error) {
	return len(s.byID), nil
}
