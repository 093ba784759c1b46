package auth

import (
	"context"
	"time"
)

// UserLookup resolves persisted accounts. Implementations return
// ErrUserNotFound when no account matches.
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
}

// UserRepository is the full account store used by signup, the CLI and
// the admin routes.
type UserRepository interface {
	UserLookup
	Create(ctx context.Context, user *User) error
	SetStatus(ctx context.Context, id string, active bool) error
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int, error)
}

// RefreshTokenStore persists refresh-token records. Lookups return
// ErrRefreshTokenNotFound when nothing matches.
//
// Upsert and Replace are the operations the service relies on for the
// one-record-per-user invariant; each must be a single atomic step in the
// backing store.
type RefreshTokenStore interface {
	FindByUser(ctx context.Context, userID string) (*RefreshToken, error)
	FindByValue(ctx context.Context, value string) (*RefreshToken, error)
	Insert(ctx context.Context, rec *RefreshToken) error
	UpdateByID(ctx context.Context, id string, rec *RefreshToken) error
	DeleteByValue(ctx context.Context, value string) error

	// Upsert stores value as the live token for userID, updating the
	// existing record in place or inserting one.
	Upsert(ctx context.Context, userID, value string, at time.Time) (*RefreshToken, error)

	// Replace swaps oldValue for newValue on the record that currently
	// holds oldValue. It returns ErrRefreshTokenNotFound if no record holds
	// oldValue, which is how a lost rotation race is detected.
	Replace(ctx context.Context, oldValue, newValue string, at time.Time) (*RefreshToken, error)
}
