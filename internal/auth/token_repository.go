package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const refreshTokenColumns = "id, user_id, token, created_at, updated_at"

// SQLiteTokenRepository implements RefreshTokenStore using SQLite. The
// refresh_tokens.user_id UNIQUE constraint backs the one-record-per-user
// rule.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed refresh token store.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// FindByUser returns the record owned by userID.
func (r *SQLiteTokenRepository) FindByUser(ctx context.Context, userID string) (*RefreshToken, error) {
	return scanRefreshToken(r.db.QueryRowContext(ctx,
		"SELECT "+refreshTokenColumns+" FROM refresh_tokens WHERE user_id = ?", userID))
}

// FindByValue returns the record holding exactly value.
func (r *SQLiteTokenRepository) FindByValue(ctx context.Context, value string) (*RefreshToken, error) {
	return scanRefreshToken(r.db.QueryRowContext(ctx,
		"SELECT "+refreshTokenColumns+" FROM refresh_tokens WHERE token = ?", value))
}

// Insert adds a new record. The ID is generated if empty. A second record
// for the same user violates the UNIQUE constraint and fails.
func (r *SQLiteTokenRepository) Insert(ctx context.Context, rec *RefreshToken) error {
	if rec.ID == "" {
		rec.ID = newRefreshTokenID()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Token, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

// UpdateByID overwrites the token value and owner of record id.
func (r *SQLiteTokenRepository) UpdateByID(ctx context.Context, id string, rec *RefreshToken) error {
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET user_id = ?, token = ?, updated_at = ? WHERE id = ?",
		rec.UserID, rec.Token, formatTime(updatedAt), id)
	if err != nil {
		return fmt.Errorf("updating refresh token: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}

// DeleteByValue removes the record holding value.
func (r *SQLiteTokenRepository) DeleteByValue(ctx context.Context, value string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token = ?", value)
	if err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}

// Upsert stores value as the live token for userID in one statement.
func (r *SQLiteTokenRepository) Upsert(ctx context.Context, userID, value string, at time.Time) (*RefreshToken, error) {
	stamp := formatTime(at)
	return scanRefreshToken(r.db.QueryRowContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
		 RETURNING `+refreshTokenColumns,
		newRefreshTokenID(), userID, value, stamp, stamp,
	))
}

// Replace swaps oldValue for newValue in one statement.
func (r *SQLiteTokenRepository) Replace(ctx context.Context, oldValue, newValue string, at time.Time) (*RefreshToken, error) {
	return scanRefreshToken(r.db.QueryRowContext(ctx,
		`UPDATE refresh_tokens SET token = ?, updated_at = ? WHERE token = ?
		 RETURNING `+refreshTokenColumns,
		newValue, formatTime(at), oldValue,
	))
}

func scanRefreshToken(row *sql.Row) (*RefreshToken, error) {
	var t RefreshToken
	var createdAt, updatedAt string

	if err := row.Scan(&t.ID, &t.UserID, &t.Token, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("scanning refresh token: %w", err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt) //nolint:errcheck // format is controlled
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt) //nolint:errcheck // format is controlled
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
