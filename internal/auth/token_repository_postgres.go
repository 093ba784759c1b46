package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DBTX is the subset of database/sql the PostgreSQL repositories use.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresTokenRepository implements RefreshTokenStore over PostgreSQL.
type PostgresTokenRepository struct {
	db DBTX
}

// NewPostgresTokenRepository constructs a store bound to db.
func NewPostgresTokenRepository(db DBTX) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db}
}

func (r *PostgresTokenRepository) FindByUser(ctx context.Context, userID string) (*RefreshToken, error) {
	query := `
		SELECT id, user_id, token, created_at, updated_at
		FROM refresh_tokens
		WHERE user_id = $1
	`
	return scanPostgresToken(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresTokenRepository) FindByValue(ctx context.Context, value string) (*RefreshToken, error) {
	query := `
		SELECT id, user_id, token, created_at, updated_at
		FROM refresh_tokens
		WHERE token = $1
	`
	return scanPostgresToken(r.db.QueryRowContext(ctx, query, value))
}

func (r *PostgresTokenRepository) Insert(ctx context.Context, rec *RefreshToken) error {
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

	query := `
		INSERT INTO refresh_tokens (id, user_id, token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, rec.ID, rec.UserID, rec.Token, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

func (r *PostgresTokenRepository) UpdateByID(ctx context.Context, id string, rec *RefreshToken) error {
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		UPDATE refresh_tokens
		SET user_id = $1, token = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := r.db.ExecContext(ctx, query, rec.UserID, rec.Token, updatedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("updating refresh token: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}

func (r *PostgresTokenRepository) DeleteByValue(ctx context.Context, value string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1
	`
	result, err := r.db.ExecContext(ctx, query, value)
	if err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}

// Upsert relies on the unique index on refresh_tokens.user_id.
func (r *PostgresTokenRepository) Upsert(ctx context.Context, userID, value string, at time.Time) (*RefreshToken, error) {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, token, created_at, updated_at
	`
	return scanPostgresToken(r.db.QueryRowContext(ctx, query, newRefreshTokenID(), userID, value, at.UTC()))
}

func (r *PostgresTokenRepository) Replace(ctx context.Context, oldValue, newValue string, at time.Time) (*RefreshToken, error) {
	query := `
		UPDATE refresh_tokens
		SET token = $1, updated_at = $2
		WHERE token = $3
		RETURNING id, user_id, token, created_at, updated_at
	`
	return scanPostgresToken(r.db.QueryRowContext(ctx, query, newValue, at.UTC(), oldValue))
}

func scanPostgresToken(row *sql.Row) (*RefreshToken, error) {
	var t RefreshToken
	if err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}
