package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresUserRepository implements UserRepository over PostgreSQL.
// Permissions are stored as a jsonb array.
type PostgresUserRepository struct {
	db DBTX
}

// NewPostgresUserRepository constructs a repository bound to db.
func NewPostgresUserRepository(db DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = NewUserID(now)
	}
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	perms, err := encodePermissions(user.Permissions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, email, first_name, last_name, phone, password_hash, status, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.FirstName, user.LastName, nullString(user.Phone),
		user.PasswordHash, user.Status, perms, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, first_name, last_name, phone, password_hash, status, permissions, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return scanPostgresUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, first_name, last_name, phone, password_hash, status, permissions, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return scanPostgresUser(r.db.QueryRowContext(ctx, query, strings.ToLower(email)))
}

func (r *PostgresUserRepository) SetStatus(ctx context.Context, id string, active bool) error {
	query := `
		UPDATE users
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating user status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) List(ctx context.Context) ([]User, error) {
	query := `
		SELECT id, email, first_name, last_name, phone, password_hash, status, permissions, created_at, updated_at
		FROM users
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanPostgresUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func scanPostgresUser(s scanner) (*User, error) {
	var u User
	var phone sql.NullString
	var perms string

	err := s.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &phone,
		&u.PasswordHash, &u.Status, &perms, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.Phone = phone.String
	if u.Permissions, err = decodePermissions(perms); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
