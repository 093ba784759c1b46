package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

const userColumns = "id, email, first_name, last_name, phone, password_hash, status, permissions, created_at, updated_at"

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create inserts a new account. The ID is generated if empty and the email
// is stored lower-cased.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = NewUserID(now)
	}
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now.Truncate(time.Second)
	user.UpdatedAt = user.CreatedAt

	perms, err := encodePermissions(user.Permissions)
	if err != nil {
		return err
	}

	stamp := now.Format(time.RFC3339)
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.FirstName, user.LastName, nullString(user.Phone),
		user.PasswordHash, boolToInt(user.Status), perms, stamp, stamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// FindByID retrieves an account by id.
func (r *SQLiteUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// FindByEmail retrieves an account by email, case-insensitively.
func (r *SQLiteUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", strings.ToLower(email)))
}

// SetStatus activates or deactivates an account.
func (r *SQLiteUserRepository) SetStatus(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET status = ?, updated_at = ? WHERE id = ?",
		boolToInt(active), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating user status: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List returns all accounts ordered by creation date.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUserFrom(rows)
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

// Count returns the total number of accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUserFrom(s scanner) (*User, error) {
	var u User
	var phone sql.NullString
	var status int
	var perms, createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &phone,
		&u.PasswordHash, &status, &perms, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Phone = phone.String
	u.Status = status != 0
	if u.Permissions, err = decodePermissions(perms); err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &u, nil
}

// encodePermissions stores a permission set as a JSON array.
func encodePermissions(perms []PermissionKey) (string, error) {
	if perms == nil {
		perms = []PermissionKey{}
	}
	b, err := json.Marshal(perms)
	if err != nil {
		return "", fmt.Errorf("encoding permissions: %w", err)
	}
	return string(b), nil
}

func decodePermissions(raw string) ([]PermissionKey, error) {
	perms := []PermissionKey{}
	if raw == "" {
		return perms, nil
	}
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		return nil, fmt.Errorf("decoding permissions: %w", err)
	}
	return perms, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
