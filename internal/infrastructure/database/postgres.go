package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/pressly/goose/v3"
)

// pgxDriverName is the database/sql driver name registered by pgx/stdlib.
const pgxDriverName = "pgx"

// Pool limits for the PostgreSQL connection.
const (
	pgMaxOpenConns = 20
	pgMaxIdleConns = 5
)

// OpenPostgres opens a PostgreSQL connection pool through the pgx driver and
// verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	db, err := sql.Open(pgxDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	db.SetMaxOpenConns(pgMaxOpenConns)
	db.SetMaxIdleConns(pgMaxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying postgres connection: %w", err)
	}

	return db, nil
}

// MigratePostgres applies every pending goose migration found at the root of
// fsys.
func MigratePostgres(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	return withGoose(fsys, func() error {
		if err := goose.UpContext(ctx, db, "."); err != nil {
			return fmt.Errorf("applying postgres migrations: %w", err)
		}
		return nil
	})
}

// RollbackPostgres reverts the most recently applied goose migration.
func RollbackPostgres(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	return withGoose(fsys, func() error {
		if err := goose.DownContext(ctx, db, "."); err != nil {
			return fmt.Errorf("rolling back postgres migration: %w", err)
		}
		return nil
	})
}

// PostgresSchemaVersion returns the current goose version, zero padded to
// match the migration file prefix.
func PostgresSchemaVersion(ctx context.Context, db *sql.DB) (string, error) {
	var version int64
	err := withGoose(nil, func() error {
		v, err := goose.GetDBVersionContext(ctx, db)
		version = v
		return err
	})
	if err != nil {
		return "", fmt.Errorf("reading postgres schema version: %w", err)
	}
	return fmt.Sprintf("%05d", version), nil
}

// withGoose configures goose for one call. goose keeps its base filesystem
// and dialect in package state, so concurrent calls must not target
// different filesystems.
func withGoose(fsys fs.FS, fn func() error) error {
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(pgxDriverName); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return fn()
}
