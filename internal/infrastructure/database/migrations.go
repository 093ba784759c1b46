package database

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"
)

// ErrNoDownMigration is returned by MigrateDown when the newest applied
// migration ships without a .down.sql file.
var ErrNoDownMigration = errors.New("migration has no down SQL")

// Migration is one versioned schema step. SQLite migration files are named
// YYYYMMDD_HHMMSS_name.up.sql with an optional matching .down.sql.
type Migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

// Migrate applies every migration in fsys that is not yet recorded, oldest
// first, each in its own transaction. A failure leaves earlier steps
// committed; running Migrate again resumes at the failed step.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) error {
	all, err := loadMigrations(fsys)
	if err != nil {
		return err
	}
	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range all {
		if slices.Contains(applied, m.Version) {
			continue
		}
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.Version, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown reverts the newest applied migration. It is a no-op when
// nothing has been applied.
func (db *DB) MigrateDown(ctx context.Context, fsys fs.FS) error {
	applied, err := db.appliedVersions(ctx)
	if err != nil || len(applied) == 0 {
		return err
	}
	latest := applied[len(applied)-1]

	all, err := loadMigrations(fsys)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(all, func(m Migration) bool { return m.Version == latest })
	switch {
	case i < 0:
		return fmt.Errorf("applied migration %s is missing from the migration set", latest)
	case all[i].Down == "":
		return fmt.Errorf("%s: %w", latest, ErrNoDownMigration)
	}

	err = db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, all[i].Down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", latest)
		return err
	})
	if err != nil {
		return fmt.Errorf("reverting migration %s: %w", latest, err)
	}
	return nil
}

// SchemaVersion returns the newest applied version, or "" for an empty
// database.
func (db *DB) SchemaVersion(ctx context.Context) (string, error) {
	applied, err := db.appliedVersions(ctx)
	if err != nil || len(applied) == 0 {
		return "", err
	}
	return applied[len(applied)-1], nil
}

// appliedVersions returns recorded versions in ascending order, creating
// the bookkeeping table on first use.
func (db *DB) appliedVersions(ctx context.Context) ([]string, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// loadMigrations reads the migration files at the root of fsys. A nil
// filesystem holds no migrations; a down file without its up file is an
// error.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, up, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}
		body, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if up {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s has a down file but no up file", m.Version)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// parseMigrationFilename splits "20260301_120000_create_users.up.sql" into
// version "20260301_120000", name "create_users" and direction.
func parseMigrationFilename(filename string) (version, name string, up, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return "", "", false, false
	}
	if base, found = strings.CutSuffix(base, ".up"); found {
		up = true
	} else if base, found = strings.CutSuffix(base, ".down"); !found {
		return "", "", false, false
	}

	date, rest, found := strings.Cut(base, "_")
	if !found || date == "" {
		return "", "", false, false
	}
	clock, name, _ := strings.Cut(rest, "_")
	if clock == "" {
		return "", "", false, false
	}
	version = date + "_" + clock
	if name == "" {
		name = version
	}
	return version, name, up, true
}
