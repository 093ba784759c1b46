// Package database provides SQL connectivity for the AMS auth service.
//
// Two backends are supported:
//   - SQLite (default): Open returns a *DB with WAL mode, a busy timeout and a
//     single writer connection. DB.Migrate and DB.MigrateDown apply paired
//     .up.sql/.down.sql files from the fs.FS they are given.
//   - PostgreSQL: OpenPostgres returns a *sql.DB backed by pgx.
//     MigratePostgres and RollbackPostgres drive goose over the same kind of
//     fs.FS.
//
// The users and refresh_tokens tables are identical in shape on both
// backends. refresh_tokens.user_id is UNIQUE so a user never has more than
// one stored refresh token.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The SQLite file is created with mode 0600
//   - Password hashes and refresh tokens are stored, never plaintext passwords
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.SQLite()); err != nil {
//	    return err
//	}
package database
