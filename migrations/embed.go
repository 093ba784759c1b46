// Package migrations embeds the SQL schema into the binary.
//
// SQLite migrations live at the root of this package as paired
// YYYYMMDD_HHMMSS_name.up.sql / .down.sql files and are exposed through
// SQLite. PostgreSQL migrations live under postgres/ in goose format and are
// exposed through Postgres.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var sqliteFS embed.FS

//go:embed postgres/*.sql
var postgresFS embed.FS

// SQLite returns the SQLite migration set.
func SQLite() fs.FS {
	return sqliteFS
}

// Postgres returns the goose migration set rooted at the postgres directory.
func Postgres() fs.FS {
	sub, err := fs.Sub(postgresFS, "postgres")
	if err != nil {
		// Unreachable: the directory is embedded at compile time.
		panic(err)
	}
	return sub
}
