package postgres

import (
	"io/fs"
)

// Migrations returns the sql files to apply with postgres.Migrate.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return sub
}
