package postgres

import (
	"embed"

	"github.com/eqtlab/whale-tracker/pkg/db"
)

// migrations holds the schema of the tracker tables and the gue job queue.
//
//go:embed migrations/*.sql
var migrations embed.FS

// Storage implements tracker.Storage interface via PostgreSQL
type Storage struct {
	db *db.DB
}

func New(db *db.DB) *Storage {
	return &Storage{
		db: db,
	}
}
