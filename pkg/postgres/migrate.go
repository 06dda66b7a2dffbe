package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Migrate applies every *.sql file of migrations that is not recorded in schema_migrations yet, in name order.
// Each file runs in its own transaction together with its bookkeeping row.
func Migrate(ctx context.Context, url string, migrations fs.FS, log *zap.Logger) error {
	connector, err := pq.NewConnector(url)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	conn := sql.OpenDB(connector)
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `
		create table if not exists schema_migrations (
			name       text primary key,
			applied_at timestamptz not null default now()
		)`,
	); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		err := conn.QueryRowContext(ctx, `select exists(select 1 from schema_migrations where name = $1)`, name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		body, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if err := apply(ctx, conn, name, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		log.Info("migration applied", zap.String("name", name))
	}

	return nil
}

func apply(ctx context.Context, conn *sql.DB, name, body string) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `insert into schema_migrations (name) values ($1)`, name); err != nil {
		return err
	}

	return tx.Commit()
}
