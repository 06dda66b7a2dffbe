package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/eqtlab/whale-tracker/pkg/db"
	"github.com/eqtlab/whale-tracker/tracker"
)

// server params are a single row
const paramsID = 1

func (s *Storage) GetServerParams(ctx context.Context) (tracker.ServerParams, error) {
	query := db.Builder.
		Select("admin_users", "last_processed_update_id").
		From("server_params").
		Where(sq.Eq{"id": paramsID})

	var p tracker.ServerParams
	err := s.db.Query(ctx, query, db.ScanOnce(&p.Admins, &p.LastProcessedUpdateID))
	if errors.Is(err, pgx.ErrNoRows) {
		return tracker.ServerParams{}, nil
	}
	if err != nil {
		return tracker.ServerParams{}, fmt.Errorf("db select: %w", err)
	}

	return p, nil
}

func (s *Storage) SaveServerParams(ctx context.Context, p tracker.ServerParams) error {
	admins := p.Admins
	if admins == nil {
		admins = []string{}
	}

	query := db.Builder.
		Insert("server_params").
		Columns("id", "admin_users", "last_processed_update_id").
		Values(paramsID, admins, p.LastProcessedUpdateID).
		Suffix(`on conflict (id) do update set
			admin_users = excluded.admin_users,
			last_processed_update_id = excluded.last_processed_update_id`)

	if err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("db upsert: %w", err)
	}

	return nil
}
