package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/eqtlab/whale-tracker/pkg/db"
	"github.com/eqtlab/whale-tracker/tracker"
)

const walletsTable = "tracked_wallets"

func walletColumns(w *tracker.TrackedWallet) db.ScanArgs {
	return db.ScanArgs{&w.Address, &w.Name, &w.Group, &w.Cursor}
}

func selectWallets() sq.SelectBuilder {
	return db.Builder.
		Select("address", "name", "wallet_group", "cursor").
		From(walletsTable)
}

func (s *Storage) ListWallets(ctx context.Context) ([]tracker.TrackedWallet, error) {
	var wallets []tracker.TrackedWallet

	err := s.db.Query(ctx, selectWallets().OrderBy("address"), db.ScanAll(&wallets, walletColumns))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db select: %w", err)
	}

	return wallets, nil
}

func (s *Storage) GetWallet(ctx context.Context, address string) (*tracker.TrackedWallet, error) {
	w := &tracker.TrackedWallet{}

	err := s.db.Query(ctx, selectWallets().Where(sq.Eq{"address": address}), db.ScanOnce(walletColumns(w)...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db select: %w", err)
	}

	return w, nil
}

func (s *Storage) SaveWallet(ctx context.Context, w tracker.TrackedWallet) error {
	query := db.Builder.
		Insert(walletsTable).
		Columns("address", "name", "wallet_group", "cursor").
		Values(w.Address, w.Name, w.Group, w.Cursor).
		Suffix(`on conflict (address) do update set
			name = excluded.name,
			wallet_group = excluded.wallet_group,
			cursor = excluded.cursor,
			updated_at = now()`)

	if err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("db upsert: %w", err)
	}

	return nil
}

func (s *Storage) DeleteWallet(ctx context.Context, address string) error {
	query := db.Builder.
		Delete(walletsTable).
		Where(sq.Eq{"address": address})

	if err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("db delete: %w", err)
	}

	return nil
}

// SetWalletCursors updates all cursors in one transaction. Rows deleted meanwhile are not recreated.
func (s *Storage) SetWalletCursors(ctx context.Context, cursors map[string]string) error {
	addresses := make([]string, 0, len(cursors))
	for addr := range cursors {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses) // stable lock order

	return s.db.RunInTransaction(ctx, func(ctx context.Context, txDB *db.DB) error {
		for _, addr := range addresses {
			query := db.Builder.
				Update(walletsTable).
				Set("cursor", cursors[addr]).
				Set("updated_at", sq.Expr("now()")).
				Where(sq.Eq{"address": addr})

			if err := txDB.Exec(ctx, query); err != nil {
				return fmt.Errorf("db update cursor of %s: %w", addr, err)
			}
		}
		return nil
	})
}
