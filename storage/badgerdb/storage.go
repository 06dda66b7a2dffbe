package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/eqtlab/whale-tracker/tracker"
)

var (
	walletPrefix = []byte("wallet:")
	paramsKey    = []byte("server_params")
)

type Config struct {
	Path     string `env:"PATH, default=./data/badger"`
	InMemory bool   `env:"IN_MEMORY"`
}

// Storage implements tracker.Storage interface on an embedded badger database.
// Values are json documents, wallets are keyed by address.
type Storage struct {
	db     *badger.DB
	logger *zap.Logger
}

func Open(cfg Config, l *zap.Logger) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(badgerLogger{l.Sugar()})
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Storage{db: db, logger: l}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

type walletRecord struct {
	Address string  `json:"address"`
	Name    string  `json:"name"`
	Group   string  `json:"group"`
	Cursor  *string `json:"cursor,omitempty"`
}

type paramsRecord struct {
	AdminUsers            []string `json:"admin_users"`
	LastProcessedUpdateID int64    `json:"last_processed_update_id"`
}

func walletKey(address string) []byte {
	return append(append([]byte(nil), walletPrefix...), address...)
}

func (s *Storage) ListWallets(_ context.Context) ([]tracker.TrackedWallet, error) {
	var wallets []tracker.TrackedWallet

	err := s.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(walletPrefix); iter.ValidForPrefix(walletPrefix); iter.Next() {
			var rec walletRecord
			if err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", iter.Item().Key(), err)
			}
			wallets = append(wallets, rec.wallet())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list wallets: %w", err)
	}

	return wallets, nil
}

func (s *Storage) GetWallet(_ context.Context, address string) (*tracker.TrackedWallet, error) {
	var (
		rec   walletRecord
		found bool
	)

	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = get(txn, walletKey(address), &rec)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger get wallet: %w", err)
	}
	if !found {
		return nil, nil
	}

	w := rec.wallet()
	return &w, nil
}

func (s *Storage) SaveWallet(_ context.Context, w tracker.TrackedWallet) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return set(txn, walletKey(w.Address), walletRecord{
			Address: w.Address,
			Name:    w.Name,
			Group:   w.Group,
			Cursor:  w.Cursor,
		})
	})
	if err != nil {
		return fmt.Errorf("badger save wallet: %w", err)
	}

	return nil
}

func (s *Storage) DeleteWallet(_ context.Context, address string) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(walletKey(address))
	}); err != nil {
		return fmt.Errorf("badger delete wallet: %w", err)
	}

	return nil
}

// SetWalletCursors writes every cursor in a single transaction, wallets deleted meanwhile are skipped.
func (s *Storage) SetWalletCursors(_ context.Context, cursors map[string]string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for address, cursor := range cursors {
			key := walletKey(address)

			var rec walletRecord
			found, err := get(txn, key, &rec)
			if err != nil {
				return err
			}
			if !found {
				s.logger.Debug("cursor of untracked wallet skipped", zap.String("address", address))
				continue
			}

			cursor := cursor
			rec.Cursor = &cursor
			if err := set(txn, key, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger set cursors: %w", err)
	}

	return nil
}

func (s *Storage) GetServerParams(_ context.Context) (tracker.ServerParams, error) {
	var rec paramsRecord

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := get(txn, paramsKey, &rec)
		return err
	})
	if err != nil {
		return tracker.ServerParams{}, fmt.Errorf("badger get server params: %w", err)
	}

	return tracker.ServerParams{
		Admins:                rec.AdminUsers,
		LastProcessedUpdateID: rec.LastProcessedUpdateID,
	}, nil
}

func (s *Storage) SaveServerParams(_ context.Context, p tracker.ServerParams) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return set(txn, paramsKey, paramsRecord{
			AdminUsers:            p.Admins,
			LastProcessedUpdateID: p.LastProcessedUpdateID,
		})
	})
	if err != nil {
		return fmt.Errorf("badger save server params: %w", err)
	}

	return nil
}

func (r walletRecord) wallet() tracker.TrackedWallet {
	return tracker.TrackedWallet{
		Address: r.Address,
		Name:    r.Name,
		Group:   r.Group,
		Cursor:  r.Cursor,
	}
}

// get decodes the value under key into out, found is false if the key is absent.
func get(txn *badger.Txn, key []byte, out any) (found bool, err error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}

	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	}); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}

	return true, nil
}

func set(txn *badger.Txn, key []byte, v any) error {
	bb, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if err := txn.Set(key, bb); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	return nil
}

// badgerLogger routes badger's own logs into zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
