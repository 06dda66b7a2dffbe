package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/eqtlab/whale-tracker/pkg/postgres"
	"github.com/eqtlab/whale-tracker/pkg/solana"
	"github.com/eqtlab/whale-tracker/pkg/solscan"
	"github.com/eqtlab/whale-tracker/storage/badgerdb"
	"github.com/eqtlab/whale-tracker/telegram"
	"github.com/eqtlab/whale-tracker/tracker"
	"github.com/eqtlab/whale-tracker/worker"
)

const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Debug    bool            `env:"APP_DEBUG"`
	Backend  string          `env:"STATE_BACKEND, default=badger"`
	DB       postgres.Config `env:",prefix=DB_"`
	Badger   badgerdb.Config `env:",prefix=BADGER_"`
	Solscan  solscan.Config  `env:",prefix=SOLSCAN_"`
	Solana   solana.Config   `env:",prefix=SOLANA_"`
	Telegram telegram.Config `env:",prefix=TELEGRAM_"`
	Tracker  tracker.Config  `env:",prefix=TRACKER_"`
	Worker   worker.Config   `env:",prefix=WORKER_"`
}

// ParseEnv reads an optional .env file and then the process environment, which wins.
func ParseEnv(ctx context.Context) (Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{}
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendBadger:
	case BackendPostgres:
		if c.DB.URL == "" {
			return fmt.Errorf("%w: DB_URL is required with the postgres backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown STATE_BACKEND %q", ErrInvalid, c.Backend)
	}

	if c.Tracker.PageSize < 1 {
		return fmt.Errorf("%w: TRACKER_PAGE_SIZE must be positive", ErrInvalid)
	}
	if c.Tracker.Dust.IsNegative() {
		return fmt.Errorf("%w: TRACKER_DUST can't be negative", ErrInvalid)
	}

	return nil
}
