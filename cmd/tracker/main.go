package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"
	adapter "github.com/vgarvardt/gue/v5/adapter/zap"
	"go.uber.org/zap"

	"github.com/eqtlab/whale-tracker/config"
	"github.com/eqtlab/whale-tracker/pkg/db"
	"github.com/eqtlab/whale-tracker/pkg/logger"
	"github.com/eqtlab/whale-tracker/pkg/postgres"
	"github.com/eqtlab/whale-tracker/pkg/solana"
	"github.com/eqtlab/whale-tracker/pkg/solscan"
	"github.com/eqtlab/whale-tracker/storage/badgerdb"
	pgstorage "github.com/eqtlab/whale-tracker/storage/postgres"
	"github.com/eqtlab/whale-tracker/telegram"
	"github.com/eqtlab/whale-tracker/tracker"
	"github.com/eqtlab/whale-tracker/worker"
)

const usage = "usage: tracker [track_wallets|process_commands|serve|migrate]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(true)

	verb := "serve"
	if len(os.Args) > 1 {
		verb = os.Args[1]
	}

	cfg, err := config.ParseEnv(ctx)
	if err != nil {
		log.Fatal("can't parse configuration", zap.Error(err))
	}

	log = logger.New(cfg.Debug)

	if verb == "migrate" {
		if cfg.Backend != config.BackendPostgres {
			log.Fatal("migrate needs the postgres backend")
		}
		if err := postgres.Migrate(ctx, cfg.DB.URL, pgstorage.Migrations(), log.Logger); err != nil {
			log.Fatal("can't migrate db", zap.Error(err))
		}
		return
	}

	state, err := openState(ctx, cfg, log)
	if err != nil {
		log.Fatal("can't open state", zap.Error(err))
	}
	defer state.close()

	chain, err := solana.New(cfg.Solana)
	if err != nil {
		log.Fatal("can't create solana client", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.Telegram.Timezone)
	if err != nil {
		log.Fatal("can't load report timezone", zap.Error(err))
	}

	whaleTracker := tracker.New(
		cfg.Tracker,
		state.storage,
		solscan.New(cfg.Solscan, log.Logger),
		chain,
		telegram.New(cfg.Telegram, log.Logger),
		telegram.NewHTMLFormatter(loc),
		log,
	)

	switch verb {
	case worker.JobTrackWallets:
		if err := whaleTracker.TrackWallets(ctx); err != nil {
			log.Fatal("tracking failed", zap.Error(err))
		}
	case worker.JobProcessCommands:
		if err := whaleTracker.ProcessCommands(ctx); err != nil {
			log.Fatal("command processing failed", zap.Error(err))
		}
	case "serve":
		w := worker.New(cfg.Worker, whaleTracker, state.queue, state.backlog, log.Logger)
		runForever(
			log,
			func() {
				if err := w.Run(ctx); err != nil {
					log.Error("worker stopped", zap.Error(err))
				}
			},
		)

		<-ctx.Done()
		log.Info("tracker has been stopped")
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

// state is the storage backend with the queue that comes with it.
type state struct {
	storage tracker.Storage
	queue   *gue.Client
	backlog worker.Backlog
	close   func()
}

func openState(ctx context.Context, cfg config.Config, log *logger.Logger) (*state, error) {
	if cfg.Backend == config.BackendBadger {
		store, err := badgerdb.Open(cfg.Badger, log.Logger)
		if err != nil {
			return nil, err
		}
		return &state{
			storage: store,
			close: func() {
				if err := store.Close(); err != nil {
					log.Error("close badger", zap.Error(err))
				}
			},
		}, nil
	}

	if err := postgres.Migrate(ctx, cfg.DB.URL, pgstorage.Migrations(), log.Logger); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	pool, err := postgres.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	store := pgstorage.New(db.NewDB(pool, log.Logger))

	q, err := gue.NewClient(pgxv5.NewConnPool(pool), gue.WithClientLogger(adapter.New(log.Logger)))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgx adapter for gue: %w", err)
	}

	return &state{
		storage: store,
		queue:   q,
		backlog: store,
		close:   pool.Close,
	}, nil
}

// runForever spawns goroutine for every f in ff. Each f is logged and restarted if panic occurs. It's non-blocking.
func runForever(log *logger.Logger, ff ...func()) {
	for i := range ff {
		f := ff[i]
		go func() {
			var pc panics.Catcher
			pc.Try(f)
			if err := pc.Recovered().AsError(); err != nil {
				log.Error("panic", zap.Error(err))
				time.Sleep(time.Minute)
				runForever(log, f)
			}
		}()
	}
}
