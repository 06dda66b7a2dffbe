package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/vgarvardt/gue/v5"
	adapter "github.com/vgarvardt/gue/v5/adapter/zap"
	"go.uber.org/zap"

	"github.com/eqtlab/whale-tracker/pkg/metrics"
	timeutils "github.com/eqtlab/whale-tracker/pkg/time"
)

const (
	JobTrackWallets    = "track_wallets"
	JobProcessCommands = "process_commands"
)

// Jobs is what the worker schedules.
type Jobs interface {
	TrackWallets(ctx context.Context) error
	ProcessCommands(ctx context.Context) error
}

// Backlog counts queued jobs that were not picked up yet.
type Backlog interface {
	PendingJobs(ctx context.Context, jobType string) (int, error)
}

// Worker runs the tracker jobs on intervals. With a gue client jobs go through the postgres queue,
// otherwise they run in process.
type Worker struct {
	cfg     Config
	jobs    Jobs
	q       *gue.Client
	backlog Backlog
	logger  *zap.Logger

	// runMu keeps a cycle and a command batch from overlapping, both write wallets
	runMu sync.Mutex

	mu          sync.Mutex
	lastSuccess map[string]time.Time
}

// nolint:lll
type Config struct {
	TrackInterval    time.Duration `env:"TRACK_INTERVAL, default=5m"`     // How often wallets are synced and reported
	CommandsInterval time.Duration `env:"COMMANDS_INTERVAL, default=10s"` // How often admin commands are polled
	JobTimeout       time.Duration `env:"JOB_TIMEOUT, default=10m"`       // How long one job may run
	PollInterval     time.Duration `env:"POLL_INTERVAL, default=1s"`      // How often the gue pool looks for jobs
	MetricsAddr      string        `env:"METRICS_ADDR, default=:9090"`    // Listen address of /metrics and /healthz
}

func New(cfg Config, jobs Jobs, q *gue.Client, backlog Backlog, l *zap.Logger) *Worker {
	return &Worker{
		cfg:         cfg,
		jobs:        jobs,
		q:           q,
		backlog:     backlog,
		logger:      l,
		lastSuccess: make(map[string]time.Time),
	}
}

// Run blocks until ctx is done or the queue pool fails.
func (w *Worker) Run(ctx context.Context) error {
	newCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := &http.Server{
		Addr:              w.cfg.MetricsAddr,
		Handler:           w.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var (
		wg     conc.WaitGroup
		runErr error
	)

	wg.Go(func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("metrics server failed", zap.Error(err))
		}
	})
	wg.Go(func() {
		<-newCtx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = server.Shutdown(shutdownCtx)
	})

	if w.q != nil {
		pool, err := gue.NewWorkerPool(
			w.q,
			gue.WorkMap{
				JobTrackWallets:    w.handle(JobTrackWallets),
				JobProcessCommands: w.handle(JobProcessCommands),
			},
			1, // a cycle and a command batch never overlap
			gue.WithPoolLogger(adapter.New(w.logger)),
			gue.WithPoolPollInterval(w.cfg.PollInterval),
		)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("gue new worker pool: %w", err)
		}

		wg.Go(func() {
			defer cancel()
			if err := pool.Run(newCtx); err != nil {
				runErr = fmt.Errorf("gue pool run: %w", err)
			}
		})
	}

	wg.Go(func() { w.schedule(newCtx, JobTrackWallets, w.cfg.TrackInterval) })
	wg.Go(func() { w.schedule(newCtx, JobProcessCommands, w.cfg.CommandsInterval) })

	w.logger.Info("worker has started", zap.Bool("queue", w.q != nil), zap.String("metrics_addr", w.cfg.MetricsAddr))

	wg.Wait()
	return runErr
}

// schedule dispatches jobType right away and then on every tick.
func (w *Worker) schedule(ctx context.Context, jobType string, interval time.Duration) {
	w.dispatch(ctx, jobType)
	for range timeutils.TickWithCtx(ctx, interval) {
		w.dispatch(ctx, jobType)
	}
}

func (w *Worker) dispatch(ctx context.Context, jobType string) {
	if w.q == nil {
		_ = w.run(ctx, jobType)
		return
	}

	if err := w.enqueue(ctx, jobType); err != nil {
		w.logger.Error("scheduler: enqueue failed", zap.String("job", jobType), zap.Error(err))
	}
}

func (w *Worker) enqueue(ctx context.Context, jobType string) error {
	if w.backlog != nil {
		pending, err := w.backlog.PendingJobs(ctx, jobType)
		if err != nil {
			return fmt.Errorf("count pending jobs: %w", err)
		}
		if pending > 0 {
			w.logger.Debug("scheduler: job is still queued", zap.String("job", jobType), zap.Int("pending", pending))
			return nil
		}
	}

	if err := w.q.Enqueue(ctx, &gue.Job{Type: jobType, Args: []byte("{}")}); err != nil {
		return fmt.Errorf("gue enqueue: %w", err)
	}

	return nil
}

// handle never fails the gue job: the next tick schedules a fresh one.
func (w *Worker) handle(jobType string) gue.WorkFunc {
	return func(ctx context.Context, _ *gue.Job) error {
		_ = w.run(ctx, jobType)
		return nil
	}
}

func (w *Worker) run(ctx context.Context, jobType string) error {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	var err error
	switch jobType {
	case JobTrackWallets:
		err = w.jobs.TrackWallets(ctx)
	case JobProcessCommands:
		err = w.jobs.ProcessCommands(ctx)
	default:
		err = fmt.Errorf("unknown job %q", jobType)
	}

	if err != nil {
		w.logger.Error("job failed", zap.String("job", jobType), zap.Error(err))
		return err
	}

	now := time.Now()
	metrics.JobLastSuccess.WithLabelValues(jobType).Set(float64(now.Unix()))

	w.mu.Lock()
	w.lastSuccess[jobType] = now
	w.mu.Unlock()

	return nil
}

func (w *Worker) lastSuccessOf(jobType string) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.lastSuccess[jobType]
	return t, ok
}
