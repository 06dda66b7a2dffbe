package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/eqtlab/whale-tracker/pkg/metrics"
)

// CycleError is a failed sync cycle. No cursor was stored.
type CycleError struct {
	ID  string
	Err error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %s: %v", e.ID, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// TrackWallets runs one sync cycle over every tracked wallet. On failure a diagnostic goes to the
// ops chat, nothing is persisted and the next run retries from the last stored cursors.
func (t *Tracker) TrackWallets(ctx context.Context) error {
	id := uuid.NewString()
	log := t.logger.With(zap.String("cycle_id", id))
	start := time.Now()

	err := t.runCycle(ctx, log)
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.CyclesTotal.WithLabelValues("ok").Inc()
		return nil
	}

	metrics.CyclesTotal.WithLabelValues("failed").Inc()
	log.Error("cycle failed", zap.Error(err))

	diagnostic := t.format.Diagnostic(id, err, t.logs.Recent())
	if sendErr := t.bot.SendMessage(ctx, t.cfg.OpsChatID, diagnostic); sendErr != nil {
		log.Error("failed to send cycle diagnostic", zap.Error(sendErr))
	}

	return &CycleError{ID: id, Err: err}
}

func (t *Tracker) runCycle(ctx context.Context, log *zap.Logger) error {
	wallets, err := t.storage.ListWallets(ctx)
	if err != nil {
		return fmt.Errorf("list wallets: %w", err)
	}
	metrics.TrackedWallets.Set(float64(len(wallets)))

	p := pool.NewWithResults[SyncResult]().WithErrors()
	if t.cfg.WalletConcurrency > 0 {
		p = p.WithMaxGoroutines(t.cfg.WalletConcurrency)
	}
	for _, w := range wallets {
		w := w
		p.Go(func() (SyncResult, error) {
			res, err := t.syncWallet(ctx, w, wallets)
			if err != nil {
				return SyncResult{}, fmt.Errorf("sync wallet %s: %w", w.Address, err)
			}
			return res, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return err
	}

	entries, mentions := mergeResults(results)

	if len(entries) > 0 {
		report, err := t.composeReport(ctx, entries, mentions, wallets)
		if err != nil {
			return fmt.Errorf("compose report: %w", err)
		}
		if err := t.bot.SendMessage(ctx, t.cfg.ReportChatID, report); err != nil {
			return fmt.Errorf("send report: %w", err)
		}
		metrics.TransactionsReported.Add(float64(len(entries)))
	}

	cursors := changedCursors(results)
	if len(cursors) > 0 {
		if err := t.storage.SetWalletCursors(ctx, cursors); err != nil {
			return fmt.Errorf("set wallet cursors: %w", err)
		}
	}

	log.Info(
		"cycle finished",
		zap.Int("wallets", len(wallets)),
		zap.Int("transactions", len(entries)),
		zap.Int("cursors", len(cursors)),
	)

	return nil
}

func changedCursors(results []SyncResult) map[string]string {
	cursors := make(map[string]string)
	for _, r := range results {
		if r.NewCursor == nil {
			continue
		}
		if old := r.Wallet.Cursor; old != nil && *old == *r.NewCursor {
			continue
		}
		cursors[r.Wallet.Address] = *r.NewCursor
	}
	return cursors
}
