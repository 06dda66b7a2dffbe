package tracker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eqtlab/whale-tracker/pkg/solscan"
)

var ErrHistoryTooDeep = errors.New("history pagination exceeded page limit")

// fetchHistory walks the account history backwards from the newest page and returns hashes of
// successful transactions, newest first, without duplicates.
// With an empty afterHash only the newest page is read, otherwise pages are read until afterHash
// is met or the history ends. Any page failure fails the whole fetch: a truncated history would
// let the cursor skip transactions.
func (t *Tracker) fetchHistory(ctx context.Context, address, afterHash string) ([]string, error) {
	var (
		hashes     []string
		seen       = make(map[string]struct{})
		beforeHash string
	)

	for pages := 1; ; pages++ {
		if t.cfg.MaxHistoryPages > 0 && pages > t.cfg.MaxHistoryPages {
			return nil, fmt.Errorf("%w: %s after %d pages", ErrHistoryTooDeep, address, t.cfg.MaxHistoryPages)
		}

		page, err := t.ledger.AccountTransactions(ctx, address, t.cfg.PageSize, beforeHash)
		if err != nil {
			return nil, fmt.Errorf("history page before %q: %w", beforeHash, err)
		}

		reachedCheckpoint := false
		for _, entry := range page {
			if afterHash != "" && entry.TxHash == afterHash {
				reachedCheckpoint = true
				break
			}
			if _, ok := seen[entry.TxHash]; ok || entry.Status != solscan.StatusSuccess {
				continue
			}
			seen[entry.TxHash] = struct{}{}
			hashes = append(hashes, entry.TxHash)
		}

		if afterHash == "" ||
			reachedCheckpoint ||
			len(page) == 0 ||
			(len(page) == 1 && page[0].TxHash == beforeHash) {
			t.logger.Debug(
				"history fetched",
				zap.String("address", address),
				zap.Int("pages", pages),
				zap.Int("hashes", len(hashes)),
				zap.Bool("checkpoint_reached", reachedCheckpoint),
			)
			return hashes, nil
		}

		beforeHash = page[len(page)-1].TxHash
	}
}
