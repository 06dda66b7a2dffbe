package tracker

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
)

// internalPeers returns addresses of the other wallets of the same group.
func internalPeers(wallet TrackedWallet, all []TrackedWallet) []string {
	var peers []string
	for _, w := range all {
		if w.Group == wallet.Group && w.Address != wallet.Address {
			peers = append(peers, w.Address)
		}
	}
	return peers
}

// syncWallet interprets transactions newer than the wallet cursor. A wallet without cursor only
// gets the latest transaction of its first history page that moved something, so that tracking
// starts from now on instead of backfilling history.
func (t *Tracker) syncWallet(ctx context.Context, wallet TrackedWallet, all []TrackedWallet) (SyncResult, error) {
	peers := internalPeers(wallet, all)

	afterHash := ""
	if wallet.Cursor != nil {
		afterHash = *wallet.Cursor
	}

	hashes, err := t.fetchHistory(ctx, wallet.Address, afterHash)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch history: %w", err)
	}

	interpreted, err := iter.Mapper[string, Transaction]{MaxGoroutines: t.cfg.DetailConcurrency}.MapErr(
		hashes,
		func(hash *string) (Transaction, error) {
			tx, err := t.interpret(ctx, *hash, wallet.Address, peers)
			if err != nil {
				return Transaction{}, fmt.Errorf("interpret %s: %w", *hash, err)
			}
			return tx, nil
		},
	)
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{
		Wallet:    wallet,
		NewCursor: wallet.Cursor,
		Mentions:  NewMentions(),
	}

	if newest := newestTransaction(interpreted); newest != nil {
		hash := newest.Hash
		result.NewCursor = &hash
	}

	// hashes are newest first, the report reads oldest first
	for i := len(interpreted) - 1; i >= 0; i-- {
		if len(interpreted[i].Actions) > 0 {
			result.Transactions = append(result.Transactions, interpreted[i])
		}
	}
	if wallet.Cursor == nil {
		result.Transactions = latestOnly(result.Transactions)
	}

	for _, tx := range result.Transactions {
		for _, a := range tx.Actions {
			result.Mentions.Add(wallet.Group, a.Asset)
		}
	}

	t.logger.Debug(
		"wallet synced",
		zap.String("address", wallet.Address),
		zap.Int("hashes", len(hashes)),
		zap.Int("transactions", len(result.Transactions)),
	)

	return result, nil
}

// newestTransaction returns the transaction with the greatest block time, the earliest discovered on ties.
func newestTransaction(txs []Transaction) *Transaction {
	var newest *Transaction
	for i := range txs {
		if newest == nil || txs[i].BlockTime > newest.BlockTime {
			newest = &txs[i]
		}
	}
	return newest
}

// latestOnly keeps the transaction with the greatest block time of txs, which are oldest first.
// On ties the newest listed wins.
func latestOnly(txs []Transaction) []Transaction {
	if len(txs) <= 1 {
		return txs
	}
	latest := txs[0]
	for _, tx := range txs[1:] {
		if tx.BlockTime >= latest.BlockTime {
			latest = tx
		}
	}
	return []Transaction{latest}
}
