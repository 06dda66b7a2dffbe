package tracker

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"
)

// Holding is the balance of one asset summed over the wallets of a group.
type Holding struct {
	Asset  Asset
	Amount decimal.Decimal
}

// groupHoldings queries balances of every asset concurrently. Missing token accounts count as zero.
func (t *Tracker) groupHoldings(ctx context.Context, group string, assets []Asset, wallets []TrackedWallet) ([]Holding, error) {
	var members []string
	for _, w := range wallets {
		if w.Group == group {
			members = append(members, w.Address)
		}
	}

	return iter.Mapper[Asset, Holding]{MaxGoroutines: t.cfg.DetailConcurrency}.MapErr(
		assets,
		func(asset *Asset) (Holding, error) {
			total := decimal.Zero
			for _, owner := range members {
				account, err := t.chain.AssociatedTokenAccount(asset.Mint, owner)
				if err != nil {
					return Holding{}, fmt.Errorf("token account of %s for %s: %w", owner, asset.Mint, err)
				}
				balance, err := t.chain.TokenBalance(ctx, account)
				if err != nil {
					return Holding{}, fmt.Errorf("balance of %s: %w", account, err)
				}
				total = total.Add(balance)
			}
			return Holding{Asset: *asset, Amount: total}, nil
		},
	)
}
