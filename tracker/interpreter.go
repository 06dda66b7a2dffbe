package tracker

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// interpret computes owner's net movements in transaction hash. Movements between the owner and
// its internal peers cancel out and totals not above the dust threshold are dropped.
func (t *Tracker) interpret(ctx context.Context, hash, owner string, peers []string) (Transaction, error) {
	raw, err := t.ledger.TransactionDetail(ctx, hash)
	if err != nil {
		return Transaction{}, fmt.Errorf("fetch detail: %w", err)
	}

	detail, err := normalizeDetail(hash, raw)
	if err != nil {
		return Transaction{}, err
	}

	return t.interpretDetail(detail, owner, peers)
}

type assetTotal struct {
	asset Asset
	total decimal.Decimal
}

func (t *Tracker) interpretDetail(d *ledgerDetail, owner string, peers []string) (Transaction, error) {
	var (
		order  []string
		totals = make(map[string]*assetTotal)
	)

	for _, td := range d.tokens {
		mint := td.asset.Mint

		counted, err := t.isGroupTokenAccount(td.account, mint, owner, peers)
		if err != nil {
			return Transaction{}, fmt.Errorf("%w %s: %v", ErrDecode, d.hash, err)
		}
		if !counted {
			continue
		}

		at, ok := totals[mint]
		if !ok {
			at = &assetTotal{asset: td.asset}
			totals[mint] = at
			order = append(order, mint)
		}
		at.total = at.total.Add(td.delta)
	}

	actions := make([]TokenAction, 0, len(order)+1)
	for _, mint := range order {
		at := totals[mint]
		if t.aboveDust(at.total) {
			actions = append(actions, TokenAction{Asset: at.asset, Amount: at.total})
		}
	}

	if d.native != nil {
		native, err := d.native.ownerDelta(owner, peers, t.chain.AssociatedTokenAccount)
		if err != nil {
			return Transaction{}, fmt.Errorf("native delta of %s: %w", d.hash, err)
		}
		if t.aboveDust(native) {
			actions = append(actions, TokenAction{Asset: NativeAsset, Amount: native})
		}
	}

	return Transaction{
		Hash:      d.hash,
		Actions:   actions,
		BlockTime: d.blockTime,
	}, nil
}

// isGroupTokenAccount reports whether account is the canonical mint account of the owner or of one of its peers.
func (t *Tracker) isGroupTokenAccount(account, mint, owner string, peers []string) (bool, error) {
	ownerAccount, err := t.chain.AssociatedTokenAccount(mint, owner)
	if err != nil {
		return false, err
	}
	if account == ownerAccount {
		return true, nil
	}

	for _, p := range peers {
		peerAccount, err := t.chain.AssociatedTokenAccount(mint, p)
		if err != nil {
			return false, err
		}
		if account == peerAccount {
			return true, nil
		}
	}

	return false, nil
}

func (t *Tracker) aboveDust(amount decimal.Decimal) bool {
	return amount.Abs().GreaterThan(t.dust())
}
