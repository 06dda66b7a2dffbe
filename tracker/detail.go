package tracker

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eqtlab/whale-tracker/pkg/solana"
	"github.com/eqtlab/whale-tracker/pkg/solscan"
)

// ErrDecode means a transaction detail lacks fields needed to interpret it.
var ErrDecode = errors.New("undecodable transaction detail")

// ledgerDetail is the provider detail reduced to what interpretation needs.
type ledgerDetail struct {
	hash      string
	blockTime int64
	tokens    []tokenDelta
	native    nativeSource // nil when the detail carries no native movement
}

type tokenDelta struct {
	account string
	asset   Asset
	delta   decimal.Decimal // ui units
}

// nativeSource is one of the provider shapes describing native currency movement:
// nativeTransfers, accountBalances or embeddedEvents.
type nativeSource interface {
	ownerDelta(owner string, peers []string, derive deriveFunc) (decimal.Decimal, error)
}

type deriveFunc func(mint, owner string) (string, error)

// normalizeDetail picks exactly one native shape per transaction: explicit transfer records first,
// then native events embedded into unknown transfers, then aggregate account balances.
func normalizeDetail(hash string, raw *solscan.TransactionDetail) (*ledgerDetail, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w %s: empty detail", ErrDecode, hash)
	}
	if raw.BlockTime == nil {
		return nil, fmt.Errorf("%w %s: missing blockTime", ErrDecode, hash)
	}

	d := &ledgerDetail{
		hash:      hash,
		blockTime: *raw.BlockTime,
		tokens:    make([]tokenDelta, 0, len(raw.TokenBalances)),
	}

	for i, tb := range raw.TokenBalances {
		if tb.Account == "" || tb.Token.TokenAddress == "" || tb.Token.Decimals == nil {
			return nil, fmt.Errorf("%w %s: token balance %d lacks account, mint or decimals", ErrDecode, hash, i)
		}
		decimals := *tb.Token.Decimals
		d.tokens = append(d.tokens, tokenDelta{
			account: tb.Account,
			asset: Asset{
				Ticker:   tb.Token.Symbol,
				Name:     tb.Token.Name,
				Mint:     tb.Token.TokenAddress,
				Decimals: decimals,
			},
			delta: tb.Amount.PostAmount.Sub(tb.Amount.PreAmount).Shift(-decimals),
		})
	}

	switch events := nativeEvents(raw.UnknownTransfers); {
	case len(raw.SolTransfers) > 0:
		d.native = nativeTransfers(raw.SolTransfers)
	case len(events) > 0:
		d.native = events
	case len(raw.InputAccount) > 0:
		d.native = accountBalances(raw.InputAccount)
	}

	return d, nil
}

func nativeEvents(transfers []solscan.UnknownTransfer) embeddedEvents {
	var events embeddedEvents
	for _, ut := range transfers {
		for _, ev := range ut.Event {
			if ev.TokenAddress == "" || ev.TokenAddress == solana.WrappedSolMint {
				events = append(events, ev)
			}
		}
	}
	return events
}

func isPeer(address string, peers []string) bool {
	for _, p := range peers {
		if p == address {
			return true
		}
	}
	return false
}

// nativeTransfers are explicit lamport transfers. Transfers with an internal peer on the other side are ignored.
type nativeTransfers []solscan.SolTransfer

func (tt nativeTransfers) ownerDelta(owner string, peers []string, _ deriveFunc) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, tr := range tt {
		amount := tr.Amount.Shift(-nativeDecimals)
		switch {
		case tr.Source == tr.Destination:
		case tr.Source == owner && !isPeer(tr.Destination, peers):
			total = total.Sub(amount)
		case tr.Destination == owner && !isPeer(tr.Source, peers):
			total = total.Add(amount)
		}
	}
	return total, nil
}

// accountBalances are lamport balances before and after the transaction. Owner and peer deltas are
// summed so that a transfer inside the group cancels out.
type accountBalances []solscan.InputAccount

func (bb accountBalances) ownerDelta(owner string, peers []string, _ deriveFunc) (decimal.Decimal, error) {
	total := decimal.Zero
	counted := make(map[string]struct{}, len(peers)+1)
	for _, b := range bb {
		if b.Account != owner && !isPeer(b.Account, peers) {
			continue
		}
		if _, ok := counted[b.Account]; ok {
			continue
		}
		counted[b.Account] = struct{}{}
		total = total.Add(b.PostBalance.Sub(b.PreBalance))
	}
	return total.Shift(-nativeDecimals), nil
}

// embeddedEvents are native movements nested into unknown transfers, addressed by native token accounts.
type embeddedEvents []solscan.TransferEvent

func (ee embeddedEvents) ownerDelta(owner string, peers []string, derive deriveFunc) (decimal.Decimal, error) {
	ownerAccount, err := derive(solana.WrappedSolMint, owner)
	if err != nil {
		return decimal.Zero, fmt.Errorf("owner native token account: %w", err)
	}

	peerAccounts := make([]string, 0, len(peers))
	for _, p := range peers {
		acc, err := derive(solana.WrappedSolMint, p)
		if err != nil {
			return decimal.Zero, fmt.Errorf("peer native token account: %w", err)
		}
		peerAccounts = append(peerAccounts, acc)
	}

	total := decimal.Zero
	for _, ev := range ee {
		decimals := int32(nativeDecimals)
		if ev.Decimals != nil {
			decimals = *ev.Decimals
		}
		amount := ev.Amount.Shift(-decimals)
		switch {
		case ev.Source == ev.Destination:
		case ev.Source == ownerAccount && !isPeer(ev.Destination, peerAccounts):
			total = total.Sub(amount)
		case ev.Destination == ownerAccount && !isPeer(ev.Source, peerAccounts):
			total = total.Add(amount)
		}
	}
	return total, nil
}
