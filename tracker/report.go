package tracker

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type reportEntry struct {
	wallet TrackedWallet
	tx     Transaction
}

// mergeResults flattens per wallet results into one stream ordered by block time.
// The sort is stable so equal block times keep the order results were collected in.
func mergeResults(results []SyncResult) ([]reportEntry, *Mentions) {
	var entries []reportEntry
	mentions := NewMentions()
	for _, r := range results {
		mentions.Merge(r.Mentions)
		for _, tx := range r.Transactions {
			entries = append(entries, reportEntry{wallet: r.Wallet, tx: tx})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].tx.BlockTime < entries[j].tx.BlockTime
	})

	return entries, mentions
}

// composeReport renders the summary, holdings and token glossary sections.
func (t *Tracker) composeReport(
	ctx context.Context,
	entries []reportEntry,
	mentions *Mentions,
	wallets []TrackedWallet,
) (string, error) {
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		blocks = append(blocks, t.format.Transaction(e.wallet, e.tx))
	}
	sections := []string{strings.Join(blocks, Separator)}

	if !t.cfg.Holdings || mentions.Empty() {
		return sections[0], nil
	}

	for _, group := range mentions.Groups() {
		holdings, err := t.groupHoldings(ctx, group, mentions.Assets(group), wallets)
		if err != nil {
			return "", fmt.Errorf("holdings of %s: %w", group, err)
		}
		sections = append(sections, t.format.Holdings(group, holdings))
	}
	sections = append(sections, t.format.Glossary(mentions.All()))

	return strings.Join(sections, Separator), nil
}
