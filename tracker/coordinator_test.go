package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eqtlab/whale-tracker/pkg/solscan"
)

// tokenMove is a detail where wallet's token account for mint changes by delta whole tokens.
func tokenMove(blockTime int64, wallet, mint, delta string) *solscan.TransactionDetail {
	return &solscan.TransactionDetail{
		BlockTime: i64Ptr(blockTime),
		TokenBalances: []solscan.TokenBalance{
			tokenBalance(ata(mint, wallet), mint, "T"+mint, 0, "1000", dec("1000").Add(dec(delta)).String()),
		},
	}
}

func hashes(txs []Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.Hash)
	}
	return out
}

func TestInternalPeers(t *testing.T) {
	all := []TrackedWallet{
		{Address: "a", Group: "g1"},
		{Address: "b", Group: "g1"},
		{Address: "c", Group: "g2"},
		{Address: "d", Group: "g1"},
	}
	assert.Equal(t, []string{"b", "d"}, internalPeers(all[0], all))
	assert.Nil(t, internalPeers(all[2], all))
}

func TestSyncWallet_FirstRunTakesLatestOnly(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addHistory(owner, "h5", "h4", "h3", "h2", "h1")
	ledger.details["h5"] = tokenMove(50, owner, mintM, "5")
	ledger.details["h4"] = tokenMove(40, owner, mintN, "4")
	ledger.details["h3"] = tokenMove(30, owner, mintN, "3")
	// h2 and h1 are past the first page and never fetched
	tr := newTestTracker(testConfig(), newMemStorage(), ledger, &fakeChain{}, &fakeBot{})

	wallet := TrackedWallet{Address: owner, Name: "whale", Group: "g"}
	res, err := tr.syncWallet(context.Background(), wallet, []TrackedWallet{wallet})
	require.NoError(t, err)

	assert.Equal(t, []string{"h5"}, hashes(res.Transactions))
	require.NotNil(t, res.NewCursor)
	assert.Equal(t, "h5", *res.NewCursor)

	mentioned := res.Mentions.Assets("g")
	require.Len(t, mentioned, 1)
	assert.Equal(t, mintM, mentioned[0].Mint)
}

func TestSyncWallet_FirstRunSkipsEmptyLatest(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addHistory(owner, "h5", "h4", "h3", "h2", "h1")
	// fee only
	ledger.details["h5"] = &solscan.TransactionDetail{
		BlockTime: i64Ptr(50),
		InputAccount: []solscan.InputAccount{
			{Account: owner, PreBalance: dec("1000000000"), PostBalance: dec("999995000")},
		},
	}
	ledger.details["h4"] = tokenMove(40, owner, mintM, "5")
	ledger.details["h3"] = tokenMove(30, owner, mintN, "1")
	tr := newTestTracker(testConfig(), newMemStorage(), ledger, &fakeChain{}, &fakeBot{})

	wallet := TrackedWallet{Address: owner, Name: "whale", Group: "g"}
	res, err := tr.syncWallet(context.Background(), wallet, []TrackedWallet{wallet})
	require.NoError(t, err)

	assert.Equal(t, []string{"h4"}, hashes(res.Transactions))
	require.NotNil(t, res.NewCursor)
	assert.Equal(t, "h5", *res.NewCursor)
}

func TestSyncWallet_FirstRunOnlyEmptyTransactions(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addHistory(owner, "h2", "h1")
	ledger.details["h2"] = &solscan.TransactionDetail{BlockTime: i64Ptr(20)}
	ledger.details["h1"] = &solscan.TransactionDetail{BlockTime: i64Ptr(10)}
	tr := newTestTracker(testConfig(), newMemStorage(), ledger, &fakeChain{}, &fakeBot{})

	wallet := TrackedWallet{Address: owner, Group: "g"}
	res, err := tr.syncWallet(context.Background(), wallet, []TrackedWallet{wallet})
	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
	require.NotNil(t, res.NewCursor)
	assert.Equal(t, "h2", *res.NewCursor)
}

func TestSyncWallet_FirstRunWithoutHistory(t *testing.T) {
	tr := newTestTracker(testConfig(), newMemStorage(), newFakeLedger(), &fakeChain{}, &fakeBot{})

	wallet := TrackedWallet{Address: owner, Group: "g"}
	res, err := tr.syncWallet(context.Background(), wallet, []TrackedWallet{wallet})
	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
	assert.Nil(t, res.NewCursor)
}

func TestSyncWallet_FromCursor(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addHistory(owner, "h6", "h5", "h4", "h3", "h2", "h1")
	ledger.details["h6"] = tokenMove(60, owner, mintM, "1")
	ledger.details["h5"] = &solscan.TransactionDetail{BlockTime: i64Ptr(50)} // nothing for the owner
	ledger.details["h4"] = tokenMove(40, owner, mintN, "-2")
	ledger.details["h3"] = tokenMove(30, owner, mintM, "3")
	tr := newTestTracker(testConfig(), newMemStorage(), ledger, &fakeChain{}, &fakeBot{})

	wallet := TrackedWallet{Address: owner, Group: "g", Cursor: strPtr("h2")}
	res, err := tr.syncWallet(context.Background(), wallet, []TrackedWallet{wallet})
	require.NoError(t, err)

	assert.Equal(t, []string{"h3", "h4", "h6"}, hashes(res.Transactions))
	require.NotNil(t, res.NewCursor)
	assert.Equal(t, "h6", *res.NewCursor)

	mentioned := res.Mentions.Assets("g")
	require.Len(t, mentioned, 2)
	assert.Equal(t, mintM, mentioned[0].Mint)
	assert.Equal(t, mintN, mentioned[1].Mint)
}

func TestSyncWallet_CursorFollowsBlockTime(t *testing.T) {
	ledger := newFakeLedger()
	// the index may list transactions out of block time order
	ledger.addHistory(owner, "late-listed", "newest", "old")
	ledger.details["late-listed"] = tokenMove(20, owner, mintM, "1")
	ledger.details["newest"] = tokenMove(30, owner, mintM, "1")
	tr := newTestTracker(testConfig(), newMemStorage(), ledger, &fakeChain{}, &fakeBot{})

	wallet := TrackedWallet{Address: owner, Group: "g", Cursor: strPtr("old")}
	res, err := tr.syncWallet(context.Background(), wallet, []TrackedWallet{wallet})
	require.NoError(t, err)
	require.NotNil(t, res.NewCursor)
	assert.Equal(t, "newest", *res.NewCursor)
}

func TestSyncWallet_NothingNewKeepsCursor(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addHistory(owner, "h2", "h1")
	tr := newTestTracker(testConfig(), newMemStorage(), ledger, &fakeChain{}, &fakeBot{})

	wallet := TrackedWallet{Address: owner, Group: "g", Cursor: strPtr("h2")}
	res, err := tr.syncWallet(context.Background(), wallet, []TrackedWallet{wallet})
	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
	require.NotNil(t, res.NewCursor)
	assert.Equal(t, "h2", *res.NewCursor)
}

func TestSyncWallet_EmptyActionsAdvanceCursor(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addHistory(owner, "h2", "h1")
	ledger.details["h2"] = &solscan.TransactionDetail{BlockTime: i64Ptr(20)}
	tr := newTestTracker(testConfig(), newMemStorage(), ledger, &fakeChain{}, &fakeBot{})

	wallet := TrackedWallet{Address: owner, Group: "g", Cursor: strPtr("h1")}
	res, err := tr.syncWallet(context.Background(), wallet, []TrackedWallet{wallet})
	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
	require.NotNil(t, res.NewCursor)
	assert.Equal(t, "h2", *res.NewCursor)
	assert.True(t, res.Mentions.Empty())
}

func TestSyncWallet_InterpretErrorFailsWallet(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addHistory(owner, "h3", "h2", "h1")
	ledger.details["h3"] = tokenMove(30, owner, mintM, "1")
	// no detail for h2
	tr := newTestTracker(testConfig(), newMemStorage(), ledger, &fakeChain{}, &fakeBot{})

	wallet := TrackedWallet{Address: owner, Group: "g", Cursor: strPtr("h1")}
	_, err := tr.syncWallet(context.Background(), wallet, []TrackedWallet{wallet})
	require.ErrorIs(t, err, errUpstream)
}

func TestSyncWallet_PeersNetOut(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addHistory(owner, "h2", "h1")
	ledger.details["h2"] = &solscan.TransactionDetail{
		BlockTime: i64Ptr(20),
		TokenBalances: []solscan.TokenBalance{
			tokenBalance(ata(mintM, owner), mintM, "M", 0, "10", "0"),
			tokenBalance(ata(mintM, peer), mintM, "M", 0, "0", "10"),
		},
	}
	tr := newTestTracker(testConfig(), newMemStorage(), ledger, &fakeChain{}, &fakeBot{})

	wallet := TrackedWallet{Address: owner, Group: "g", Cursor: strPtr("h1")}
	all := []TrackedWallet{wallet, {Address: peer, Group: "g"}, {Address: "stranger", Group: "other"}}
	res, err := tr.syncWallet(context.Background(), wallet, all)
	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
}
