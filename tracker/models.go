package tracker

import (
	"github.com/shopspring/decimal"
)

// Asset is either the native currency or a fungible token identified by its mint.
// Ticker and name are display metadata and may be stale.
type Asset struct {
	Native   bool
	Ticker   string
	Name     string
	Mint     string
	Decimals int32
}

var NativeAsset = Asset{Native: true, Ticker: "SOL", Name: "Solana", Decimals: nativeDecimals}

const nativeDecimals = 9

// Same reports whether a and b denote the same asset.
func (a Asset) Same(b Asset) bool {
	if a.Native || b.Native {
		return a.Native == b.Native
	}
	return a.Mint == b.Mint
}

// TokenAction is the signed net quantity of one asset moved with respect to the owner.
type TokenAction struct {
	Asset  Asset
	Amount decimal.Decimal
}

type Transaction struct {
	Hash      string
	Actions   []TokenAction
	BlockTime int64
}

type TrackedWallet struct {
	Address string
	Name    string
	Group   string
	Cursor  *string // last reported transaction hash, nil if never synced
}

// SyncResult is what one wallet contributes to a cycle.
type SyncResult struct {
	Wallet       TrackedWallet
	NewCursor    *string
	Transactions []Transaction
	Mentions     *Mentions
}

type ServerParams struct {
	Admins                []string
	LastProcessedUpdateID int64
}

// CommandBatch is the result of one poll: the commands found and the greatest update id seen,
// commands or not.
type CommandBatch struct {
	Commands     []Command
	LastUpdateID int64
}

// Command is an admin command received from the chat.
type Command struct {
	UpdateID int64
	ChatID   string
	User     string
	Method   string
	Kwargs   map[string]string
}
