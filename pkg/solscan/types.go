package solscan

import (
	"github.com/shopspring/decimal"
)

const StatusSuccess = "Success"

// HistoryEntry is one item of /v1.0/account/transactions.
type HistoryEntry struct {
	TxHash    string `json:"txHash"`
	Status    string `json:"status"`
	BlockTime int64  `json:"blockTime"`
	Slot      int64  `json:"slot"`
}

// TransactionDetail is the raw /v1.0/transaction/{hash} payload, restricted to the fields the tracker reads.
// Depending on the transaction solscan fills some of SolTransfers, InputAccount and UnknownTransfers.
type TransactionDetail struct {
	TxHash           string            `json:"txHash"`
	Status           string            `json:"status"`
	BlockTime        *int64            `json:"blockTime"`
	TokenBalances    []TokenBalance    `json:"tokenBalances"`
	InputAccount     []InputAccount    `json:"inputAccount"`
	SolTransfers     []SolTransfer     `json:"solTransfers"`
	UnknownTransfers []UnknownTransfer `json:"unknownTransfers"`
}

type TokenBalance struct {
	Account string `json:"account"`
	Amount  struct {
		PreAmount  decimal.Decimal `json:"preAmount"`
		PostAmount decimal.Decimal `json:"postAmount"`
	} `json:"amount"`
	Token TokenInfo `json:"token"`
}

type TokenInfo struct {
	TokenAddress string `json:"tokenAddress"`
	Decimals     *int32 `json:"decimals"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
}

// InputAccount carries lamport balances of an account before and after the transaction.
type InputAccount struct {
	Account     string          `json:"account"`
	Signer      bool            `json:"signer"`
	Writable    bool            `json:"writable"`
	PreBalance  decimal.Decimal `json:"preBalance"`
	PostBalance decimal.Decimal `json:"postBalance"`
}

// SolTransfer is an explicit lamport transfer.
type SolTransfer struct {
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Amount      decimal.Decimal `json:"amount"`
}

type UnknownTransfer struct {
	ProgramID string          `json:"programId"`
	Event     []TransferEvent `json:"event"`
}

type TransferEvent struct {
	Source       string          `json:"source"`
	Destination  string          `json:"destination"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	Decimals     *int32          `json:"decimals"`
	Symbol       string          `json:"symbol"`
	TokenAddress string          `json:"tokenAddress"`
}
