// Package ledger is the wallet's client view of the chain: transaction
// construction and signing plus a JSON-RPC client for the node endpoints
// the wallet depends on.
package ledger

import (
	"context"

	"github.com/holiman/uint256"
)

// Tx status values as reported by the node.
const (
	TxStatusPending   int32 = 0
	TxStatusConfirmed int32 = 1
	TxStatusFinalized int32 = 2
	TxStatusFailed    int32 = 3
)

// Reference is a recent ledger reference point used when constructing
// transactions. One fresh Reference can be shared across a settlement batch.
type Reference struct {
	Slot      uint64 `json:"slot"`
	BlockHash string `json:"block_hash"`
}

// Account is the node's view of an address.
type Account struct {
	Address string
	Balance *uint256.Int
	Nonce   uint64
	Exists  bool
}

// TxInfo is a confirmed transaction as returned by the node.
type TxInfo struct {
	Hash      string `json:"tx_hash"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	TextData  string `json:"text_data"`
	Nonce     uint64 `json:"nonce"`
	Slot      uint64 `json:"slot"`
	Status    int32  `json:"status"`
}

// Ledger is the external chain collaborator. All methods are blocking
// network calls and honor ctx cancellation.
type Ledger interface {
	// RecentReference returns a fresh reference point for tx construction.
	RecentReference(ctx context.Context) (*Reference, error)
	// SubmitAndConfirm submits a signed transaction and waits for the node
	// to confirm it, returning the transaction signature.
	SubmitAndConfirm(ctx context.Context, tx *SignedTx) (string, error)
	// GetAccount returns the account at addr; Exists is false when the
	// address has never been funded.
	GetAccount(ctx context.Context, addr string) (*Account, error)
	// CurrentSlot returns the chain head slot.
	CurrentSlot(ctx context.Context) (uint64, error)
	// GetTransaction fetches a transaction by signature.
	GetTransaction(ctx context.Context, signature string) (*TxInfo, error)
	// SlotTransactions returns all transactions in the slot range
	// [from, to], inclusive.
	SlotTransactions(ctx context.Context, from, to uint64) ([]TxInfo, error)
}
