package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/holiman/uint256"

	"github.com/mezonai/mmn-wallet/errors"
	"github.com/mezonai/mmn-wallet/logx"
)

const confirmPollInterval = 2 * time.Second

// Config holds the RPC client configuration.
type Config struct {
	// Endpoint is the node's JSON-RPC HTTP URL.
	Endpoint string
	// ConfirmTimeout bounds how long SubmitAndConfirm waits for a
	// submitted transaction to confirm.
	ConfirmTimeout time.Duration
}

// Client talks to a node over its JSON-RPC bridge.
type Client struct {
	cfg Config
	rpc *jrpc2.Client
}

var _ Ledger = (*Client)(nil)

// NewClient creates a ledger client for the configured endpoint.
func NewClient(cfg Config) *Client {
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	ch := jhttp.NewChannel(cfg.Endpoint, nil)
	return &Client{
		cfg: cfg,
		rpc: jrpc2.NewClient(ch, nil),
	}
}

// Close releases the underlying RPC channel.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// --- wire shapes mirroring the node's jsonrpc bridge ---

type txMsgParams struct {
	Type      int32  `json:"type"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Timestamp uint64 `json:"timestamp"`
	TextData  string `json:"text_data"`
	Nonce     uint64 `json:"nonce"`
}

type signedTxParams struct {
	TxMsg     txMsgParams `json:"tx_msg"`
	Signature string      `json:"signature"`
}

type addTxResponse struct {
	Ok     bool   `json:"ok"`
	TxHash string `json:"tx_hash"`
	Error  string `json:"error"`
}

type txStatusRequest struct {
	TxHash string `json:"tx_hash"`
}

type txStatusInfo struct {
	TxHash        string `json:"tx_hash"`
	Status        int32  `json:"status"`
	BlockSlot     uint64 `json:"block_slot"`
	Confirmations uint64 `json:"confirmations"`
	ErrorMessage  string `json:"error_message"`
}

type getTxByHashRequest struct {
	TxHash string `json:"tx_hash"`
}

type getTxByHashResponse struct {
	Error string  `json:"error"`
	Tx    *TxInfo `json:"tx"`
}

type getAccountRequest struct {
	Address string `json:"address"`
}

type getAccountResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type currentSlotResponse struct {
	Slot uint64 `json:"slot"`
}

type slotRangeRequest struct {
	FromSlot uint64 `json:"from_slot"`
	ToSlot   uint64 `json:"to_slot"`
}

type slotRangeResponse struct {
	Txs []TxInfo `json:"txs"`
}

// RecentReference fetches a fresh reference point from the node.
func (c *Client) RecentReference(ctx context.Context) (*Reference, error) {
	var ref Reference
	if err := c.rpc.CallResult(ctx, "block.getreference", nil, &ref); err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeBlockchain, "get reference: %v", err)
	}
	return &ref, nil
}

// SubmitAndConfirm submits tx and polls the node until it confirms.
func (c *Client) SubmitAndConfirm(ctx context.Context, tx *SignedTx) (string, error) {
	params := signedTxParams{
		TxMsg: txMsgParams{
			Type:      tx.Tx.Type,
			Sender:    tx.Tx.Sender,
			Recipient: tx.Tx.Recipient,
			Amount:    uint256.NewInt(tx.Tx.Amount).Dec(),
			Timestamp: tx.Tx.Timestamp,
			TextData:  tx.Tx.TextData,
			Nonce:     tx.Tx.Nonce,
		},
		Signature: tx.Sig,
	}

	var res addTxResponse
	if err := c.rpc.CallResult(ctx, "tx.addtx", params, &res); err != nil {
		return "", errors.NewErrorf(errors.ErrCodeBlockchain, "submit tx: %v", err)
	}
	if !res.Ok {
		return "", errors.NewErrorf(errors.ErrCodeBlockchain, "tx rejected: %s", res.Error)
	}

	if err := c.awaitConfirmation(ctx, res.TxHash); err != nil {
		return "", err
	}
	return res.TxHash, nil
}

func (c *Client) awaitConfirmation(ctx context.Context, txHash string) error {
	deadline := time.Now().Add(c.cfg.ConfirmTimeout)
	for {
		var status txStatusInfo
		err := c.rpc.CallResult(ctx, "tx.gettransactionstatus", txStatusRequest{TxHash: txHash}, &status)
		if err == nil {
			switch status.Status {
			case TxStatusConfirmed, TxStatusFinalized:
				return nil
			case TxStatusFailed:
				return errors.NewErrorf(errors.ErrCodeBlockchain,
					"tx %s failed on chain: %s", txHash, status.ErrorMessage)
			}
		} else {
			logx.Warn("LEDGER", "status poll for ", txHash, " failed: ", err)
		}

		if time.Now().After(deadline) {
			return errors.NewErrorf(errors.ErrCodeBlockchain,
				"tx %s not confirmed within %s", txHash, c.cfg.ConfirmTimeout)
		}
		select {
		case <-ctx.Done():
			return errors.NewErrorf(errors.ErrCodeBlockchain, "confirm wait: %v", ctx.Err())
		case <-time.After(confirmPollInterval):
		}
	}
}

// GetAccount returns the account at addr, with Exists=false for unknown
// addresses.
func (c *Client) GetAccount(ctx context.Context, addr string) (*Account, error) {
	var res getAccountResponse
	if err := c.rpc.CallResult(ctx, "account.getaccount", getAccountRequest{Address: addr}, &res); err != nil {
		if isNotFound(err) {
			return &Account{Address: addr, Balance: uint256.NewInt(0)}, nil
		}
		return nil, errors.NewErrorf(errors.ErrCodeBlockchain, "get account: %v", err)
	}

	balance, parseErr := uint256.FromDecimal(res.Balance)
	if parseErr != nil {
		return nil, errors.NewErrorf(errors.ErrCodeBlockchain,
			"malformed balance %q for %s", res.Balance, addr)
	}
	return &Account{
		Address: addr,
		Balance: balance,
		Nonce:   res.Nonce,
		Exists:  true,
	}, nil
}

// CurrentSlot returns the node's head slot.
func (c *Client) CurrentSlot(ctx context.Context) (uint64, error) {
	var res currentSlotResponse
	if err := c.rpc.CallResult(ctx, "block.getcurrentslot", nil, &res); err != nil {
		return 0, errors.NewErrorf(errors.ErrCodeBlockchain, "get current slot: %v", err)
	}
	return res.Slot, nil
}

// GetTransaction fetches a transaction by its signature.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TxInfo, error) {
	var res getTxByHashResponse
	if err := c.rpc.CallResult(ctx, "tx.gettxbyhash", getTxByHashRequest{TxHash: signature}, &res); err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeBlockchain, "get tx: %v", err)
	}
	if res.Tx == nil {
		return nil, errors.NewErrorf(errors.ErrCodeBlockchain, "tx %s not found", signature)
	}
	return res.Tx, nil
}

// SlotTransactions returns all transactions in [from, to].
func (c *Client) SlotTransactions(ctx context.Context, from, to uint64) ([]TxInfo, error) {
	var res slotRangeResponse
	params := slotRangeRequest{FromSlot: from, ToSlot: to}
	if err := c.rpc.CallResult(ctx, "block.gettxsbyslotrange", params, &res); err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeBlockchain, "get slot txs: %v", err)
	}
	return res.Txs, nil
}

func isNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
