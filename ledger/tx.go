package ledger

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/mezonai/mmn-wallet/common"
	"github.com/mezonai/mmn-wallet/errors"
)

const (
	TxTypeTransfer = 0
)

// Tx is an unsigned transfer. TextData is the chain's generic memo field;
// stealth transfers carry their 37-byte metadata payload there.
type Tx struct {
	Type      int32  `json:"type"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Timestamp uint64 `json:"timestamp"`
	TextData  string `json:"text_data"`
	Nonce     uint64 `json:"nonce"`
}

// SignedTx pairs a transfer with its base58 ed25519 signature.
type SignedTx struct {
	Tx  *Tx    `json:"tx"`
	Sig string `json:"signature"`
}

// NewTransfer builds an unsigned transfer from sender to recipient.
func NewTransfer(sender, recipient string, amount uint64, memo string, nonce uint64) *Tx {
	return &Tx{
		Type:      TxTypeTransfer,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Timestamp: uint64(time.Now().Unix()),
		TextData:  memo,
		Nonce:     nonce,
	}
}

// Serialize produces the canonical signing payload.
func (tx *Tx) Serialize() []byte {
	metadata := fmt.Sprintf("%d|%s|%s|%d|%s|%d", tx.Type, tx.Sender, tx.Recipient, tx.Amount, tx.TextData, tx.Nonce)
	return []byte(metadata)
}

// SignTransfer signs tx with a 32-byte ed25519 seed (a regular wallet key).
func SignTransfer(tx *Tx, seed []byte) (*SignedTx, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.NewErrorf(errors.ErrCodeInvalidKeyFormat,
			"signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	privKey := ed25519.NewKeyFromSeed(seed)
	signature := ed25519.Sign(privKey, tx.Serialize())
	return &SignedTx{
		Tx:  tx,
		Sig: common.EncodeBytesToBase58(signature),
	}, nil
}

// AttachSignature wraps tx with an externally produced 64-byte signature,
// e.g. one created from a derived one-time spending key.
func AttachSignature(tx *Tx, signature []byte) (*SignedTx, error) {
	if len(signature) != ed25519.SignatureSize {
		return nil, errors.NewErrorf(errors.ErrCodeInvalidKeyFormat,
			"signature must be %d bytes, got %d", ed25519.SignatureSize, len(signature))
	}
	return &SignedTx{
		Tx:  tx,
		Sig: common.EncodeBytesToBase58(signature),
	}, nil
}

// Verify checks the signature against the sender address.
func (st *SignedTx) Verify() bool {
	senderPub, err := common.DecodeBase58ToBytes(st.Tx.Sender)
	if err != nil || len(senderPub) != ed25519.PublicKeySize {
		return false
	}
	signature, err := common.DecodeBase58ToBytes(st.Sig)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(senderPub), st.Tx.Serialize(), signature)
}
