// Package wallet composes the stealth key material, the scanner, the
// ledger client, and the payment queue into the user-facing wallet
// operations.
package wallet

import (
	"context"

	"github.com/mezonai/mmn-wallet/keypair"
	"github.com/mezonai/mmn-wallet/ledger"
	"github.com/mezonai/mmn-wallet/logx"
	"github.com/mezonai/mmn-wallet/network"
	"github.com/mezonai/mmn-wallet/queue"
	"github.com/mezonai/mmn-wallet/stealth"
	"github.com/mezonai/mmn-wallet/storage"
)

// DefaultFee is the minimum fee reserve (in base units) kept back when
// sweeping a stealth address.
const DefaultFee uint64 = 5000

// Config wires a Manager.
type Config struct {
	KeyPair *keypair.KeyPair
	Ledger  ledger.Ledger
	Storage storage.Provider
	// Signer is the funding capability. May be nil for a watch-only
	// wallet; payments are then always queued.
	Signer    ledger.Signer
	NetStatus network.Status
	// Fee overrides DefaultFee when non-zero.
	Fee uint64
}

// Manager is the only wallet type exposed to callers.
type Manager struct {
	kp        *keypair.KeyPair
	scanner   *stealth.Scanner
	q         *queue.PaymentQueue
	lgr       ledger.Ledger
	signer    ledger.Signer
	netStatus network.Status
	fee       uint64
}

// SendResult reports how a payment left the wallet: settled on chain now,
// or parked in the queue. A queued payment is an expected outcome, not an
// error.
type SendResult struct {
	Settled   bool
	Signature string
	QueueID   string
}

// NewManager builds the wallet and restores the persisted queue.
func NewManager(cfg Config) (*Manager, error) {
	fee := cfg.Fee
	if fee == 0 {
		fee = DefaultFee
	}
	m := &Manager{
		kp:        cfg.KeyPair,
		scanner:   stealth.NewScanner(cfg.KeyPair, cfg.Ledger, cfg.Storage),
		q:         queue.NewPaymentQueue(cfg.Ledger, cfg.Storage, cfg.Signer, cfg.NetStatus),
		lgr:       cfg.Ledger,
		signer:    cfg.Signer,
		netStatus: cfg.NetStatus,
		fee:       fee,
	}
	if err := m.q.LoadFromStorage(); err != nil {
		return nil, err
	}
	return m, nil
}

// MetaAddress returns the publishable receiving identity.
func (m *Manager) MetaAddress() string {
	return m.kp.MetaAddress()
}

// Queue exposes the payment queue for status queries and lifecycle control.
func (m *Manager) Queue() *queue.PaymentQueue {
	return m.q
}

// Scanner exposes the receiver-side scanner.
func (m *Manager) Scanner() *stealth.Scanner {
	return m.scanner
}

// StartAutoSettlement launches the queue's background settlement loop.
func (m *Manager) StartAutoSettlement() {
	m.q.StartAutoSettlement()
}

// Close stops background work and wipes secret material.
func (m *Manager) Close() {
	m.q.Stop()
	m.scanner.Zeroize()
	m.kp.Zeroize()
}

// PreparePayment derives a fresh one-time stealth address for the receiver
// meta-address and binds it to amount.
func (m *Manager) PreparePayment(receiverMetaAddress string, amount uint64) (queue.PreparedPayment, error) {
	id, err := keypair.ParseMetaAddress(receiverMetaAddress)
	if err != nil {
		return queue.PreparedPayment{}, err
	}
	out, err := stealth.GenerateAddress(id)
	if err != nil {
		return queue.PreparedPayment{}, err
	}
	return queue.NewPreparedPayment(out, amount), nil
}

// SendPayment settles prepared immediately when a funding signer is
// available and the node is reachable; otherwise it is enqueued for the
// auto-settlement loop.
func (m *Manager) SendPayment(ctx context.Context, prepared queue.PreparedPayment) (*SendResult, error) {
	if m.signer != nil && m.netStatus.IsReachable() {
		signature, err := m.settleNow(ctx, &prepared)
		if err == nil {
			return &SendResult{Settled: true, Signature: signature}, nil
		}
		logx.Warn("WALLET", "immediate settlement failed, queueing payment: ", err)
	}

	id, err := m.q.Enqueue(prepared)
	if err != nil {
		return nil, err
	}
	return &SendResult{QueueID: id}, nil
}

func (m *Manager) settleNow(ctx context.Context, prepared *queue.PreparedPayment) (string, error) {
	memo, err := stealth.EncodeMetadata(prepared.ViewTag, prepared.EphemeralPub)
	if err != nil {
		return "", err
	}
	account, err := m.lgr.GetAccount(ctx, m.signer.Address())
	if err != nil {
		return "", err
	}
	tx := ledger.NewTransfer(m.signer.Address(), prepared.StealthAddress, prepared.Amount, memo, account.Nonce+1)
	signedTx, err := m.signer.Sign(tx)
	if err != nil {
		return "", err
	}
	return m.lgr.SubmitAndConfirm(ctx, signedTx)
}

// ScanIncoming returns newly confirmed incoming payments since the last
// scan checkpoint.
func (m *Manager) ScanIncoming(ctx context.Context) ([]stealth.DetectedPayment, error) {
	return m.scanner.ScanForPayments(ctx, 0, 0)
}
