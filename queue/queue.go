// Package queue implements the durable, auto-retrying payment queue that
// lets a sender settle prepared payments later when the network allows.
package queue

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/mezonai/mmn-wallet/common"
	"github.com/mezonai/mmn-wallet/errors"
	"github.com/mezonai/mmn-wallet/exception"
	"github.com/mezonai/mmn-wallet/jsonx"
	"github.com/mezonai/mmn-wallet/ledger"
	"github.com/mezonai/mmn-wallet/logx"
	"github.com/mezonai/mmn-wallet/monitoring"
	"github.com/mezonai/mmn-wallet/network"
	"github.com/mezonai/mmn-wallet/stealth"
	"github.com/mezonai/mmn-wallet/storage"
)

const (
	// Capacity bounds the number of pending payments.
	Capacity = 1000

	// BatchThreshold is the pending-entry count above which a pass groups
	// payments by recipient and shares one ledger reference per group.
	BatchThreshold = 100

	// RetryCap is the number of settlement attempts before a payment
	// becomes terminally failed.
	RetryCap = 5

	storageKey = "mwallet/payment_queue"

	settlePollInterval = 30 * time.Second
)

// PaymentQueue is a bounded, persisted FIFO queue of prepared payments.
// All mutation goes through its methods; processing passes are mutually
// exclusive.
type PaymentQueue struct {
	mu      sync.Mutex // guards entries
	entries []*QueuedPayment

	processMu sync.Mutex // one processing pass at a time

	lgr       ledger.Ledger
	store     storage.Provider
	signer    ledger.Signer
	netStatus network.Status

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPaymentQueue creates an empty queue. Call LoadFromStorage to restore
// persisted entries.
func NewPaymentQueue(lgr ledger.Ledger, store storage.Provider, signer ledger.Signer, netStatus network.Status) *PaymentQueue {
	return &PaymentQueue{
		lgr:       lgr,
		store:     store,
		signer:    signer,
		netStatus: netStatus,
		stopCh:    make(chan struct{}),
	}
}

// Enqueue appends a prepared payment with a fresh identifier and persists
// the queue. Fails with queue_full before mutating anything when the
// pending count is already at capacity.
func (q *PaymentQueue) Enqueue(payment PreparedPayment) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pendingCountLocked() >= Capacity {
		return "", errors.NewErrorf(errors.ErrCodeQueueFull,
			"payment queue is full (capacity %d)", Capacity)
	}

	id, err := newPaymentID()
	if err != nil {
		return "", err
	}
	q.entries = append(q.entries, &QueuedPayment{
		ID:        id,
		Payment:   payment,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	})

	if err := q.saveToStorageLocked(); err != nil {
		// roll back the insert so a failed persist is not half-applied
		q.entries = q.entries[:len(q.entries)-1]
		return "", err
	}
	monitoring.SetQueueDepth(q.pendingCountLocked())
	return id, nil
}

func newPaymentID() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.NewErrorf(errors.ErrCodeInternal, "draw payment id: %v", err)
	}
	return common.EncodeBytesToBase58(raw), nil
}

// GetStatus returns a copy of the entry with the given identifier.
func (q *PaymentQueue) GetStatus(id string) (*QueuedPayment, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, entry := range q.entries {
		if entry.ID == id {
			cp := *entry
			return &cp, nil
		}
	}
	return nil, errors.NewErrorf(errors.ErrCodeInternal, "payment %s not found", id)
}

// Len returns the total number of entries, including retained failed ones.
func (q *PaymentQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// PendingCount returns the number of entries still awaiting settlement.
func (q *PaymentQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingCountLocked()
}

func (q *PaymentQueue) pendingCountLocked() int {
	n := 0
	for _, entry := range q.entries {
		if !entry.Status.Terminal() {
			n++
		}
	}
	return n
}

// Entries returns a snapshot copy of the whole queue, in order.
func (q *PaymentQueue) Entries() []QueuedPayment {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedPayment, len(q.entries))
	for i, entry := range q.entries {
		out[i] = *entry
	}
	return out
}

// ProcessQueue runs one settlement pass over every non-terminal entry.
// Payments above the batching threshold are grouped by recipient and share
// one freshly fetched ledger reference per group; every payment still gets
// its own settlement attempt, signature, and retry counter. Settled
// entries are removed after the pass; failed entries are retained for
// status queries.
func (q *PaymentQueue) ProcessQueue(ctx context.Context) ([]Outcome, error) {
	q.processMu.Lock()
	defer q.processMu.Unlock()

	q.mu.Lock()
	var pending []*QueuedPayment
	for _, entry := range q.entries {
		if !entry.Status.Terminal() {
			pending = append(pending, entry)
		}
	}
	q.mu.Unlock()

	if len(pending) == 0 {
		return nil, nil
	}
	if q.signer == nil {
		return nil, errors.NewError(errors.ErrCodeInternal, "watch-only wallet cannot settle queued payments")
	}

	account, err := q.lgr.GetAccount(ctx, q.signer.Address())
	if err != nil {
		return nil, err
	}
	nextNonce := account.Nonce + 1

	var outcomes []Outcome
	if len(pending) > BatchThreshold {
		outcomes = q.settleBatched(ctx, pending, &nextNonce)
	} else {
		for _, entry := range pending {
			outcomes = append(outcomes, q.settleOne(ctx, entry, &nextNonce))
		}
	}

	if err := q.finishPass(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// settleBatched groups pending payments by recipient and fetches one
// recent reference per group before submitting it. The transfer wire
// format carries no reference field; the fetch is a freshness gate, so a
// group is skipped without charging retries when the node cannot provide
// a recent reference.
func (q *PaymentQueue) settleBatched(ctx context.Context, pending []*QueuedPayment, nextNonce *uint64) []Outcome {
	groups := make(map[string][]*QueuedPayment)
	var order []string
	for _, entry := range pending {
		addr := entry.Payment.StealthAddress
		if _, seen := groups[addr]; !seen {
			order = append(order, addr)
		}
		groups[addr] = append(groups[addr], entry)
	}

	var outcomes []Outcome
	for _, addr := range order {
		// one fresh reference shared across the whole group
		ref, err := q.lgr.RecentReference(ctx)
		if err != nil {
			logx.Warn("QUEUE", "skipping group ", shortAddr(addr), ": no ledger reference: ", err)
			for _, entry := range groups[addr] {
				outcomes = append(outcomes, Outcome{ID: entry.ID, Status: entry.Status, Err: err.Error()})
			}
			continue
		}
		logx.Debug("QUEUE", "settling ", len(groups[addr]), " payments to ", shortAddr(addr), " at slot ", ref.Slot)
		for _, entry := range groups[addr] {
			outcomes = append(outcomes, q.settleOne(ctx, entry, nextNonce))
		}
	}
	return outcomes
}

func (q *PaymentQueue) settleOne(ctx context.Context, entry *QueuedPayment, nextNonce *uint64) Outcome {
	q.mu.Lock()
	entry.Status = StatusSettling
	q.mu.Unlock()

	signature, err := q.submitPayment(ctx, &entry.Payment, *nextNonce)

	q.mu.Lock()
	defer q.mu.Unlock()

	var outcome Outcome
	if err == nil {
		*nextNonce++
		entry.Status = StatusSettled
		entry.Signature = signature
		monitoring.IncreaseSettlementCount(monitoring.SettlementSettled)
		logx.Info("QUEUE", "payment ", entry.ID, " settled: ", signature)
		outcome = Outcome{ID: entry.ID, Status: StatusSettled, Signature: signature}
	} else {
		entry.RetryCount++
		if entry.RetryCount >= RetryCap {
			entry.Status = StatusFailed
			entry.FailureReason = err.Error()
			monitoring.IncreaseSettlementCount(monitoring.SettlementFailed)
			logx.Error("QUEUE", "payment ", entry.ID, " failed after ", entry.RetryCount, " attempts: ", err)
			outcome = Outcome{ID: entry.ID, Status: StatusFailed, Err: err.Error()}
		} else {
			entry.Status = StatusQueued
			monitoring.IncreaseSettlementCount(monitoring.SettlementRetried)
			logx.Warn("QUEUE", "payment ", entry.ID, " attempt ", entry.RetryCount, " failed, requeued: ", err)
			outcome = Outcome{ID: entry.ID, Status: StatusQueued, Err: err.Error()}
		}
	}

	// The settled signature must hit disk before the next entry is
	// attempted: a crash between a ledger confirmation and the end of the
	// pass would otherwise reload the payment as queued and submit the
	// confirmed transfer a second time.
	if perr := q.saveToStorageLocked(); perr != nil {
		logx.Error("QUEUE", "persist settlement of ", entry.ID, ": ", perr)
	}
	return outcome
}

// submitPayment builds the transfer to the stealth address with its
// 37-byte metadata memo, signs it with the funding key, and waits for
// ledger confirmation.
func (q *PaymentQueue) submitPayment(ctx context.Context, payment *PreparedPayment, nonce uint64) (string, error) {
	memo, err := stealth.EncodeMetadata(payment.ViewTag, payment.EphemeralPub)
	if err != nil {
		return "", errors.NewErrorf(errors.ErrCodeInternal, "encode metadata: %v", err)
	}
	tx := ledger.NewTransfer(q.signer.Address(), payment.StealthAddress, payment.Amount, memo, nonce)
	signedTx, err := q.signer.Sign(tx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	signature, err := q.lgr.SubmitAndConfirm(ctx, signedTx)
	if err != nil {
		return "", err
	}
	monitoring.ObserveSettlementLatency(start)
	return signature, nil
}

// finishPass removes settled entries, reverts any leftover transient
// status, and persists the queue. Settling must never be the stored state.
func (q *PaymentQueue) finishPass() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.entries[:0]
	for _, entry := range q.entries {
		if entry.Status == StatusSettled {
			continue
		}
		if entry.Status == StatusSettling {
			entry.Status = StatusQueued
		}
		kept = append(kept, entry)
	}
	q.entries = kept

	monitoring.SetQueueDepth(q.pendingCountLocked())
	return q.saveToStorageLocked()
}

// ClearFailed drops retained failed entries and persists the queue.
func (q *PaymentQueue) ClearFailed() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.entries[:0]
	for _, entry := range q.entries {
		if entry.Status != StatusFailed {
			kept = append(kept, entry)
		}
	}
	q.entries = kept
	return q.saveToStorageLocked()
}

// StartAutoSettlement launches the background loop: poll reachability
// every 30 seconds and run a processing pass whenever the node is online
// and payments are waiting.
func (q *PaymentQueue) StartAutoSettlement() {
	exception.SafeGo("payment-queue-settlement", func() {
		ticker := time.NewTicker(settlePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-q.stopCh:
				return
			case <-ticker.C:
				if q.PendingCount() == 0 || !q.netStatus.IsReachable() {
					continue
				}
				if _, err := q.ProcessQueue(context.Background()); err != nil {
					logx.Warn("QUEUE", "settlement pass failed: ", err)
				}
			}
		}
	})
}

// Stop terminates the auto-settlement loop.
func (q *PaymentQueue) Stop() {
	q.stopOnce.Do(func() { close(q.stopCh) })
}

// LoadFromStorage restores the persisted queue. A missing key is an empty
// queue; structurally invalid data is rejected. Any entry persisted as
// settling by a crashed pass is reverted to queued.
func (q *PaymentQueue) LoadFromStorage() error {
	data, err := q.store.LoadData(storageKey)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if data == nil {
		q.entries = nil
		return nil
	}

	var entries []*QueuedPayment
	if err := jsonx.Unmarshal(data, &entries); err != nil {
		return errors.NewErrorf(errors.ErrCodeStorageFailed, "corrupt queue snapshot: %v", err)
	}
	for _, entry := range entries {
		if entry == nil || entry.ID == "" {
			return errors.NewError(errors.ErrCodeStorageFailed, "corrupt queue snapshot: missing payment id")
		}
		if entry.Status == StatusSettling {
			entry.Status = StatusQueued
		}
	}
	q.entries = entries
	monitoring.SetQueueDepth(q.pendingCountLocked())
	return nil
}

func (q *PaymentQueue) saveToStorageLocked() error {
	data, err := jsonx.Marshal(q.entries)
	if err != nil {
		return errors.NewErrorf(errors.ErrCodeStorageFailed, "marshal queue: %v", err)
	}
	return q.store.StoreData(storageKey, data)
}

func shortAddr(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return fmt.Sprintf("%s..", addr[:8])
}
