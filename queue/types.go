package queue

import (
	"time"

	"github.com/mezonai/mmn-wallet/stealth"
)

// PaymentStatus is the settlement state of a queued payment.
//
// Queued -> Settling -> Settled            (terminal, removed after pass)
//                    -> Queued             (retryable failure)
//                    -> Failed             (terminal, after retry cap)
type PaymentStatus int32

const (
	StatusQueued PaymentStatus = iota
	StatusSettling
	StatusSettled
	StatusFailed
)

func (s PaymentStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusSettling:
		return "settling"
	case StatusSettled:
		return "settled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final.
func (s PaymentStatus) Terminal() bool {
	return s == StatusSettled || s == StatusFailed
}

// PreparedPayment is the unsigned intent to pay a stealth address,
// independent of whether it settles immediately or waits in the queue.
type PreparedPayment struct {
	StealthAddress string `json:"stealth_address"`
	Amount         uint64 `json:"amount"`
	EphemeralPub   []byte `json:"ephemeral_pub"`
	ViewTag        []byte `json:"view_tag"`
}

// NewPreparedPayment binds a sender-side derivation to an amount.
func NewPreparedPayment(out *stealth.Output, amount uint64) PreparedPayment {
	return PreparedPayment{
		StealthAddress: out.StealthAddress,
		Amount:         amount,
		EphemeralPub:   out.EphemeralPub,
		ViewTag:        out.ViewTag,
	}
}

// QueuedPayment is a queue entry. Owned exclusively by the queue; created
// on enqueue and mutated only by queue processing.
type QueuedPayment struct {
	ID            string          `json:"id"`
	Payment       PreparedPayment `json:"payment"`
	Status        PaymentStatus   `json:"status"`
	Signature     string          `json:"signature,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	RetryCount    int             `json:"retry_count"`
}

// Outcome is the per-payment result of one processing pass.
type Outcome struct {
	ID        string
	Status    PaymentStatus
	Signature string
	Err       string
}
