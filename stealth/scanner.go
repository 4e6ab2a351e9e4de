package stealth

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"

	"filippo.io/edwards25519"
	"github.com/holiman/uint256"

	"github.com/mezonai/mmn-wallet/common"
	"github.com/mezonai/mmn-wallet/errors"
	"github.com/mezonai/mmn-wallet/keypair"
	"github.com/mezonai/mmn-wallet/ledger"
	"github.com/mezonai/mmn-wallet/logx"
	"github.com/mezonai/mmn-wallet/monitoring"
	"github.com/mezonai/mmn-wallet/storage"
)

const (
	scanIndexKey = "mwallet/scan_index"

	// slots fetched per ledger round-trip while scanning
	scanChunkSize = 512
)

// DetectedPayment is a verified incoming stealth payment. Read-only once
// created.
type DetectedPayment struct {
	StealthAddress string
	Amount         uint64
	EphemeralPub   []byte
	ViewTag        []byte
	Slot           uint64
	Signature      string
}

// Scanner detects incoming stealth payments for one receiving identity.
// It holds the viewing secret and the spending public key; the spending
// secret is never required for scanning.
type Scanner struct {
	mu         sync.Mutex
	viewSecret [keypair.KeySize]byte
	spendPub   [keypair.KeySize]byte

	lgr   ledger.Ledger
	store storage.Provider

	scanIndex   uint64
	indexLoaded bool
	indexSet    bool
}

// NewScanner builds a scanner for the given identity.
func NewScanner(kp *keypair.KeyPair, lgr ledger.Ledger, store storage.Provider) *Scanner {
	s := &Scanner{lgr: lgr, store: store}

	viewSecret := kp.ViewingSecretKey()
	copy(s.viewSecret[:], viewSecret)
	keypair.Wipe(viewSecret)

	copy(s.spendPub[:], kp.SpendingPublicKey())
	return s
}

// Zeroize wipes the scanner's viewing secret.
func (s *Scanner) Zeroize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	keypair.Wipe(s.viewSecret[:])
}

func (s *Scanner) sharedSecret(ephemeralPub []byte) ([]byte, error) {
	ephPoint, err := new(edwards25519.Point).SetBytes(ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("ephemeral public key: %w", err)
	}
	view, err := edwards25519.NewScalar().SetCanonicalBytes(s.viewSecret[:])
	if err != nil {
		return nil, fmt.Errorf("viewing secret: %w", err)
	}
	return new(edwards25519.Point).ScalarMult(view, ephPoint).Bytes(), nil
}

// CheckViewTag is the cheap pre-filter: one ECDH plus one hash. It must be
// applied to every candidate before VerifyOwnership.
func (s *Scanner) CheckViewTag(ephemeralPub, candidateTag []byte) bool {
	if len(candidateTag) != ViewTagSize {
		return false
	}
	shared, err := s.sharedSecret(ephemeralPub)
	if err != nil {
		return false
	}
	defer keypair.Wipe(shared)
	return bytes.Equal(viewTag(shared), candidateTag)
}

// VerifyOwnership recomputes the full stealth derivation and compares it
// against the candidate address. Call only after the tag check passes.
func (s *Scanner) VerifyOwnership(ephemeralPub []byte, candidateStealthAddress string) bool {
	shared, err := s.sharedSecret(ephemeralPub)
	if err != nil {
		return false
	}
	defer keypair.Wipe(shared)

	offset, err := offsetScalar(shared)
	if err != nil {
		return false
	}
	spendPub, err := new(edwards25519.Point).SetBytes(s.spendPub[:])
	if err != nil {
		return false
	}
	derived := new(edwards25519.Point).Add(
		spendPub,
		new(edwards25519.Point).ScalarBaseMult(offset),
	)
	return common.EncodeBytesToBase58(derived.Bytes()) == candidateStealthAddress
}

// DeriveSpendingKey reconstructs the one-time spending secret for a
// confirmed payment: the offset scalar added to the caller-supplied
// spending secret mod the curve order. The caller must verify the derived
// key's public half against the expected stealth address before signing a
// spend with it, and must Wipe both the input and the result after use.
func (s *Scanner) DeriveSpendingKey(ephemeralPub, spendingSecret []byte) ([]byte, error) {
	shared, err := s.sharedSecret(ephemeralPub)
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeKeyDerivationFailed, "shared secret: %v", err)
	}
	defer keypair.Wipe(shared)

	offset, err := offsetScalar(shared)
	if err != nil {
		return nil, err
	}
	spend, err := edwards25519.NewScalar().SetCanonicalBytes(spendingSecret)
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeKeyDerivationFailed, "spending secret: %v", err)
	}
	oneTime := edwards25519.NewScalar().Add(spend, offset)
	return oneTime.Bytes(), nil
}

// ScanForPayments iterates ledger transactions in [fromSlot, toSlot],
// applying the tag pre-filter before full verification. Calling with
// (0, 0) resumes from the persisted cursor through the current head,
// starting at genesis when no scan has completed yet. The
// cursor advances past the scanned range even when nothing is found, so
// re-scans stay incremental.
func (s *Scanner) ScanForPayments(ctx context.Context, fromSlot, toSlot uint64) ([]DetectedPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fromSlot == 0 && toSlot == 0 {
		index, cursorSet, err := s.loadScanIndex()
		if err != nil {
			return nil, err
		}
		// a wallet with no cursor yet starts at genesis
		if cursorSet {
			fromSlot = index + 1
		}
		head, err := s.lgr.CurrentSlot(ctx)
		if err != nil {
			return nil, err
		}
		toSlot = head
	}
	if fromSlot > toSlot {
		return nil, nil
	}

	var detected []DetectedPayment
	for chunkStart := fromSlot; chunkStart <= toSlot; chunkStart += scanChunkSize {
		chunkEnd := chunkStart + scanChunkSize - 1
		if chunkEnd > toSlot {
			chunkEnd = toSlot
		}
		txs, err := s.lgr.SlotTransactions(ctx, chunkStart, chunkEnd)
		if err != nil {
			return nil, err
		}
		for i := range txs {
			if payment, ok := s.inspect(&txs[i]); ok {
				detected = append(detected, *payment)
			}
		}
	}

	monitoring.AddScannedSlots(toSlot - fromSlot + 1)
	if err := s.storeScanIndex(toSlot); err != nil {
		return nil, err
	}
	if len(detected) > 0 {
		logx.Info("SCANNER", "found ", len(detected), " incoming payments up to slot ", toSlot)
	}
	return detected, nil
}

func (s *Scanner) inspect(tx *ledger.TxInfo) (*DetectedPayment, bool) {
	if tx.TextData == "" {
		return nil, false
	}
	tag, ephemeralPub, err := ParseMetadata(tx.TextData)
	if err != nil {
		return nil, false
	}
	if !s.CheckViewTag(ephemeralPub, tag) {
		return nil, false
	}
	if !s.VerifyOwnership(ephemeralPub, tx.Recipient) {
		return nil, false
	}

	amount, err := uint256.FromDecimal(tx.Amount)
	if err != nil || !amount.IsUint64() {
		logx.Warn("SCANNER", "skipping tx ", tx.Hash, " with malformed amount ", tx.Amount)
		return nil, false
	}

	monitoring.IncreaseDetectedPayments()
	return &DetectedPayment{
		StealthAddress: tx.Recipient,
		Amount:         amount.Uint64(),
		EphemeralPub:   ephemeralPub,
		ViewTag:        tag,
		Slot:           tx.Slot,
		Signature:      tx.Hash,
	}, true
}

// ScanIndex returns the persisted resume cursor, zero when no scan has
// completed yet.
func (s *Scanner) ScanIndex() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, _, err := s.loadScanIndex()
	return index, err
}

// SetScanIndex overrides the resume cursor, for checkpointing or replay.
func (s *Scanner) SetScanIndex(n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeScanIndex(n)
}

// loadScanIndex reports the cursor and whether one has been set at all,
// so an index of zero is distinguishable from a wallet that never scanned.
func (s *Scanner) loadScanIndex() (uint64, bool, error) {
	if s.indexLoaded {
		return s.scanIndex, s.indexSet, nil
	}
	data, err := s.store.LoadData(scanIndexKey)
	if err != nil {
		return 0, false, err
	}
	if data == nil {
		s.indexLoaded = true
		return 0, false, nil
	}
	index, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, errors.NewErrorf(errors.ErrCodeStorageFailed,
			"corrupt scan index %q", string(data))
	}
	s.scanIndex = index
	s.indexLoaded = true
	s.indexSet = true
	return index, true, nil
}

func (s *Scanner) storeScanIndex(n uint64) error {
	if err := s.store.StoreData(scanIndexKey, []byte(strconv.FormatUint(n, 10))); err != nil {
		return err
	}
	s.scanIndex = n
	s.indexLoaded = true
	s.indexSet = true
	return nil
}
