package stealth

import (
	"context"
	"testing"

	"github.com/holiman/uint256"

	"github.com/mezonai/mmn-wallet/ledger"
	"github.com/mezonai/mmn-wallet/storage"
)

// mockLedger implements ledger.Ledger for scanner tests
type mockLedger struct {
	headSlot uint64
	txs      []ledger.TxInfo

	slotRangeCalls int
}

func (m *mockLedger) RecentReference(ctx context.Context) (*ledger.Reference, error) {
	return &ledger.Reference{Slot: m.headSlot}, nil
}

func (m *mockLedger) SubmitAndConfirm(ctx context.Context, tx *ledger.SignedTx) (string, error) {
	return "", nil
}

func (m *mockLedger) GetAccount(ctx context.Context, addr string) (*ledger.Account, error) {
	return &ledger.Account{Address: addr, Balance: uint256.NewInt(0)}, nil
}

func (m *mockLedger) CurrentSlot(ctx context.Context) (uint64, error) {
	return m.headSlot, nil
}

func (m *mockLedger) GetTransaction(ctx context.Context, signature string) (*ledger.TxInfo, error) {
	for i := range m.txs {
		if m.txs[i].Hash == signature {
			return &m.txs[i], nil
		}
	}
	return nil, nil
}

func (m *mockLedger) SlotTransactions(ctx context.Context, from, to uint64) ([]ledger.TxInfo, error) {
	m.slotRangeCalls++
	var out []ledger.TxInfo
	for _, tx := range m.txs {
		if tx.Slot >= from && tx.Slot <= to {
			out = append(out, tx)
		}
	}
	return out, nil
}

func stealthTx(t *testing.T, out *Output, amount uint64, slot uint64, hash string) ledger.TxInfo {
	t.Helper()
	memo, err := EncodeMetadata(out.ViewTag, out.EphemeralPub)
	if err != nil {
		t.Fatalf("EncodeMetadata() error = %v", err)
	}
	return ledger.TxInfo{
		Hash:      hash,
		Sender:    "funding-address",
		Recipient: out.StealthAddress,
		Amount:    uint256.NewInt(amount).Dec(),
		TextData:  memo,
		Slot:      slot,
		Status:    ledger.TxStatusFinalized,
	}
}

func TestScanForPaymentsDetectsOwnPayments(t *testing.T) {
	receiver := newIdentity(t)
	other := newIdentity(t)

	mine, err := GenerateAddress(receiver.PublicIdentity())
	if err != nil {
		t.Fatalf("GenerateAddress() error = %v", err)
	}
	theirs, err := GenerateAddress(other.PublicIdentity())
	if err != nil {
		t.Fatalf("GenerateAddress() error = %v", err)
	}

	lgr := &mockLedger{
		headSlot: 40,
		txs: []ledger.TxInfo{
			stealthTx(t, mine, 1_000_000, 12, "sig-mine"),
			stealthTx(t, theirs, 500, 13, "sig-theirs"),
			{Hash: "sig-plain", Recipient: "somebody", Amount: "7", Slot: 14},
		},
	}
	store := storage.NewMemoryProvider()
	scanner := NewScanner(receiver, lgr, store)

	found, err := scanner.ScanForPayments(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ScanForPayments() error = %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("detected %d payments, want 1", len(found))
	}
	payment := found[0]
	if payment.StealthAddress != mine.StealthAddress {
		t.Errorf("detected address = %s, want %s", payment.StealthAddress, mine.StealthAddress)
	}
	if payment.Amount != 1_000_000 {
		t.Errorf("detected amount = %d, want 1000000", payment.Amount)
	}
	if payment.Slot != 12 || payment.Signature != "sig-mine" {
		t.Errorf("detected slot/signature = %d/%s", payment.Slot, payment.Signature)
	}

	index, err := scanner.ScanIndex()
	if err != nil {
		t.Fatalf("ScanIndex() error = %v", err)
	}
	if index != 40 {
		t.Fatalf("scan index = %d, want head slot 40", index)
	}
}

func TestFirstScanIncludesGenesisSlot(t *testing.T) {
	receiver := newIdentity(t)
	mine, err := GenerateAddress(receiver.PublicIdentity())
	if err != nil {
		t.Fatalf("GenerateAddress() error = %v", err)
	}

	lgr := &mockLedger{
		headSlot: 0,
		txs:      []ledger.TxInfo{stealthTx(t, mine, 250, 0, "sig-genesis")},
	}
	scanner := NewScanner(receiver, lgr, storage.NewMemoryProvider())

	found, err := scanner.ScanForPayments(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ScanForPayments() error = %v", err)
	}
	if len(found) != 1 || found[0].Slot != 0 {
		t.Fatalf("first scan must cover slot 0, found %v", found)
	}

	// the payment is not reported again once the cursor is set
	found, err = scanner.ScanForPayments(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ScanForPayments() error = %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("re-scan detected %d payments, want 0", len(found))
	}
}

func TestScanAdvancesCursorWhenNothingFound(t *testing.T) {
	receiver := newIdentity(t)
	lgr := &mockLedger{headSlot: 25}
	scanner := NewScanner(receiver, lgr, storage.NewMemoryProvider())

	found, err := scanner.ScanForPayments(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ScanForPayments() error = %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("detected %d payments, want 0", len(found))
	}

	index, err := scanner.ScanIndex()
	if err != nil {
		t.Fatalf("ScanIndex() error = %v", err)
	}
	if index != 25 {
		t.Fatalf("scan index = %d, want 25", index)
	}

	// second resume scan covers only the new range
	lgr.headSlot = 30
	calls := lgr.slotRangeCalls
	if _, err := scanner.ScanForPayments(context.Background(), 0, 0); err != nil {
		t.Fatalf("ScanForPayments() error = %v", err)
	}
	if lgr.slotRangeCalls != calls+1 {
		t.Fatalf("resume scan made %d range calls, want 1", lgr.slotRangeCalls-calls)
	}
}

func TestSetScanIndexOverridesCursor(t *testing.T) {
	receiver := newIdentity(t)
	scanner := NewScanner(receiver, &mockLedger{headSlot: 10}, storage.NewMemoryProvider())

	if err := scanner.SetScanIndex(99); err != nil {
		t.Fatalf("SetScanIndex() error = %v", err)
	}
	index, err := scanner.ScanIndex()
	if err != nil {
		t.Fatalf("ScanIndex() error = %v", err)
	}
	if index != 99 {
		t.Fatalf("scan index = %d, want 99", index)
	}
}
