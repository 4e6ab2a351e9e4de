package wallet

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"testing"

	"github.com/holiman/uint256"

	"github.com/mezonai/mmn-wallet/common"
	"github.com/mezonai/mmn-wallet/errors"
	"github.com/mezonai/mmn-wallet/keypair"
	"github.com/mezonai/mmn-wallet/ledger"
	"github.com/mezonai/mmn-wallet/network"
	"github.com/mezonai/mmn-wallet/stealth"
	"github.com/mezonai/mmn-wallet/storage"
)

// mockLedger implements ledger.Ledger for wallet tests
type mockLedger struct {
	balances  map[string]uint64
	nonces    map[string]uint64
	submitted []*ledger.SignedTx
	headSlot  uint64
	txs       []ledger.TxInfo
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		balances: make(map[string]uint64),
		nonces:   make(map[string]uint64),
		headSlot: 50,
	}
}

func (m *mockLedger) RecentReference(ctx context.Context) (*ledger.Reference, error) {
	return &ledger.Reference{Slot: m.headSlot}, nil
}

func (m *mockLedger) SubmitAndConfirm(ctx context.Context, tx *ledger.SignedTx) (string, error) {
	if !tx.Verify() {
		return "", errors.NewError(errors.ErrCodeBlockchain, "bad signature")
	}
	m.submitted = append(m.submitted, tx)
	return fmt.Sprintf("sig-%d", len(m.submitted)), nil
}

func (m *mockLedger) GetAccount(ctx context.Context, addr string) (*ledger.Account, error) {
	balance, ok := m.balances[addr]
	return &ledger.Account{
		Address: addr,
		Balance: uint256.NewInt(balance),
		Nonce:   m.nonces[addr],
		Exists:  ok,
	}, nil
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
	return nil, errors.NewError(errors.ErrCodeBlockchain, "tx not found")
}

func (m *mockLedger) SlotTransactions(ctx context.Context, from, to uint64) ([]ledger.TxInfo, error) {
	var out []ledger.TxInfo
	for _, tx := range m.txs {
		if tx.Slot >= from && tx.Slot <= to {
			out = append(out, tx)
		}
	}
	return out, nil
}

func newTestManager(t *testing.T, lgr ledger.Ledger, online bool) (*Manager, ledger.Signer) {
	t.Helper()
	kp, err := keypair.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(0x40 + i)
	}
	signer, err := ledger.NewSeedSigner(seed)
	if err != nil {
		t.Fatalf("NewSeedSigner() error = %v", err)
	}

	mgr, err := NewManager(Config{
		KeyPair:   kp,
		Ledger:    lgr,
		Storage:   storage.NewMemoryProvider(),
		Signer:    signer,
		NetStatus: network.Always(online),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(mgr.Close)
	return mgr, signer
}

func TestPreparePaymentUsesFreshAddresses(t *testing.T) {
	mgr, _ := newTestManager(t, newMockLedger(), true)

	receiver, err := keypair.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	defer receiver.Zeroize()

	first, err := mgr.PreparePayment(receiver.MetaAddress(), 100)
	if err != nil {
		t.Fatalf("PreparePayment() error = %v", err)
	}
	second, err := mgr.PreparePayment(receiver.MetaAddress(), 100)
	if err != nil {
		t.Fatalf("PreparePayment() error = %v", err)
	}
	if first.StealthAddress == second.StealthAddress {
		t.Error("prepared payments must use distinct one-time addresses")
	}

	if _, err := mgr.PreparePayment("not-a-meta-address", 100); err == nil {
		t.Error("malformed meta-address must be rejected")
	}
}

func TestSendPaymentSettlesWhenOnline(t *testing.T) {
	lgr := newMockLedger()
	mgr, signer := newTestManager(t, lgr, true)
	lgr.balances[signer.Address()] = 10_000_000

	receiver, err := keypair.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	defer receiver.Zeroize()

	prepared, err := mgr.PreparePayment(receiver.MetaAddress(), 2500)
	if err != nil {
		t.Fatalf("PreparePayment() error = %v", err)
	}
	result, err := mgr.SendPayment(context.Background(), prepared)
	if err != nil {
		t.Fatalf("SendPayment() error = %v", err)
	}
	if !result.Settled || result.Signature == "" {
		t.Fatalf("expected immediate settlement, got %+v", result)
	}
	if len(lgr.submitted) != 1 {
		t.Fatalf("submitted %d txs, want 1", len(lgr.submitted))
	}
	if lgr.submitted[0].Tx.Recipient != prepared.StealthAddress {
		t.Error("transfer must target the stealth address")
	}
}

func TestSendPaymentQueuesWhenOffline(t *testing.T) {
	lgr := newMockLedger()
	mgr, _ := newTestManager(t, lgr, false)

	receiver, err := keypair.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	defer receiver.Zeroize()

	prepared, err := mgr.PreparePayment(receiver.MetaAddress(), 2500)
	if err != nil {
		t.Fatalf("PreparePayment() error = %v", err)
	}
	result, err := mgr.SendPayment(context.Background(), prepared)
	if err != nil {
		t.Fatalf("SendPayment() error = %v", err)
	}
	if result.Settled || result.QueueID == "" {
		t.Fatalf("expected queued payment, got %+v", result)
	}
	if len(lgr.submitted) != 0 {
		t.Fatal("no tx must be submitted while offline")
	}

	entry, err := mgr.Queue().GetStatus(result.QueueID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if entry.Status.Terminal() {
		t.Fatalf("queued payment status = %s", entry.Status)
	}
}

func TestShieldPublishesMetadata(t *testing.T) {
	lgr := newMockLedger()
	mgr, signer := newTestManager(t, lgr, true)
	lgr.balances[signer.Address()] = 10_000_000

	result, err := mgr.Shield(context.Background(), 5000)
	if err != nil {
		t.Fatalf("Shield() error = %v", err)
	}
	if len(lgr.submitted) != 1 {
		t.Fatalf("submitted %d txs, want 1", len(lgr.submitted))
	}

	tx := lgr.submitted[0].Tx
	if tx.Sender != signer.Address() || tx.Recipient != result.StealthAddress {
		t.Error("shield must move funds from the funding address into the stealth address")
	}
	if tx.Amount != 5000 {
		t.Errorf("shield amount = %d, want 5000", tx.Amount)
	}

	tag, ephemeralPub, err := stealth.ParseMetadata(tx.TextData)
	if err != nil {
		t.Fatalf("shield memo must carry stealth metadata: %v", err)
	}
	// the wallet's own scanner must recognize the shielded output
	if !mgr.Scanner().CheckViewTag(ephemeralPub, tag) {
		t.Error("own scanner must pass the tag pre-filter on a shielded output")
	}
	if !mgr.Scanner().VerifyOwnership(ephemeralPub, result.StealthAddress) {
		t.Error("own scanner must verify ownership of a shielded output")
	}
}

func TestShieldInsufficientBalance(t *testing.T) {
	lgr := newMockLedger()
	mgr, signer := newTestManager(t, lgr, true)
	lgr.balances[signer.Address()] = 100 // below amount+fee

	_, err := mgr.Shield(context.Background(), 5000)
	if err == nil {
		t.Fatal("shield must fail on insufficient balance")
	}
	if !errors.Is(err, errors.ErrCodeInsufficientBalance) {
		t.Fatalf("error code = %v, want insufficient_balance", err)
	}
}

func TestUnshieldSweepsToDestination(t *testing.T) {
	lgr := newMockLedger()
	mgr, signer := newTestManager(t, lgr, true)
	lgr.balances[signer.Address()] = 10_000_000

	shielded, err := mgr.Shield(context.Background(), 50_000)
	if err != nil {
		t.Fatalf("Shield() error = %v", err)
	}
	lgr.balances[shielded.StealthAddress] = 50_000

	tx := lgr.submitted[0].Tx
	tag, ephemeralPub, err := stealth.ParseMetadata(tx.TextData)
	if err != nil {
		t.Fatalf("ParseMetadata() error = %v", err)
	}
	detected := &stealth.DetectedPayment{
		StealthAddress: shielded.StealthAddress,
		Amount:         50_000,
		EphemeralPub:   ephemeralPub,
		ViewTag:        tag,
		Signature:      shielded.Signature,
	}

	txHash, err := mgr.Unshield(context.Background(), detected, "destination-address")
	if err != nil {
		t.Fatalf("Unshield() error = %v", err)
	}
	if txHash == "" {
		t.Fatal("unshield must return the sweep signature")
	}

	sweep := lgr.submitted[len(lgr.submitted)-1]
	if sweep.Tx.Sender != shielded.StealthAddress || sweep.Tx.Recipient != "destination-address" {
		t.Error("sweep must spend from the stealth address to the destination")
	}
	if sweep.Tx.Amount != 50_000-DefaultFee {
		t.Errorf("sweep amount = %d, want balance minus fee", sweep.Tx.Amount)
	}

	// the one-time signature must verify under the stealth address key
	pub, err := common.DecodeBase58ToBytes(shielded.StealthAddress)
	if err != nil {
		t.Fatalf("decode stealth address: %v", err)
	}
	sig, err := common.DecodeBase58ToBytes(sweep.Sig)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), sweep.Tx.Serialize(), sig) {
		t.Fatal("sweep signature must verify under the one-time key")
	}
}

func TestUnshieldRejectsForeignPayment(t *testing.T) {
	lgr := newMockLedger()
	mgr, _ := newTestManager(t, lgr, true)

	// a payment addressed to some other identity
	other, err := keypair.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	defer other.Zeroize()
	out, err := stealth.GenerateAddress(other.PublicIdentity())
	if err != nil {
		t.Fatalf("GenerateAddress() error = %v", err)
	}
	lgr.balances[out.StealthAddress] = 50_000

	detected := &stealth.DetectedPayment{
		StealthAddress: out.StealthAddress,
		EphemeralPub:   out.EphemeralPub,
		ViewTag:        out.ViewTag,
	}
	_, err = mgr.Unshield(context.Background(), detected, "destination-address")
	if err == nil {
		t.Fatal("unshield must refuse a payment the wallet does not own")
	}
	if !errors.Is(err, errors.ErrCodeKeyDerivationFailed) {
		t.Fatalf("error code = %v, want key_derivation_failed", err)
	}
	if len(lgr.submitted) != 0 {
		t.Fatal("no spend may be attempted on derivation mismatch")
	}
}

func TestUnshieldInsufficientBalance(t *testing.T) {
	lgr := newMockLedger()
	mgr, signer := newTestManager(t, lgr, true)
	lgr.balances[signer.Address()] = 10_000_000

	shielded, err := mgr.Shield(context.Background(), 50_000)
	if err != nil {
		t.Fatalf("Shield() error = %v", err)
	}
	// stealth address holds less than the fee floor
	lgr.balances[shielded.StealthAddress] = DefaultFee - 1

	tx := lgr.submitted[0].Tx
	tag, ephemeralPub, err := stealth.ParseMetadata(tx.TextData)
	if err != nil {
		t.Fatalf("ParseMetadata() error = %v", err)
	}
	detected := &stealth.DetectedPayment{
		StealthAddress: shielded.StealthAddress,
		EphemeralPub:   ephemeralPub,
		ViewTag:        tag,
	}
	_, err = mgr.Unshield(context.Background(), detected, "destination-address")
	if !errors.Is(err, errors.ErrCodeInsufficientBalance) {
		t.Fatalf("error = %v, want insufficient_balance", err)
	}
}

func TestScanIncomingFindsShieldedOutput(t *testing.T) {
	lgr := newMockLedger()
	mgr, signer := newTestManager(t, lgr, true)
	lgr.balances[signer.Address()] = 10_000_000

	shielded, err := mgr.Shield(context.Background(), 7777)
	if err != nil {
		t.Fatalf("Shield() error = %v", err)
	}

	submitted := lgr.submitted[0]
	lgr.txs = append(lgr.txs, ledger.TxInfo{
		Hash:      shielded.Signature,
		Sender:    submitted.Tx.Sender,
		Recipient: submitted.Tx.Recipient,
		Amount:    uint256.NewInt(submitted.Tx.Amount).Dec(),
		TextData:  submitted.Tx.TextData,
		Slot:      42,
		Status:    ledger.TxStatusFinalized,
	})

	found, err := mgr.ScanIncoming(context.Background())
	if err != nil {
		t.Fatalf("ScanIncoming() error = %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("detected %d payments, want 1", len(found))
	}
	if found[0].StealthAddress != shielded.StealthAddress || found[0].Amount != 7777 {
		t.Fatalf("detected payment %+v does not match shielded output", found[0])
	}

	// subsequent scan is incremental and finds nothing new
	found, err = mgr.ScanIncoming(context.Background())
	if err != nil {
		t.Fatalf("ScanIncoming() error = %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("re-scan detected %d payments, want 0", len(found))
	}
}
