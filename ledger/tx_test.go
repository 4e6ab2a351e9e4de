package ledger

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/mezonai/mmn-wallet/common"
)

func testSeed() []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return seed
}

func TestSerializeIsCanonical(t *testing.T) {
	tx := NewTransfer("sender", "recipient", 1234, "memo", 7)
	fields := strings.Split(string(tx.Serialize()), "|")
	if len(fields) != 6 {
		t.Fatalf("serialized payload has %d fields, want 6", len(fields))
	}
	if fields[0] != "0" || fields[1] != "sender" || fields[2] != "recipient" ||
		fields[3] != "1234" || fields[4] != "memo" || fields[5] != "7" {
		t.Fatalf("unexpected payload %q", tx.Serialize())
	}
}

func TestSignTransferVerifies(t *testing.T) {
	seed := testSeed()
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	sender := common.EncodeBytesToBase58(pub)

	tx := NewTransfer(sender, "recipient", 500, "", 1)
	signed, err := SignTransfer(tx, seed)
	if err != nil {
		t.Fatalf("SignTransfer() error = %v", err)
	}
	if !signed.Verify() {
		t.Fatal("signature must verify under the sender address")
	}

	signed.Tx.Amount = 501
	if signed.Verify() {
		t.Fatal("tampered amount must not verify")
	}
}

func TestSignTransferRejectsBadSeed(t *testing.T) {
	tx := NewTransfer("sender", "recipient", 500, "", 1)
	if _, err := SignTransfer(tx, []byte("short")); err == nil {
		t.Fatal("short seed must be rejected")
	}
}

func TestAttachSignature(t *testing.T) {
	seed := testSeed()
	priv := ed25519.NewKeyFromSeed(seed)
	sender := common.EncodeBytesToBase58(priv.Public().(ed25519.PublicKey))

	tx := NewTransfer(sender, "recipient", 500, "", 1)
	raw := ed25519.Sign(priv, tx.Serialize())

	signed, err := AttachSignature(tx, raw)
	if err != nil {
		t.Fatalf("AttachSignature() error = %v", err)
	}
	if !signed.Verify() {
		t.Fatal("attached signature must verify")
	}

	if _, err := AttachSignature(tx, raw[:63]); err == nil {
		t.Fatal("truncated signature must be rejected")
	}
}

func TestSeedSignerAddressMatchesKey(t *testing.T) {
	seed := testSeed()
	signer, err := NewSeedSigner(seed)
	if err != nil {
		t.Fatalf("NewSeedSigner() error = %v", err)
	}
	defer signer.Zeroize()

	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	if signer.Address() != common.EncodeBytesToBase58(pub) {
		t.Fatal("signer address must be the base58 public key")
	}

	tx := NewTransfer(signer.Address(), "recipient", 42, "", 3)
	signed, err := signer.Sign(tx)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !signed.Verify() {
		t.Fatal("signer output must verify")
	}
}
