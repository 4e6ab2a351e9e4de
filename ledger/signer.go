package ledger

import (
	"crypto/ed25519"

	"github.com/mezonai/mmn-wallet/common"
	"github.com/mezonai/mmn-wallet/errors"
	"github.com/mezonai/mmn-wallet/keypair"
)

// Signer is a funding capability: an address that can pay for transfers
// and sign them.
type Signer interface {
	// Address is the base58 funding address.
	Address() string
	// Sign signs a transfer built with this signer as sender.
	Sign(tx *Tx) (*SignedTx, error)
}

// SeedSigner signs with a regular ed25519 wallet key.
type SeedSigner struct {
	addr string
	seed [ed25519.SeedSize]byte
}

var _ Signer = (*SeedSigner)(nil)

// NewSeedSigner wraps a 32-byte ed25519 seed. The signer keeps its own
// copy; the caller should wipe the input.
func NewSeedSigner(seed []byte) (*SeedSigner, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.NewErrorf(errors.ErrCodeInvalidKeyFormat,
			"seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	s := &SeedSigner{}
	copy(s.seed[:], seed)

	privKey := ed25519.NewKeyFromSeed(s.seed[:])
	s.addr = common.EncodeBytesToBase58(privKey.Public().(ed25519.PublicKey))
	keypair.Wipe(privKey)
	return s, nil
}

func (s *SeedSigner) Address() string {
	return s.addr
}

func (s *SeedSigner) Sign(tx *Tx) (*SignedTx, error) {
	return SignTransfer(tx, s.seed[:])
}

// Zeroize wipes the seed. The signer must not be used afterwards.
func (s *SeedSigner) Zeroize() {
	keypair.Wipe(s.seed[:])
}
