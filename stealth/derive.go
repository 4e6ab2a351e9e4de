// Package stealth implements the dual-key stealth address scheme: sender
// side one-time address derivation and receiver side scanning, both built
// on an ECDH shared secret between the sender's ephemeral key and the
// receiver's viewing key.
package stealth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/mezonai/mmn-wallet/common"
	"github.com/mezonai/mmn-wallet/errors"
	"github.com/mezonai/mmn-wallet/keypair"
)

const (
	// ViewTagSize is the size of the cheap pre-filter tag.
	ViewTagSize = 4

	// MetadataSize is the fixed on-chain payload size:
	// version(1) || viewTag(4) || ephemeralPub(32).
	MetadataSize = 1 + ViewTagSize + keypair.KeySize

	offsetDomain = "mwallet/stealth/offset-v1"
	tagDomain    = "mwallet/stealth/view-tag-v1"
	nonceDomain  = "mwallet/stealth/sign-nonce-v1"
)

// Output is a single sender-side derivation: the one-time address the funds
// go to, the published ephemeral public key, and the viewing tag receivers
// use as a pre-filter. A fresh Output is produced per payment and the
// stealth address is never reused.
type Output struct {
	StealthAddress string
	EphemeralPub   []byte
	ViewTag        []byte
}

// GenerateAddress derives a one-time stealth address for the given receiver
// identity using a freshly drawn ephemeral key. Two calls for the same
// receiver yield unrelated outputs.
func GenerateAddress(id *keypair.PublicIdentity) (*Output, error) {
	seed := make([]byte, 64)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeInternal, "draw ephemeral key: %v", err)
	}
	defer keypair.Wipe(seed)

	ephemeral, err := edwards25519.NewScalar().SetUniformBytes(seed)
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeInternal, "ephemeral scalar: %v", err)
	}
	return deriveOutput(id, ephemeral)
}

// GenerateAddressWithEphemeral derives an output from a caller-supplied
// 32-byte ephemeral secret scalar. Intended for deterministic tests.
func GenerateAddressWithEphemeral(id *keypair.PublicIdentity, ephemeralSecret []byte) (*Output, error) {
	ephemeral, err := edwards25519.NewScalar().SetCanonicalBytes(ephemeralSecret)
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeInvalidKeyFormat, "ephemeral secret: %v", err)
	}
	return deriveOutput(id, ephemeral)
}

func deriveOutput(id *keypair.PublicIdentity, ephemeral *edwards25519.Scalar) (*Output, error) {
	viewPub, err := new(edwards25519.Point).SetBytes(id.ViewingPub[:])
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeInvalidKeyFormat, "viewing public key: %v", err)
	}
	spendPub, err := new(edwards25519.Point).SetBytes(id.SpendingPub[:])
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeInvalidKeyFormat, "spending public key: %v", err)
	}

	// shared = ephemeral * V
	shared := new(edwards25519.Point).ScalarMult(ephemeral, viewPub).Bytes()
	defer keypair.Wipe(shared)

	offset, err := offsetScalar(shared)
	if err != nil {
		return nil, err
	}

	// stealth = S + offset * B
	stealthPoint := new(edwards25519.Point).Add(
		spendPub,
		new(edwards25519.Point).ScalarBaseMult(offset),
	)

	return &Output{
		StealthAddress: common.EncodeBytesToBase58(stealthPoint.Bytes()),
		EphemeralPub:   new(edwards25519.Point).ScalarBaseMult(ephemeral).Bytes(),
		ViewTag:        viewTag(shared),
	}, nil
}

// offsetScalar hashes the shared secret into the scalar added to the
// receiver's spending key. Domain-separated from the view tag derivation so
// the published tag is useless for forging ownership.
func offsetScalar(shared []byte) (*edwards25519.Scalar, error) {
	h := sha512.New()
	h.Write([]byte(offsetDomain))
	h.Write(shared)
	digest := h.Sum(nil)
	defer keypair.Wipe(digest)

	s, err := edwards25519.NewScalar().SetUniformBytes(digest)
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeKeyDerivationFailed, "offset scalar: %v", err)
	}
	return s, nil
}

func viewTag(shared []byte) []byte {
	h := sha256.New()
	h.Write([]byte(tagDomain))
	h.Write(shared)
	return h.Sum(nil)[:ViewTagSize]
}

// EncodeMetadata builds the 37-byte on-chain payload published alongside a
// stealth transfer, base58-encoded for the ledger's memo field.
func EncodeMetadata(tag, ephemeralPub []byte) (string, error) {
	if len(tag) != ViewTagSize {
		return "", fmt.Errorf("view tag must be %d bytes, got %d", ViewTagSize, len(tag))
	}
	if len(ephemeralPub) != keypair.KeySize {
		return "", fmt.Errorf("ephemeral public key must be %d bytes, got %d", keypair.KeySize, len(ephemeralPub))
	}
	payload := make([]byte, 0, MetadataSize)
	payload = append(payload, keypair.Version1)
	payload = append(payload, tag...)
	payload = append(payload, ephemeralPub...)
	return common.EncodeBytesToBase58(payload), nil
}

// ParseMetadata decodes a memo produced by EncodeMetadata. Returns the view
// tag and the ephemeral public key.
func ParseMetadata(memo string) (tag, ephemeralPub []byte, err error) {
	payload, err := common.DecodeBase58ToBytes(memo)
	if err != nil {
		return nil, nil, err
	}
	if len(payload) != MetadataSize {
		return nil, nil, fmt.Errorf("stealth metadata size %d, want %d", len(payload), MetadataSize)
	}
	if payload[0] != keypair.Version1 {
		return nil, nil, fmt.Errorf("unsupported stealth metadata version %d", payload[0])
	}
	return payload[1 : 1+ViewTagSize], payload[1+ViewTagSize:], nil
}
