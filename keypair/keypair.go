// Package keypair manages the dual-key receiving identity used by the
// stealth address scheme: one spending key pair and one viewing key pair,
// generated independently and never derived from one another.
package keypair

import (
	"crypto/rand"
	"fmt"
	"strings"

	"filippo.io/edwards25519"

	"github.com/mezonai/mmn-wallet/common"
	"github.com/mezonai/mmn-wallet/errors"
)

const (
	// Version1 denotes the standard (non-hybrid) stealth scheme.
	Version1 byte = 1

	// MetaAddressPrefix is the literal first field of a meta-address string.
	MetaAddressPrefix = "stealth"

	// KeySize is the encoded size of every curve scalar and point.
	KeySize = 32
)

// KeyPair owns the secret material of a receiving identity. Secrets live
// only inside this struct; accessors hand out copies that the caller must
// wipe after use.
type KeyPair struct {
	version     byte
	spendSecret [KeySize]byte
	viewSecret  [KeySize]byte
	spendPub    [KeySize]byte
	viewPub     [KeySize]byte
}

// PublicIdentity is the parsed, public-only form of a meta-address.
// It carries no secret fields at all, so sender-side code can never
// accidentally operate on an all-zero secret.
type PublicIdentity struct {
	Version     byte
	SpendingPub [KeySize]byte
	ViewingPub  [KeySize]byte
}

// Generate creates a new identity from two independent random draws.
func Generate() (*KeyPair, error) {
	spendScalar, err := randomScalar()
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeInternal, "generate spending key: %v", err)
	}
	viewScalar, err := randomScalar()
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeInternal, "generate viewing key: %v", err)
	}

	kp := &KeyPair{version: Version1}
	copy(kp.spendSecret[:], spendScalar.Bytes())
	copy(kp.viewSecret[:], viewScalar.Bytes())
	copy(kp.spendPub[:], new(edwards25519.Point).ScalarBaseMult(spendScalar).Bytes())
	copy(kp.viewPub[:], new(edwards25519.Point).ScalarBaseMult(viewScalar).Bytes())
	return kp, nil
}

func randomScalar() (*edwards25519.Scalar, error) {
	seed := make([]byte, 64)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	defer Wipe(seed)
	return edwards25519.NewScalar().SetUniformBytes(seed)
}

// Version returns the scheme version byte.
func (kp *KeyPair) Version() byte {
	return kp.version
}

// SpendingPublicKey returns the encoded spending public key.
func (kp *KeyPair) SpendingPublicKey() []byte {
	out := make([]byte, KeySize)
	copy(out, kp.spendPub[:])
	return out
}

// ViewingPublicKey returns the encoded viewing public key.
func (kp *KeyPair) ViewingPublicKey() []byte {
	out := make([]byte, KeySize)
	copy(out, kp.viewPub[:])
	return out
}

// SpendingSecretKey returns a copy of the spending secret scalar.
// The caller must Wipe the returned slice as soon as it is done with it.
func (kp *KeyPair) SpendingSecretKey() []byte {
	out := make([]byte, KeySize)
	copy(out, kp.spendSecret[:])
	return out
}

// ViewingSecretKey returns a copy of the viewing secret scalar.
// The caller must Wipe the returned slice as soon as it is done with it.
func (kp *KeyPair) ViewingSecretKey() []byte {
	out := make([]byte, KeySize)
	copy(out, kp.viewSecret[:])
	return out
}

// PublicIdentity returns the public-only view of this identity.
func (kp *KeyPair) PublicIdentity() *PublicIdentity {
	id := &PublicIdentity{Version: kp.version}
	copy(id.SpendingPub[:], kp.spendPub[:])
	copy(id.ViewingPub[:], kp.viewPub[:])
	return id
}

// MetaAddress encodes the public halves as the publishable meta-address
// string "stealth:<version>:<b58 spend pub>:<b58 view pub>".
func (kp *KeyPair) MetaAddress() string {
	return kp.PublicIdentity().MetaAddress()
}

// MetaAddress encodes the identity as its meta-address string.
func (id *PublicIdentity) MetaAddress() string {
	return fmt.Sprintf("%s:%d:%s:%s",
		MetaAddressPrefix,
		id.Version,
		common.EncodeBytesToBase58(id.SpendingPub[:]),
		common.EncodeBytesToBase58(id.ViewingPub[:]))
}

// ParseMetaAddress parses and validates a meta-address string into its
// public-only identity. Malformed structure or an unsupported version is
// an invalid_meta_address error; a field that does not decode to a valid
// curve point is an invalid_key_format error.
func ParseMetaAddress(s string) (*PublicIdentity, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 4 {
		return nil, errors.NewErrorf(errors.ErrCodeInvalidMetaAddress,
			"meta-address must have 4 fields, got %d", len(fields))
	}
	if fields[0] != MetaAddressPrefix {
		return nil, errors.NewErrorf(errors.ErrCodeInvalidMetaAddress,
			"meta-address prefix %q is not %q", fields[0], MetaAddressPrefix)
	}
	if fields[1] != "1" {
		return nil, errors.NewErrorf(errors.ErrCodeInvalidMetaAddress,
			"unsupported meta-address version %q", fields[1])
	}

	spendPub, err := decodePoint(fields[2])
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeInvalidKeyFormat,
			"invalid spending public key: %v", err)
	}
	viewPub, err := decodePoint(fields[3])
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeInvalidKeyFormat,
			"invalid viewing public key: %v", err)
	}

	id := &PublicIdentity{Version: Version1}
	copy(id.SpendingPub[:], spendPub)
	copy(id.ViewingPub[:], viewPub)
	return id, nil
}

func decodePoint(b58 string) ([]byte, error) {
	raw, err := common.DecodeBase58Fixed(b58, KeySize)
	if err != nil {
		return nil, err
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return nil, fmt.Errorf("not a valid curve point: %w", err)
	}
	return raw, nil
}

// Zeroize wipes the secret halves. The key pair must not be used afterwards.
func (kp *KeyPair) Zeroize() {
	Wipe(kp.spendSecret[:])
	Wipe(kp.viewSecret[:])
}

// Wipe overwrites b with zeros. Used on every buffer that held secret
// material, on every exit path.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
