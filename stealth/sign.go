package stealth

import (
	"crypto/sha512"

	"filippo.io/edwards25519"

	"github.com/mezonai/mmn-wallet/errors"
	"github.com/mezonai/mmn-wallet/keypair"
)

// SignWithOneTimeKey signs message with a derived one-time secret scalar.
// The derived spending key is a raw scalar, not an ed25519 seed, so the
// standard library signer cannot be used; this produces a Schnorr signature
// over the same equation, verifiable with crypto/ed25519.Verify against the
// scalar's public key.
func SignWithOneTimeKey(oneTimeSecret, message []byte) ([]byte, error) {
	x, err := edwards25519.NewScalar().SetCanonicalBytes(oneTimeSecret)
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeKeyDerivationFailed, "one-time secret: %v", err)
	}

	pub := new(edwards25519.Point).ScalarBaseMult(x).Bytes()

	// Deterministic nonce from the secret and the message.
	h := sha512.New()
	h.Write([]byte(nonceDomain))
	h.Write(oneTimeSecret)
	h.Write(message)
	nonceDigest := h.Sum(nil)
	defer keypair.Wipe(nonceDigest)

	r, err := edwards25519.NewScalar().SetUniformBytes(nonceDigest)
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeKeyDerivationFailed, "nonce scalar: %v", err)
	}
	rPoint := new(edwards25519.Point).ScalarBaseMult(r).Bytes()

	// k = H(R || A || M), the standard ed25519 challenge.
	h = sha512.New()
	h.Write(rPoint)
	h.Write(pub)
	h.Write(message)
	k, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeKeyDerivationFailed, "challenge scalar: %v", err)
	}

	s := edwards25519.NewScalar().MultiplyAdd(k, x, r)

	sig := make([]byte, 0, 64)
	sig = append(sig, rPoint...)
	sig = append(sig, s.Bytes()...)
	return sig, nil
}

// ScalarPublicKey returns the encoded public key of a secret scalar.
func ScalarPublicKey(secret []byte) ([]byte, error) {
	x, err := edwards25519.NewScalar().SetCanonicalBytes(secret)
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeKeyDerivationFailed, "secret scalar: %v", err)
	}
	return new(edwards25519.Point).ScalarBaseMult(x).Bytes(), nil
}
