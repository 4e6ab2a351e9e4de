package keypair

import (
	"crypto/rand"
	"crypto/sha256"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mezonai/mmn-wallet/errors"
)

const (
	backupSaltSize  = 32
	backupNonceSize = chacha20poly1305.NonceSizeX

	// spendSecret(32) || viewSecret(32) || spendPub(32) || viewPub(32) || version(1)
	backupPlaintextSize = 4*KeySize + 1

	backupHeaderSize = backupSaltSize + backupNonceSize
)

// ExportEncrypted serializes both key pairs and encrypts them under a key
// derived from password. Output layout: salt(32) || nonce(24) || ciphertext.
// Salt and nonce are drawn fresh on every call, so two exports of the same
// identity never produce the same blob.
func (kp *KeyPair) ExportEncrypted(password string) ([]byte, error) {
	salt := make([]byte, backupSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeEncryptionFailed, "draw salt: %v", err)
	}
	nonce := make([]byte, backupNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeEncryptionFailed, "draw nonce: %v", err)
	}

	key := deriveBackupKey(password, salt)
	defer Wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeEncryptionFailed, "init cipher: %v", err)
	}

	plaintext := make([]byte, 0, backupPlaintextSize)
	plaintext = append(plaintext, kp.spendSecret[:]...)
	plaintext = append(plaintext, kp.viewSecret[:]...)
	plaintext = append(plaintext, kp.spendPub[:]...)
	plaintext = append(plaintext, kp.viewPub[:]...)
	plaintext = append(plaintext, kp.version)
	defer Wipe(plaintext)

	out := make([]byte, 0, backupHeaderSize+backupPlaintextSize+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// ImportEncrypted is the inverse of ExportEncrypted. A short blob, a failed
// authentication check (wrong password or tampering), or an unexpected
// plaintext size all fail with decryption_failed and leave no partial state.
func ImportEncrypted(data []byte, password string) (*KeyPair, error) {
	if len(data) < backupHeaderSize {
		return nil, errors.NewErrorf(errors.ErrCodeDecryptionFailed,
			"backup blob too short: %d bytes", len(data))
	}

	salt := data[:backupSaltSize]
	nonce := data[backupSaltSize:backupHeaderSize]
	ciphertext := data[backupHeaderSize:]

	key := deriveBackupKey(password, salt)
	defer Wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeDecryptionFailed, "init cipher: %v", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeDecryptionFailed,
			"backup authentication failed")
	}
	defer Wipe(plaintext)

	if len(plaintext) != backupPlaintextSize {
		return nil, errors.NewErrorf(errors.ErrCodeDecryptionFailed,
			"backup plaintext size %d, want %d", len(plaintext), backupPlaintextSize)
	}

	kp := &KeyPair{version: plaintext[4*KeySize]}
	copy(kp.spendSecret[:], plaintext[0:KeySize])
	copy(kp.viewSecret[:], plaintext[KeySize:2*KeySize])
	copy(kp.spendPub[:], plaintext[2*KeySize:3*KeySize])
	copy(kp.viewPub[:], plaintext[3*KeySize:4*KeySize])

	if err := kp.validate(); err != nil {
		kp.Zeroize()
		return nil, err
	}
	return kp, nil
}

func deriveBackupKey(password string, salt []byte) []byte {
	material := make([]byte, 0, len(password)+len(salt))
	material = append(material, password...)
	material = append(material, salt...)
	defer Wipe(material)

	sum := sha256.Sum256(material)
	return sum[:]
}

func (kp *KeyPair) validate() error {
	if kp.version != Version1 {
		return errors.NewErrorf(errors.ErrCodeDecryptionFailed,
			"unsupported backup version %d", kp.version)
	}
	if _, err := edwards25519.NewScalar().SetCanonicalBytes(kp.spendSecret[:]); err != nil {
		return errors.NewError(errors.ErrCodeDecryptionFailed, "corrupt spending secret")
	}
	if _, err := edwards25519.NewScalar().SetCanonicalBytes(kp.viewSecret[:]); err != nil {
		return errors.NewError(errors.ErrCodeDecryptionFailed, "corrupt viewing secret")
	}
	if _, err := new(edwards25519.Point).SetBytes(kp.spendPub[:]); err != nil {
		return errors.NewError(errors.ErrCodeDecryptionFailed, "corrupt spending public key")
	}
	if _, err := new(edwards25519.Point).SetBytes(kp.viewPub[:]); err != nil {
		return errors.NewError(errors.ErrCodeDecryptionFailed, "corrupt viewing public key")
	}
	return nil
}
