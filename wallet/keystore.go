package wallet

import (
	"os"
	"path/filepath"

	"github.com/mezonai/mmn-wallet/errors"
	"github.com/mezonai/mmn-wallet/keypair"
	"github.com/mezonai/mmn-wallet/logx"
)

// LoadOrCreateKeyPair restores the identity from an encrypted keystore
// file, generating and writing a new one when the file does not exist yet.
// Returns the key pair and whether it was freshly created.
func LoadOrCreateKeyPair(path, password string) (*keypair.KeyPair, bool, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		kp, importErr := keypair.ImportEncrypted(data, password)
		if importErr != nil {
			return nil, false, importErr
		}
		return kp, false, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, errors.NewErrorf(errors.ErrCodeStorageFailed, "read keystore: %v", err)
	}

	kp, err := keypair.Generate()
	if err != nil {
		return nil, false, err
	}
	blob, err := kp.ExportEncrypted(password)
	if err != nil {
		kp.Zeroize()
		return nil, false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		kp.Zeroize()
		return nil, false, errors.NewErrorf(errors.ErrCodeStorageFailed, "create keystore dir: %v", err)
	}
	if err := os.WriteFile(path, blob, 0600); err != nil {
		kp.Zeroize()
		return nil, false, errors.NewErrorf(errors.ErrCodeStorageFailed, "write keystore: %v", err)
	}
	logx.Info("WALLET", "created new keystore at ", path)
	return kp, true, nil
}
