package wallet

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreateKeyPairRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore", "wallet.bin")

	kp, created, err := LoadOrCreateKeyPair(path, "hunter2")
	if err != nil {
		t.Fatalf("LoadOrCreateKeyPair() error = %v", err)
	}
	if !created {
		t.Fatal("first call must create a fresh keystore")
	}
	meta := kp.MetaAddress()
	kp.Zeroize()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("keystore file missing: %v", err)
	}

	reloaded, created, err := LoadOrCreateKeyPair(path, "hunter2")
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if created {
		t.Fatal("second call must load the existing keystore")
	}
	defer reloaded.Zeroize()
	if reloaded.MetaAddress() != meta {
		t.Fatal("reloaded identity must match the created one")
	}
}

func TestLoadOrCreateKeyPairWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.bin")

	kp, _, err := LoadOrCreateKeyPair(path, "correct")
	if err != nil {
		t.Fatalf("LoadOrCreateKeyPair() error = %v", err)
	}
	kp.Zeroize()

	if _, _, err := LoadOrCreateKeyPair(path, "wrong"); err == nil {
		t.Fatal("wrong password must fail to open the keystore")
	}
}
