// Package identity tests validate key generation, loading and signing for
// Keypair, and the text encodings of AccountID.
package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeypairLifecycle(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "test_key.pem")

	kp1, err := LoadOrCreateKeypair(keyPath)
	if err != nil {
		t.Fatalf("Failed to create keypair: %v", err)
	}

	kp2, err := LoadOrCreateKeypair(keyPath)
	if err != nil {
		t.Fatalf("Failed to load keypair: %v", err)
	}

	if kp1.Account() != kp2.Account() {
		t.Errorf("Loaded keypair differs from original. Got %s, want %s",
			kp2.Account(), kp1.Account())
	}
	if kp1.PublicKeyHex() != kp1.Account().String() {
		t.Errorf("account hex %s does not match public key %s", kp1.Account(), kp1.PublicKeyHex())
	}
}

func TestEmptyKeyFileIsRegenerated(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(keyPath, nil, 0600); err != nil {
		t.Fatalf("write empty key: %v", err)
	}

	kp, err := LoadOrCreateKeypair(keyPath)
	if err != nil {
		t.Fatalf("LoadOrCreateKeypair: %v", err)
	}
	if kp.Account().IsZero() {
		t.Fatal("expected a generated account")
	}
}

func TestSignAndVerify(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	other, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	message := []byte("record 100 to bob")
	signature := kp.Sign(message)

	if !kp.Verify(message, signature) {
		t.Error("Failed to verify signature with own public key")
	}
	if other.Verify(message, signature) {
		t.Error("Incorrectly verified signature with wrong public key")
	}
}

func TestPermissions(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "secure_test_key.pem")

	if _, err := LoadOrCreateKeypair(keyPath); err != nil {
		t.Fatalf("Failed to create keypair: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("Failed to stat key file: %v", err)
	}

	if info.Mode().Perm() != 0600 {
		t.Errorf("Key file has wrong permissions. Got %v, want %v",
			info.Mode().Perm(), 0600)
	}
}
