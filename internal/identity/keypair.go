// Package identity handles ledger participant identities. An AccountID is the
// opaque 32-byte identity the ledger keys histories by; a Keypair is the
// ed25519 key a caller signs transactions with, whose public key is the
// caller's AccountID. Keys are persisted as PKCS8 PEM files with 0600
// permissions.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"os"
)

// Keypair represents a caller's signing identity.
type Keypair struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	account    AccountID
}

// NewKeypair creates a Keypair from a private key
func NewKeypair(privKey ed25519.PrivateKey) *Keypair {
	pubKey := privKey.Public().(ed25519.PublicKey)
	var account AccountID
	copy(account[:], pubKey)
	return &Keypair{
		privateKey: privKey,
		publicKey:  pubKey,
		account:    account,
	}
}

// GenerateKeypair returns a fresh, unpersisted keypair.
func GenerateKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewKeypair(priv), nil
}

// LoadOrCreateKeypair loads the key stored at keyPath, generating and
// saving a new one when the file is missing or empty.
func LoadOrCreateKeypair(keyPath string) (*Keypair, error) {
	info, err := os.Stat(keyPath)
	if os.IsNotExist(err) {
		privKey, err := generateAndSaveKey(keyPath)
		if err != nil {
			return nil, err
		}
		return NewKeypair(privKey), nil
	}
	if err != nil {
		return nil, err
	}

	// An empty file is treated as missing
	if info.Size() == 0 {
		privKey, err := generateAndSaveKey(keyPath)
		if err != nil {
			return nil, err
		}
		return NewKeypair(privKey), nil
	}

	privKey, err := loadKey(keyPath)
	if err != nil {
		return nil, err
	}
	return NewKeypair(privKey), nil
}

// Sign signs the provided message with the private key
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.privateKey, message)
}

// Verify verifies a signature against a message using the public key
func (k *Keypair) Verify(message, signature []byte) bool {
	return ed25519.Verify(k.publicKey, message, signature)
}

// PublicKey returns the raw public key
func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.publicKey
}

// PrivateKey returns the raw private key
func (k *Keypair) PrivateKey() ed25519.PrivateKey {
	return k.privateKey
}

// Account returns the identity this keypair signs as.
func (k *Keypair) Account() AccountID {
	return k.account
}

// PublicKeyHex returns the hex-encoded public key string
func (k *Keypair) PublicKeyHex() string {
	return hex.EncodeToString(k.publicKey)
}

func generateAndSaveKey(keyPath string) (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	x509Encoded, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}

	pemBlock := &pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: x509Encoded,
	}

	file, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := pem.Encode(file, pemBlock); err != nil {
		return nil, err
	}

	return priv, nil
}

func loadKey(keyPath string) (ed25519.PrivateKey, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	pemBlock, _ := pem.Decode(keyData)
	if pemBlock == nil {
		return nil, errors.New("failed to decode PEM block from key file")
	}

	genericKey, err := x509.ParsePKCS8PrivateKey(pemBlock.Bytes)
	if err != nil {
		return nil, err
	}

	privKey, ok := genericKey.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("key is not an ed25519 private key")
	}

	return privKey, nil
}
