package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Keyring holds the service's Ed25519 receipt-signing key. It satisfies the
// engine's ReceiptSigner capability.
type Keyring struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewKeyring generates a fresh random signing key. Suitable for tests and
// lite deployments where receipts only need to be consistent per process.
func NewKeyring() (*Keyring, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate receipt key: %w", err)
	}
	return &Keyring{priv: priv, pub: pub}, nil
}

// NewKeyringFromSeed builds a keyring from a raw 32-byte Ed25519 seed.
func NewKeyringFromSeed(seed []byte) (*Keyring, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keyring{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// DeriveKeyring derives a deterministic signing key from a master secret via
// HKDF-SHA256. The info string domain-separates keys derived from the same
// master, so rotating the receipt key never touches other derived material.
func DeriveKeyring(master []byte, info string) (*Keyring, error) {
	if len(master) == 0 {
		return nil, fmt.Errorf("empty master secret")
	}
	kdf := hkdf.New(sha256.New, master, nil, []byte(info))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, fmt.Errorf("derive receipt key: %w", err)
	}
	return NewKeyringFromSeed(seed)
}

// Sign signs data with the receipt key.
func (k *Keyring) Sign(data []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, fmt.Errorf("keyring has no private key")
	}
	return ed25519.Sign(k.priv, data), nil
}

// PublicKey returns the verification key for issued receipts.
func (k *Keyring) PublicKey() ed25519.PublicKey {
	return k.pub
}
