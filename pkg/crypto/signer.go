package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Signer holds a local Ed25519 key and produces hex signature artifacts for
// proposal payloads. The CLI uses it to sign; services verify through the
// Ed25519Verifier.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner generates a fresh signing key.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// NewSignerFromHex loads a signer from a hex-encoded Ed25519 private key.
// Accepts either the 32-byte seed form or the full 64-byte private key.
func NewSignerFromHex(privHex string) (*Signer, error) {
	raw, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	default:
		return nil, fmt.Errorf("private key is %d bytes, want %d or %d", len(raw), ed25519.SeedSize, ed25519.PrivateKeySize)
	}
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// Sign returns the hex-encoded signature over data.
func (s *Signer) Sign(data []byte) string {
	return hex.EncodeToString(ed25519.Sign(s.priv, data))
}

// Identity returns the hex-encoded public key, which is how policies name
// this signer.
func (s *Signer) Identity() string {
	return hex.EncodeToString(s.pub)
}

// PrivateKeyHex exports the full private key for storage.
func (s *Signer) PrivateKeyHex() string {
	return hex.EncodeToString(s.priv)
}
