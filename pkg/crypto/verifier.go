// Package crypto provides the default signature verification capability and
// the registry's receipt-signing keyring. Signer identities are hex-encoded
// Ed25519 public keys unless a custom key resolver says otherwise; other
// schemes plug in by implementing the engine's Verifier interface.
package crypto

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// KeyResolver maps a signer identity to its Ed25519 public key.
type KeyResolver interface {
	ResolveKey(ctx context.Context, signer string) (ed25519.PublicKey, error)
}

// HexIdentityResolver treats the signer identity itself as the hex-encoded
// public key. This is the default: policies name signers by their keys, so
// there is no key directory to operate.
type HexIdentityResolver struct{}

// ResolveKey implements KeyResolver.
func (HexIdentityResolver) ResolveKey(_ context.Context, signer string) (ed25519.PublicKey, error) {
	key, err := hex.DecodeString(signer)
	if err != nil {
		return nil, fmt.Errorf("signer identity is not hex: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signer key is %d bytes, want %d", len(key), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(key), nil
}

// Ed25519Verifier checks hex-encoded Ed25519 signature artifacts against the
// canonical proposal payload.
type Ed25519Verifier struct {
	keys KeyResolver
}

// NewEd25519Verifier creates a verifier that resolves signer identities as
// hex-encoded public keys.
func NewEd25519Verifier() *Ed25519Verifier {
	return &Ed25519Verifier{keys: HexIdentityResolver{}}
}

// WithKeyResolver overrides how signer identities map to public keys.
func (v *Ed25519Verifier) WithKeyResolver(r KeyResolver) *Ed25519Verifier {
	v.keys = r
	return v
}

// Verify implements the engine's signature verification capability.
func (v *Ed25519Verifier) Verify(ctx context.Context, signer string, payload []byte, artifact string) (bool, error) {
	key, err := v.keys.ResolveKey(ctx, signer)
	if err != nil {
		return false, fmt.Errorf("resolve key for %q: %w", signer, err)
	}
	sig, err := hex.DecodeString(artifact)
	if err != nil {
		return false, fmt.Errorf("signature artifact is not hex: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("signature is %d bytes, want %d", len(sig), ed25519.SignatureSize)
	}
	return ed25519.Verify(key, payload, sig), nil
}

// Verify checks a hex signature against a hex public key. Convenience for
// callers that hold raw identities rather than a verifier.
func Verify(pubKeyHex, sigHex string, data []byte) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size: %d", len(pubKey))
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), data, sig), nil
}
