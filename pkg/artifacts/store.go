// Package artifacts is the content-addressed store for contract Wasm
// binaries. Artifacts are keyed by their SHA-256 digest in the
// "sha256:<hex>" form the rest of the system pins, so a stored artifact can
// never drift from the hash a proposal was signed over.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when no artifact matches the requested digest.
var ErrNotFound = errors.New("artifacts: not found")

// Store is a content-addressed store for Wasm artifacts.
type Store interface {
	// Store persists data and returns its content digest ("sha256:<hex>").
	Store(ctx context.Context, data []byte) (string, error)
	// Get retrieves data by its content digest.
	Get(ctx context.Context, hash string) ([]byte, error)
	// Exists checks whether an artifact exists.
	Exists(ctx context.Context, hash string) (bool, error)
	// Delete removes an artifact. Deleting a missing artifact is not an
	// error.
	Delete(ctx context.Context, hash string) error
}

// Digest computes the prefixed content digest of data.
func Digest(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

// parseHash validates a "sha256:<hex>" reference and returns the bare hex.
func parseHash(hash string) (string, error) {
	const prefix = "sha256:"
	if !strings.HasPrefix(hash, prefix) {
		return "", fmt.Errorf("invalid hash format: %s", hash)
	}
	raw := hash[len(prefix):]
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("invalid hash hex: %w", err)
	}
	return raw, nil
}

// FileStore is a filesystem-backed Store.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a store rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(rawHash string) string {
	return filepath.Join(s.baseDir, rawHash+".wasm")
}

// Store implements Store. Writing the same content twice is a no-op.
func (s *FileStore) Store(_ context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest := Digest(data)
	rawHash := digest[len("sha256:"):]
	path := s.path(rawHash)

	if _, err := os.Stat(path); err == nil {
		return digest, nil
	}

	// Write to temp, then rename, so readers never see a partial artifact.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("commit artifact: %w", err)
	}
	return digest, nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, hash string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rawHash, err := parseHash(hash)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(rawHash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// Exists implements Store.
func (s *FileStore) Exists(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rawHash, err := parseHash(hash)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(s.path(rawHash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat artifact: %w", err)
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawHash, err := parseHash(hash)
	if err != nil {
		return err
	}
	if err := os.Remove(s.path(rawHash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}
