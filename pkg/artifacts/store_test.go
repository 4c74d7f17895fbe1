package artifacts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var sampleWasm = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	digest, err := store.Store(ctx, sampleWasm)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	sum := sha256.Sum256(sampleWasm)
	want := "sha256:" + hex.EncodeToString(sum[:])
	if digest != want {
		t.Errorf("digest = %s, want %s", digest, want)
	}

	got, err := store.Get(ctx, digest)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, sampleWasm) {
		t.Errorf("Get returned %x, want %x", got, sampleWasm)
	}

	ok, err := store.Exists(ctx, digest)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Error("Exists = false for stored artifact")
	}
}

func TestFileStore_StoreIsIdempotent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	d1, err := store.Store(ctx, sampleWasm)
	if err != nil {
		t.Fatalf("first Store: %v", err)
	}
	d2, err := store.Store(ctx, sampleWasm)
	if err != nil {
		t.Fatalf("second Store: %v", err)
	}
	if d1 != d2 {
		t.Errorf("digests differ: %s vs %s", d1, d2)
	}
}

func TestFileStore_GetMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	missing := Digest([]byte("never stored"))
	_, err = store.Get(context.Background(), missing)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestFileStore_InvalidHash(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	cases := []string{
		"deadbeef",
		"md5:deadbeef",
		"sha256:not-hex",
		"",
	}
	for _, hash := range cases {
		if _, err := store.Get(ctx, hash); err == nil {
			t.Errorf("Get(%q) succeeded, want error", hash)
		}
		if _, err := store.Exists(ctx, hash); err == nil {
			t.Errorf("Exists(%q) succeeded, want error", hash)
		}
	}
}

func TestFileStore_Delete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	digest, err := store.Store(ctx, sampleWasm)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := store.Delete(ctx, digest); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	ok, err := store.Exists(ctx, digest)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("Exists = true after Delete")
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, digest); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestFileStore_FilesKeyedByDigest(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	digest, err := store.Store(context.Background(), sampleWasm)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	rawHash := digest[len("sha256:"):]
	if _, err := os.Stat(filepath.Join(dir, rawHash+".wasm")); err != nil {
		t.Errorf("expected %s.wasm on disk: %v", rawHash, err)
	}
}

func TestNewStoreFromEnv(t *testing.T) {
	t.Run("defaults to filesystem", func(t *testing.T) {
		t.Setenv("ARTIFACT_STORAGE_TYPE", "")
		t.Setenv("DATA_DIR", t.TempDir())

		store, err := NewStoreFromEnv(context.Background())
		if err != nil {
			t.Fatalf("NewStoreFromEnv: %v", err)
		}
		if _, ok := store.(*FileStore); !ok {
			t.Errorf("store = %T, want *FileStore", store)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		t.Setenv("ARTIFACT_STORAGE_TYPE", "ftp")

		if _, err := NewStoreFromEnv(context.Background()); err == nil {
			t.Error("expected error for unsupported storage type")
		}
	})

	t.Run("s3 requires bucket", func(t *testing.T) {
		t.Setenv("ARTIFACT_STORAGE_TYPE", "s3")
		t.Setenv("ARTIFACT_S3_BUCKET", "")

		if _, err := NewStoreFromEnv(context.Background()); err == nil {
			t.Error("expected error when ARTIFACT_S3_BUCKET is unset")
		}
	})
}
