package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backend names accepted in ARTIFACT_STORAGE_TYPE.
const (
	BackendFS  = "fs"
	BackendS3  = "s3"
	BackendGCS = "gcs"
)

// NewStoreFromEnv builds the WASM artifact store selected by
// ARTIFACT_STORAGE_TYPE (default fs).
//
// fs keeps blobs under DATA_DIR/wasm (DATA_DIR defaults to "data").
// s3 reads ARTIFACT_S3_BUCKET (required), ARTIFACT_S3_REGION or AWS_REGION,
// ARTIFACT_S3_ENDPOINT for MinIO-style endpoints, and ARTIFACT_S3_PREFIX.
// gcs reads ARTIFACT_GCS_BUCKET (required) and ARTIFACT_GCS_PREFIX; it needs
// a binary built with the gcp tag.
func NewStoreFromEnv(ctx context.Context) (Store, error) {
	backend := envOr("ARTIFACT_STORAGE_TYPE", BackendFS)
	switch backend {
	case BackendFS:
		return NewFileStore(filepath.Join(envOr("DATA_DIR", "data"), "wasm"))
	case BackendS3:
		return s3FromEnv(ctx)
	case BackendGCS:
		return gcsFromEnv(ctx)
	}
	return nil, fmt.Errorf("unsupported artifact storage type: %s", backend)
}

func s3FromEnv(ctx context.Context) (Store, error) {
	bucket := os.Getenv("ARTIFACT_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("ARTIFACT_S3_BUCKET is required for s3 storage")
	}

	region := os.Getenv("ARTIFACT_S3_REGION")
	if region == "" {
		region = envOr("AWS_REGION", "us-east-1")
	}

	return NewS3Store(ctx, S3Config{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("ARTIFACT_S3_ENDPOINT"),
		Prefix:   os.Getenv("ARTIFACT_S3_PREFIX"),
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
