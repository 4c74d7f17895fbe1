//go:build gcp

package artifacts

import (
	"context"
	"fmt"
	"os"
)

func gcsFromEnv(ctx context.Context) (Store, error) {
	bucket := os.Getenv("ARTIFACT_GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("ARTIFACT_GCS_BUCKET is required for gcs storage")
	}
	return NewGCSStore(ctx, bucket, os.Getenv("ARTIFACT_GCS_PREFIX"))
}
