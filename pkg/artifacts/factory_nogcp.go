//go:build !gcp

package artifacts

import (
	"context"
	"fmt"
)

func gcsFromEnv(context.Context) (Store, error) {
	return nil, fmt.Errorf("gcs artifact storage requires a build with the gcp tag")
}
