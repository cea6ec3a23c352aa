//go:build gcp

package artifacts

import (
	"context"
	"fmt"
	"os"
)

func newGCSStoreFromEnv(ctx context.Context) (Store, error) {
	bucket := os.Getenv("SNAPSHOT_GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("SNAPSHOT_GCS_BUCKET is required for GCS storage")
	}
	return NewGCSStore(ctx, GCSStoreConfig{
		Bucket: bucket,
		Prefix: os.Getenv("SNAPSHOT_GCS_PREFIX"),
	})
}
