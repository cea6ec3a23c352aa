package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// StoreType selects the snapshot storage backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeS3  StoreType = "s3"
	StoreTypeGCS StoreType = "gcs"
)

// NewStoreFromEnv builds a snapshot store from environment variables.
//
//   - SNAPSHOT_STORAGE_TYPE: "fs" (default), "s3" or "gcs"
//   - DATA_DIR: base directory for the filesystem store (default "data")
//
// For S3:
//   - SNAPSHOT_S3_BUCKET (required)
//   - SNAPSHOT_S3_REGION or AWS_REGION
//   - SNAPSHOT_S3_ENDPOINT (optional, for MinIO/LocalStack)
//   - SNAPSHOT_S3_PREFIX (optional)
//
// For GCS (requires the gcp build tag):
//   - SNAPSHOT_GCS_BUCKET (required)
//   - SNAPSHOT_GCS_PREFIX (optional)
func NewStoreFromEnv(ctx context.Context) (Store, error) {
	storeType := StoreType(os.Getenv("SNAPSHOT_STORAGE_TYPE"))
	if storeType == "" {
		storeType = StoreTypeFS
	}

	switch storeType {
	case StoreTypeFS:
		return newFileStoreFromEnv()
	case StoreTypeS3:
		return newS3StoreFromEnv(ctx)
	case StoreTypeGCS:
		return newGCSStoreFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unsupported snapshot storage type: %s", storeType)
	}
}

func newFileStoreFromEnv() (Store, error) {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	return NewFileStore(filepath.Join(dataDir, "snapshots"))
}

func newS3StoreFromEnv(ctx context.Context) (Store, error) {
	bucket := os.Getenv("SNAPSHOT_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("SNAPSHOT_S3_BUCKET is required for S3 storage")
	}

	region := os.Getenv("SNAPSHOT_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	return NewS3Store(ctx, S3StoreConfig{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("SNAPSHOT_S3_ENDPOINT"),
		Prefix:   os.Getenv("SNAPSHOT_S3_PREFIX"),
	})
}
