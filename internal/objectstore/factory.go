package objectstore

import (
	"context"
	"fmt"

	"depot/internal/config"
	"depot/internal/depot"
)

// NewFromConfig creates an ObjectStore implementation based on the store config type.
func NewFromConfig(ctx context.Context, cfg config.ObjectStoreConfig) (depot.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.Bucket), nil
	case "s3":
		st, err := NewS3Store(ctx, S3Options{
			Bucket:            cfg.Bucket,
			Region:            cfg.S3Region,
			Endpoint:          cfg.S3Endpoint,
			PathStyle:         cfg.S3PathStyle,
			AccessKeyID:       cfg.S3AccessKeyID,
			SecretAccessKey:   cfg.S3SecretAccessKey,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem object store requires fs_root to be set")
		}
		st, err := NewFileSystemStore(cfg.Bucket, cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown object store type: %s", cfg.Type)
	}
}
