package storage

import (
	"context"
	"fmt"

	"github.com/smallbiznis/labdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(provide),
)

// NewFromConfig creates a Bucket implementation based on the storage type.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (Bucket, error) {
	switch cfg.Type {
	case "memory":
		return NewMemory(), nil
	case "filesystem", "":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem storage requires STORAGE_ROOT to be set")
		}
		return NewFilesystem(cfg.Root)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

func provide(cfg config.Config, log *zap.Logger) (Bucket, error) {
	bucket, err := NewFromConfig(context.Background(), cfg.Storage)
	if err != nil {
		return nil, err
	}
	log.Named("storage").Info("storage ready",
		zap.String("type", cfg.Storage.Type),
		zap.String("bucket", cfg.Storage.Bucket),
	)
	return bucket, nil
}
