package storage

import (
	"context"
	"fmt"

	carrierapp "github.com/fulfillment/backend/internal/application/carrier"
	"github.com/fulfillment/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewArchiveStorage returns the backend selected by cfg.Backend.
func NewArchiveStorage(ctx context.Context, cfg *config.ArchiveConfig, logger *zap.Logger) (carrierapp.ArchiveStorage, error) {
	switch cfg.Backend {
	case "", "memory":
		logger.Warn("using in-memory archive storage, import snapshots are not persisted")
		return NewInMemoryArchiveStorage(cfg.Prefix), nil
	case "s3":
		s, err := NewS3ArchiveStorage(ctx, cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}
