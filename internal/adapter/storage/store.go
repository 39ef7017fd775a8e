package storage

import (
	"context"
	"fmt"

	"github.com/semmidev/stowage/internal/config"
	"github.com/semmidev/stowage/internal/domain"
)

// Store is a bucket that can also take whole files, such as run reports.
type Store interface {
	domain.ObjectStore
	domain.ReportPublisher
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Backend {
	case config.BackendS3:
		store, err = NewS3(ctx, cfg)
	case config.BackendLocal:
		store, err = NewLocal(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return store, nil
}
