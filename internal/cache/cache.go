package cache

import (
	"context"
	"time"

	"washouse/backend/internal/domain"
)

type DirectoryCache interface {
	Get(ctx context.Context, key string) ([]domain.Customer, bool, error)
	Set(ctx context.Context, key string, customers []domain.Customer, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopDirectoryCache struct{}

func (NoopDirectoryCache) Get(_ context.Context, _ string) ([]domain.Customer, bool, error) {
	return nil, false, nil
}

func (NoopDirectoryCache) Set(_ context.Context, _ string, _ []domain.Customer, _ time.Duration) error {
	return nil
}

func (NoopDirectoryCache) Delete(_ context.Context, _ string) error {
	return nil
}
