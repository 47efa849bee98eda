package directory

import (
	"context"
	"log"
	"time"

	"washouse/backend/internal/cache"
	"washouse/backend/internal/domain"
)

const cacheKey = "directory:customers:v1"

// Engine caches the built customer view. A cache miss or any cache
// failure falls through to a rebuild; the cache is never authoritative.
type Engine struct {
	cache  cache.DirectoryCache
	ttl    time.Duration
	logger *log.Logger
}

func NewEngine(c cache.DirectoryCache, ttl time.Duration, logger *log.Logger) *Engine {
	if c == nil {
		c = cache.NoopDirectoryCache{}
	}
	if logger == nil {
		logger = log.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Engine{cache: c, ttl: ttl, logger: logger}
}

// Cached returns the cached customer view, or false when absent.
func (e *Engine) Cached(ctx context.Context) ([]domain.Customer, bool) {
	customers, ok, err := e.cache.Get(ctx, cacheKey)
	if err != nil {
		e.logger.Printf("[directory] WARN: cache get failed: %v", err)
		return nil, false
	}
	return customers, ok
}

func (e *Engine) Store(ctx context.Context, customers []domain.Customer) {
	if err := e.cache.Set(ctx, cacheKey, customers, e.ttl); err != nil {
		e.logger.Printf("[directory] WARN: cache set failed: %v", err)
	}
}

// Invalidate drops the cached view. Called after any write that changes
// what the fold would produce.
func (e *Engine) Invalidate(ctx context.Context) {
	if err := e.cache.Delete(ctx, cacheKey); err != nil {
		e.logger.Printf("[directory] WARN: cache delete failed: %v", err)
	}
}
