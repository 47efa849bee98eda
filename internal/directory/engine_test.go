package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"washouse/backend/internal/domain"
)

type fakeCache struct {
	entries map[string][]domain.Customer
	fail    bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]domain.Customer)}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]domain.Customer, bool, error) {
	if f.fail {
		return nil, false, errors.New("cache down")
	}
	customers, ok := f.entries[key]
	return customers, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, customers []domain.Customer, _ time.Duration) error {
	if f.fail {
		return errors.New("cache down")
	}
	f.entries[key] = customers
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	if f.fail {
		return errors.New("cache down")
	}
	delete(f.entries, key)
	return nil
}

func TestEngineStoreAndCached(t *testing.T) {
	fc := newFakeCache()
	engine := NewEngine(fc, time.Minute, nil)
	ctx := context.Background()

	if _, ok := engine.Cached(ctx); ok {
		t.Fatalf("expected miss on empty cache")
	}

	engine.Store(ctx, []domain.Customer{{Phone: "5550101", Name: "Laura"}})

	customers, ok := engine.Cached(ctx)
	if !ok || len(customers) != 1 || customers[0].Phone != "5550101" {
		t.Fatalf("expected cached view back, got ok=%v %+v", ok, customers)
	}

	engine.Invalidate(ctx)
	if _, ok := engine.Cached(ctx); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestEngineTreatsCacheFailureAsMiss(t *testing.T) {
	fc := newFakeCache()
	fc.fail = true
	engine := NewEngine(fc, time.Minute, nil)

	if _, ok := engine.Cached(context.Background()); ok {
		t.Fatalf("cache failure must read as a miss")
	}
	// Store and Invalidate swallow failures.
	engine.Store(context.Background(), nil)
	engine.Invalidate(context.Background())
}

func TestEngineNilCacheIsSafe(t *testing.T) {
	engine := NewEngine(nil, 0, nil)
	ctx := context.Background()

	if _, ok := engine.Cached(ctx); ok {
		t.Fatalf("noop cache must always miss")
	}
	engine.Store(ctx, []domain.Customer{{Phone: "1"}})
	if _, ok := engine.Cached(ctx); ok {
		t.Fatalf("noop cache must not retain")
	}
}
