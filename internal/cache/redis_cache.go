package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"washouse/backend/internal/domain"
)

type RedisDirectoryCache struct {
	client *redis.Client
}

func NewRedisDirectoryCache(addr string, password string, db int) *RedisDirectoryCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisDirectoryCache{client: client}
}

func (c *RedisDirectoryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisDirectoryCache) Close() error {
	return c.client.Close()
}

func (c *RedisDirectoryCache) Get(ctx context.Context, key string) ([]domain.Customer, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var customers []domain.Customer
	if err := json.Unmarshal([]byte(val), &customers); err != nil {
		return nil, false, err
	}
	return customers, true, nil
}

func (c *RedisDirectoryCache) Set(ctx context.Context, key string, customers []domain.Customer, ttl time.Duration) error {
	if customers == nil {
		customers = []domain.Customer{}
	}
	payload, err := json.Marshal(customers)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisDirectoryCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
