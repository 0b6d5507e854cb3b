package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisService implements CacheService using redis
type RedisService struct {
	ctx    context.Context
	client *redis.Client
}

// NewRedisService creates a new redis cache service
func NewRedisService(ctx context.Context, addr string, db int) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisService{
		ctx:    ctx,
		client: client,
	}
}

// Get retrieves a value from redis
func (r *RedisService) Get(key string) ([]byte, error) {
	return r.client.Get(r.ctx, key).Bytes()
}

// Set stores a value in redis with an expiration time
func (r *RedisService) Set(key string, value []byte, expiration time.Duration) error {
	return r.client.Set(r.ctx, key, value, expiration).Err()
}

// Delete removes a value from redis
func (r *RedisService) Delete(key string) error {
	return r.client.Del(r.ctx, key).Err()
}

// Close closes the underlying redis connection
func (r *RedisService) Close() error {
	return r.client.Close()
}
