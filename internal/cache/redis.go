package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fetchwise/product-scraper/internal/models"
)

// RedisCache stores records in Redis with TTL-based expiry. This is the
// production backend; the server process shares it across workers.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisCache(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisCache{
		client: client,
		logger: logger.With("component", "cache"),
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.ProductRecord, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}

	var record models.ProductRecord
	if err := json.Unmarshal(data, &record); err != nil {
		// A corrupt entry is as good as a miss.
		c.logger.Warn("dropping corrupt cache entry", "key", key, "error", err)
		return nil, ErrCacheMiss
	}
	return &record, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, record *models.ProductRecord, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
