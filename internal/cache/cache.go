// Package cache holds computed group balances between writes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/go-redis/redis/v8"

	"github.com/mmynk/groupledger/internal/models"
)

// DefaultTTL bounds how long an entry can outlive a missed invalidation.
const DefaultTTL = 30 * time.Second

// Lookup is the result of reading a group's cached balances.
type Lookup struct {
	Balances []models.Balance
	Found    bool
	// Generation is the group's cache generation at read time. Balances
	// computed after a miss are stored under it, so a result read before an
	// invalidation can never be served after it.
	Generation int64
}

// BalanceCache stores per-group balances. A miss is not an error.
type BalanceCache interface {
	GetBalances(ctx context.Context, groupID string) (Lookup, error)
	SetBalances(ctx context.Context, groupID string, generation int64, balances []models.Balance) error
	// Invalidate moves the group to a new generation.
	Invalidate(ctx context.Context, groupID string) error
}

// Config is the redis configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache implements BalanceCache on redis.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg Config) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(rdb, cfg.TTL), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func generationKey(groupID string) string {
	return "balances:" + groupID + ":gen"
}

func makeKey(groupID string, generation int64) string {
	return "balances:" + groupID + ":" + strconv.FormatInt(generation, 10)
}

// GetBalances returns the cached balances of a group, if present, and the
// group's current generation.
func (c *RedisCache) GetBalances(ctx context.Context, groupID string) (Lookup, error) {
	generation, err := c.rdb.Get(ctx, generationKey(groupID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Lookup{}, fmt.Errorf("failed to read cache generation: %w", err)
	}

	val, err := c.rdb.Get(ctx, makeKey(groupID, generation)).Result()
	if errors.Is(err, redis.Nil) {
		return Lookup{Generation: generation}, nil
	}
	if err != nil {
		return Lookup{}, fmt.Errorf("failed to read balances from cache: %w", err)
	}

	var balances []models.Balance
	if err := json.Unmarshal([]byte(val), &balances); err != nil {
		return Lookup{}, fmt.Errorf("failed to decode cached balances: %w", err)
	}
	return Lookup{Balances: balances, Found: true, Generation: generation}, nil
}

// SetBalances stores the balances of a group under generation with the
// configured TTL. Entries of an old generation are never read again.
func (c *RedisCache) SetBalances(ctx context.Context, groupID string, generation int64, balances []models.Balance) error {
	value, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("failed to encode balances: %w", err)
	}
	if err := c.rdb.Set(ctx, makeKey(groupID, generation), string(value), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write balances to cache: %w", err)
	}
	return nil
}

// Invalidate bumps the group's generation, orphaning the current entry.
func (c *RedisCache) Invalidate(ctx context.Context, groupID string) error {
	if err := c.rdb.Incr(ctx, generationKey(groupID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached balances: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// NopCache never stores anything. It is used when redis is not configured.
type NopCache struct{}

func (NopCache) GetBalances(context.Context, string) (Lookup, error) {
	return Lookup{}, nil
}

func (NopCache) SetBalances(context.Context, string, int64, []models.Balance) error { return nil }

func (NopCache) Invalidate(context.Context, string) error { return nil }
