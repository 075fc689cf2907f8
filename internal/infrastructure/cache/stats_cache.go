// Package cache keeps computed task statistics in Redis, cache-aside.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskboard/api/internal/domain/entities"
	"github.com/taskboard/api/internal/infrastructure/config"
	"github.com/taskboard/api/internal/ports"
)

const (
	statsKeyPrefix      = "stats:"
	generationKeyPrefix = "stats-gen:"
)

// errStaleGeneration aborts a Set whose counts predate an invalidation
var errStaleGeneration = errors.New("stats generation changed")

// StatsCache implements ports.StatsCache
type StatsCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
	stale  atomic.Uint64
	errors atomic.Uint64
}

var _ ports.StatsCache = (*StatsCache)(nil)

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.GetAddr(), err)
	}
	return client, nil
}

// NewStatsCache creates a stats cache; keyPrefix namespaces every key
func NewStatsCache(client *redis.Client, keyPrefix string, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, prefix: keyPrefix, ttl: ttl}
}

func (c *StatsCache) key(userID int64) string {
	return c.prefix + statsKeyPrefix + strconv.FormatInt(userID, 10)
}

func (c *StatsCache) generationKey(userID int64) string {
	return c.prefix + generationKeyPrefix + strconv.FormatInt(userID, 10)
}

// Get returns the cached stats; the bool is false on a miss
func (c *StatsCache) Get(ctx context.Context, userID int64) (*entities.TaskStats, bool, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return nil, false, nil
		}
		c.errors.Add(1)
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var stats entities.TaskStats
	if err := json.Unmarshal(data, &stats); err != nil {
		c.errors.Add(1)
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	c.hits.Add(1)
	return &stats, true, nil
}

// Generation returns the user's invalidation counter; 0 before the first write
func (c *StatsCache) Generation(ctx context.Context, userID int64) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		c.errors.Add(1)
		return 0, fmt.Errorf("cache generation error: %w", err)
	}
	return gen, nil
}

// Set stores stats under WATCH on the generation key. A Set racing an
// Invalidate is dropped and reported as success.
func (c *StatsCache) Set(ctx context.Context, userID, generation int64, stats entities.TaskStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		c.errors.Add(1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	genKey := c.generationKey(userID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(userID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		c.stale.Add(1)
		return nil
	default:
		c.errors.Add(1)
		return fmt.Errorf("cache set error: %w", err)
	}
}

// Invalidate drops the cached stats and advances the generation atomically
func (c *StatsCache) Invalidate(ctx context.Context, userID int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey(userID))
		pipe.Del(ctx, c.key(userID))
		return nil
	})
	if err != nil {
		c.errors.Add(1)
		return fmt.Errorf("cache invalidate error: %w", err)
	}
	return nil
}

// HealthCheck pings Redis
func (c *StatsCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Snapshot reports hit, miss and error counters
func (c *StatsCache) Snapshot() map[string]interface{} {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"hits":         hits,
		"misses":       misses,
		"stale_writes": c.stale.Load(),
		"errors":       c.errors.Load(),
		"hit_rate":     hitRate,
	}
}

func (c *StatsCache) Close() error {
	return c.client.Close()
}
