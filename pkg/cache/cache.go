// Package cache is the Redis-backed durable store for visitor ids, rate
// limit counters, and operational metrics.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stayguard/pkg/fingerprint"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects and pings; visitor-id records live for ttl unless read again.
func New(addr, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{
		client: client,
		ttl:    ttl,
	}, nil
}

// visitorStore binds the persistence flow to one client key. Reading a
// record refreshes its TTL and bumps the visit counter, so active visitors
// never expire.
type visitorStore struct {
	cache *Cache
	key   string
}

// VisitorStore returns the durable store bound to one client storage key
// (the agent's storage token or the fingerprint hash).
func (c *Cache) VisitorStore(key string) fingerprint.Store {
	return &visitorStore{cache: c, key: key}
}

func (s *visitorStore) Get(ctx context.Context) (string, int64, error) {
	idKey := "visitor:" + s.key
	visitsKey := "visitor:" + s.key + ":visits"

	id, err := s.cache.client.Get(ctx, idKey).Result()
	if err == redis.Nil {
		return "", 0, fingerprint.ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("visitor store get: %w", err)
	}

	pipe := s.cache.client.Pipeline()
	visits := pipe.Incr(ctx, visitsKey)
	pipe.Expire(ctx, idKey, s.cache.ttl)
	pipe.Expire(ctx, visitsKey, s.cache.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		// The id itself was read fine; a failed refresh is not a miss.
		return id, 0, nil
	}

	return id, visits.Val(), nil
}

func (s *visitorStore) Put(ctx context.Context, id string) error {
	idKey := "visitor:" + s.key
	visitsKey := "visitor:" + s.key + ":visits"

	pipe := s.cache.client.Pipeline()
	pipe.Set(ctx, idKey, id, s.cache.ttl)
	pipe.Set(ctx, visitsKey, 1, s.cache.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("visitor store put: %w", err)
	}
	return nil
}

// CheckRateLimit counts requests for an identifier inside a window.
func (c *Cache) CheckRateLimit(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf("rl:%s", identifier)

	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check error: %w", err)
	}

	return incr.Val() <= int64(limit), nil
}

// IncrementMetric bumps an operational counter.
func (c *Cache) IncrementMetric(ctx context.Context, metric string) error {
	return c.client.Incr(ctx, "metric:"+metric).Err()
}

// GetMetric reads an operational counter.
func (c *Cache) GetMetric(ctx context.Context, metric string) (int64, error) {
	val, err := c.client.Get(ctx, "metric:"+metric).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
