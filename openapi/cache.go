package openapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores rendered documents by key.
type Cache interface {
	// Get returns the document stored under key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, doc []byte) error
	// Clear drops every document of this cache.
	Clear(ctx context.Context) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{docs: make(map[string][]byte)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[key]

	return doc, ok, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, doc []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs[key] = doc

	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs = make(map[string][]byte)

	return nil
}

// Len returns the number of cached documents.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.docs)
}

// DefaultRedisTTL bounds how long a document lives in Redis.
// Keys name the documented route content, so entries of retired builds only linger until they expire.
const DefaultRedisTTL = 10 * time.Minute

// RedisCache is a Cache shared through Redis, for replicas serving the same document.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache storing documents under keys starting with prefix.
// A ttl <= 0 falls back to DefaultRedisTTL.
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("redis cache: nil client")
	}

	if prefix == "" {
		return nil, errors.New("redis cache: empty key prefix")
	}

	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}

	return &RedisCache{client: client, prefix: prefix, ttl: ttl}, nil
}

// NewRedisCacheFromAddr connects to the Redis server at addr.
func NewRedisCacheFromAddr(addr, password string, db int, prefix string) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return NewRedisCache(rdb, prefix, 0)
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	doc, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("redis cache get failed: %w", err)
	}

	return doc, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, doc []byte) error {
	if err := c.client.Set(ctx, c.key(key), doc, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set failed: %w", err)
	}

	return nil
}

// Clear implements Cache by deleting every key under the prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis cache scan failed: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis cache delete failed: %w", err)
	}

	return nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) key(key string) string {
	return c.prefix + ":" + key
}
