package classify

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ricesearch/review-topics/internal/config"
	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// AnswerCache stores raw model answers by request key.
type AnswerCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, answer string) error
	Close() error
}

// NewCache creates the answer cache selected by cfg.Type.
func NewCache(cfg config.CacheConfig) (AnswerCache, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return NewMemoryCache(cfg.Size), nil
	case "redis":
		c, err := NewRedisCache(cfg.RedisURL, cfg.KeyPrefix, time.Duration(cfg.TTL)*time.Second)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "none":
		return NoopCache{}, nil
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown cache type %q", cfg.Type))
	}
}

// MemoryCache is a bounded in-process LRU cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
}

type memoryEntry struct {
	key    string
	answer string
}

// NewMemoryCache creates a cache holding at most maxSize answers.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Get returns the cached answer for key.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	c.order.MoveToFront(el)
	return el.Value.(*memoryEntry).answer, true, nil
}

// Set stores answer under key, evicting the least recently used entry when full.
func (c *MemoryCache) Set(_ context.Context, key, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*memoryEntry).answer = answer
		c.order.MoveToFront(el)
		return nil
	}

	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*memoryEntry).key)
	}
	c.entries[key] = c.order.PushFront(&memoryEntry{key: key, answer: answer})
	return nil
}

// Len returns the number of cached answers.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close is a no-op.
func (c *MemoryCache) Close() error {
	return nil
}

// RedisCache stores answers in Redis so they survive across runs.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to url and verifies the connection.
// A zero ttl keeps answers indefinitely.
func NewRedisCache(url, prefix string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.CacheError("parsing redis URL", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.ServiceUnavailableError("redis", err).WithDetail("addr", opts.Addr)
	}

	return &RedisCache{client: client, prefix: prefix, ttl: ttl}, nil
}

// Get returns the cached answer for key.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	answer, err := c.client.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.CacheError("reading answer", err)
	}
	return answer, true, nil
}

// Set stores answer under key.
func (c *RedisCache) Set(ctx context.Context, key, answer string) error {
	if err := c.client.Set(ctx, c.prefix+key, answer, c.ttl).Err(); err != nil {
		return errors.CacheError("writing answer", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (NoopCache) Set(context.Context, string, string) error         { return nil }
func (NoopCache) Close() error                                      { return nil }
