package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "assetline:idem:"

// ErrDuplicate is returned when a key was already claimed within its TTL.
var ErrDuplicate = errors.New("idempotency key already used")

// Guard claims idempotency keys for request creation.
type Guard interface {
	// Claim reserves key. It returns ErrDuplicate if key is held.
	Claim(ctx context.Context, key string) error
	// Release frees a key whose operation failed so the client may retry.
	Release(ctx context.Context, key string) error
}

// RedisGuard stores claims with SETNX so every server instance sharing the
// Redis sees the same keys.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Claim(ctx context.Context, key string) error {
	ok, err := g.client.SetNX(ctx, keyPrefix+key, 1, g.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, keyPrefix+key).Err()
}

const memoryCapacity = 10000

// MemoryGuard keeps claims in process, bounded by memoryCapacity.
type MemoryGuard struct {
	mu   sync.Mutex
	keys *expirable.LRU[string, struct{}]
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{keys: expirable.NewLRU[string, struct{}](memoryCapacity, nil, ttl)}
}

func (g *MemoryGuard) Claim(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.keys.Peek(key); ok {
		return ErrDuplicate
	}
	g.keys.Add(key, struct{}{})
	return nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys.Remove(key)
	return nil
}

// New picks a Redis guard when addr is set, else an in-memory one. The Redis
// connection is checked with PING.
func New(ctx context.Context, addr string, ttl time.Duration) (Guard, func() error, error) {
	if addr == "" {
		return NewMemoryGuard(ttl), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	return NewRedisGuard(client, ttl), client.Close, nil
}
