package idempotency

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func exerciseGuard(t *testing.T, g Guard, key string) {
	ctx := context.Background()
	require.NoError(t, g.Claim(ctx, key))
	assert.ErrorIs(t, g.Claim(ctx, key), ErrDuplicate)
	require.NoError(t, g.Release(ctx, key))
	assert.NoError(t, g.Claim(ctx, key), "released key can be claimed again")
}

func concurrentClaims(t *testing.T, g Guard, key string) {
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Claim(context.Background(), key); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryGuard(t *testing.T) {
	exerciseGuard(t, NewMemoryGuard(time.Minute), "k1")
	concurrentClaims(t, NewMemoryGuard(time.Minute), "k2")
}

func TestMemoryGuardExpires(t *testing.T) {
	g := NewMemoryGuard(20 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, g.Claim(ctx, "k"))
	time.Sleep(40 * time.Millisecond)
	assert.NoError(t, g.Claim(ctx, "k"))
}

func TestRedisGuard(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()
	ctx := context.Background()
	client.Del(ctx, keyPrefix+"test-idem-key", keyPrefix+"concurrent-idem-key")

	g := NewRedisGuard(client, time.Minute)
	exerciseGuard(t, g, "test-idem-key")
	concurrentClaims(t, g, "concurrent-idem-key")
	client.Del(ctx, keyPrefix+"test-idem-key", keyPrefix+"concurrent-idem-key")
}

func TestNewWithoutRedisUsesMemory(t *testing.T) {
	g, closeFn, err := New(context.Background(), "", time.Minute)
	require.NoError(t, err)
	defer closeFn()
	_, ok := g.(*MemoryGuard)
	assert.True(t, ok)
}
