package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNames(t *testing.T) {
	assert.Equal(t, "lock:inventory:1:2", lockName("inventory:1:2"))
	assert.Equal(t, "processed-event:abc:0", processedName("abc:0"))
}

func TestReleaseScriptComparesToken(t *testing.T) {
	assert.Contains(t, releaseLockScript, `redis.call("GET", KEYS[1]) == ARGV[1]`)
}

func openTestClient(t *testing.T) *Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires redis")
	}

	c := newClient(redis.NewClient(&redis.Options{Addr: addr}))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLockRoundTrip(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	key := "test:" + time.Now().Format(time.RFC3339Nano)

	token, ok, err := c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, key, "not-the-holder"))
	_, ok, _ = c.AcquireLock(ctx, key, time.Minute)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, key, token))
	_, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkEventProcessed(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	id := "evt-" + time.Now().Format(time.RFC3339Nano)

	processed, err := c.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, c.MarkEventProcessed(ctx, id, time.Minute))
	processed, err = c.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.True(t, processed)
}
