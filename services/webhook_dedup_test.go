package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDeduplicator_InProcessFallback(t *testing.T) {
	d := NewRedisDeduplicator(nil, time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := d.FirstSeen(ctx, "false_6281@c.us_AAA")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(ctx, "false_6281@c.us_AAA")
	require.NoError(t, err)
	assert.False(t, again)

	now = now.Add(2 * time.Minute)
	afterTTL, err := d.FirstSeen(ctx, "false_6281@c.us_AAA")
	require.NoError(t, err)
	assert.True(t, afterTTL)
}

func TestRedisDeduplicator_EmptyIDAlwaysProcessed(t *testing.T) {
	d := NewRedisDeduplicator(nil, 0)
	assert.Equal(t, 24*time.Hour, d.TTL)
	for i := 0; i < 2; i++ {
		first, err := d.FirstSeen(context.Background(), "")
		require.NoError(t, err)
		assert.True(t, first)
	}
}

func TestRedisDeduplicator_RedisErrorSurfaces(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	d := NewRedisDeduplicator(rdb, time.Minute)
	_, err := d.FirstSeen(context.Background(), "msg-1")
	assert.Error(t, err)
}

func TestRedisDeduplicator_ForgetAllowsRedelivery(t *testing.T) {
	d := NewRedisDeduplicator(nil, time.Hour)
	ctx := context.Background()

	first, err := d.FirstSeen(ctx, "msg-1")
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, d.Forget(ctx, "msg-1"))

	again, err := d.FirstSeen(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestRedisDeduplicator_SweepsOnInterval(t *testing.T) {
	d := NewRedisDeduplicator(nil, 10*time.Second)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := d.FirstSeen(ctx, "old")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = d.FirstSeen(ctx, "new")
	require.NoError(t, err)
	assert.Len(t, d.seen, 2, "expired ids stay until the next sweep")

	now = now.Add(dedupSweepInterval)
	_, err = d.FirstSeen(ctx, "newer")
	require.NoError(t, err)
	assert.Len(t, d.seen, 1)
	assert.Contains(t, d.seen, "newer")
}
