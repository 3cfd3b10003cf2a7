package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) (*DedupRedisAdapter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewDedupRedisAdapter(rdb, time.Hour), mr
}

func TestSeenAndMarkProcessed(t *testing.T) {
	dedup, _ := newTestAdapter(t)
	ctx := context.Background()

	seen, err := dedup.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, dedup.MarkProcessed(ctx, "evt-1"))

	seen, err = dedup.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	// 其他事件不受影响
	seen, err = dedup.Seen(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestDedupEntryExpires(t *testing.T) {
	dedup, mr := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, dedup.MarkProcessed(ctx, "evt-1"))
	mr.FastForward(2 * time.Hour)

	// TTL 过后记录消失，重投退回状态守卫兜底
	seen, err := dedup.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}
