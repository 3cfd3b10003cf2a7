package adapter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "saga:processed:"

// DedupRedisAdapter 实现 port.EventDeduplicator。
// 只是第二道防线：Redis 丢数据最坏也就是多走一次状态守卫。
type DedupRedisAdapter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDedupRedisAdapter(rdb *redis.Client, ttl time.Duration) *DedupRedisAdapter {
	return &DedupRedisAdapter{rdb: rdb, ttl: ttl}
}

func (a *DedupRedisAdapter) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := a.rdb.Exists(ctx, dedupKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (a *DedupRedisAdapter) MarkProcessed(ctx context.Context, eventID string) error {
	return a.rdb.Set(ctx, dedupKeyPrefix+eventID, 1, a.ttl).Err()
}
