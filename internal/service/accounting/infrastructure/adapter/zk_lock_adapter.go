package adapter

import (
	"context"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"

	"supplyboost/internal/pkg/dlock"
	"supplyboost/internal/pkg/logger"
)

// ZkLockAdapter 实现 port.SettlementLock，底层是 ZooKeeper 临时顺序节点锁。
type ZkLockAdapter struct {
	conn *zk.Conn
	wait time.Duration
}

func NewZkLockAdapter(conn *zk.Conn, wait time.Duration) *ZkLockAdapter {
	return &ZkLockAdapter{conn: conn, wait: wait}
}

func (a *ZkLockAdapter) WithLock(ctx context.Context, resourceID string, fn func() error) error {
	lock, err := dlock.New(a.conn, resourceID)
	if err != nil {
		return errors.Wrap(err, "init settlement lock")
	}
	if err := lock.Lock(a.wait); err != nil {
		return errors.Wrapf(err, "acquire settlement lock for %s", resourceID)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("resource", resourceID).
				Msg("failed to release settlement lock, relying on session expiry")
		}
	}()
	return fn()
}
