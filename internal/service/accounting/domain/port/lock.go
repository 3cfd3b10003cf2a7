package port

import "context"

// SettlementLock 把结算序列按资源 ID 串行化。
// 同一订单的结算步骤不能并发交错，跨实例靠它互斥。
type SettlementLock interface {
	WithLock(ctx context.Context, resourceID string, fn func() error) error
}
