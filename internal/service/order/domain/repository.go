package domain

import "context"

// OrderRepository 定义订单聚合的持久化接口，由基础设施层实现。
//
// Save 采用乐观并发：版本号不匹配返回 ErrVersionConflict，
// 调用方必须重读再重新评估状态守卫，不允许盲目覆盖。
type OrderRepository interface {
	FindByID(ctx context.Context, id uint64) (*Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*Order, error)

	// Save 持久化聚合并把 Version 加一。新聚合（Version==0）走插入。
	Save(ctx context.Context, order *Order) error

	// FindByStatus 供兜底扫描拉取滞留订单，按更新时间从旧到新。
	FindByStatus(ctx context.Context, status Status, limit int) ([]*Order, error)
}
