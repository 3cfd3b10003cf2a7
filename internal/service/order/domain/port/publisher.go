package port

import (
	"context"

	"supplyboost/internal/service/order/domain"
)

// EventPublisher 是事件总线的出站端口。
// 实现必须用 orderNumber 做分区键，保证同一订单的事件分区内有序。
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event domain.OrderCreatedEvent) error
	PublishStatusChanged(ctx context.Context, event domain.OrderStatusChangedEvent) error
}

// EventDeduplicator 记录已处理的事件 ID，作为状态守卫之外的第二道防线。
// 状态字段始终是权威守卫，这里只是省掉一次聚合读写。
type EventDeduplicator interface {
	// Seen 报告事件是否处理过；出错时按未见处理（宁可重复检查不可漏事件）。
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}
