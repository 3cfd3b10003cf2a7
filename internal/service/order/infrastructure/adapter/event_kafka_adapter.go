package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"supplyboost/internal/pkg/mq"
	"supplyboost/internal/service/order/domain"
)

// EventKafkaAdapter 实现 port.EventPublisher。
// 消息 key 一律用 orderNumber：同一订单的事件必须落同一分区。
type EventKafkaAdapter struct {
	orderCreated  *kafka.Writer
	statusChanged *kafka.Writer
}

func NewEventKafkaAdapter(orderCreated, statusChanged *kafka.Writer) *EventKafkaAdapter {
	return &EventKafkaAdapter{orderCreated: orderCreated, statusChanged: statusChanged}
}

func (a *EventKafkaAdapter) PublishOrderCreated(ctx context.Context, event domain.OrderCreatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal order.created")
	}
	return mq.ProduceMessage(ctx, a.orderCreated, []byte(event.OrderNumber), payload)
}

func (a *EventKafkaAdapter) PublishStatusChanged(ctx context.Context, event domain.OrderStatusChangedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal order.status.changed")
	}
	return mq.ProduceMessage(ctx, a.statusChanged, []byte(event.OrderNumber), payload)
}

// Close 关闭底层 writer。
func (a *EventKafkaAdapter) Close() error {
	if err := a.orderCreated.Close(); err != nil {
		return err
	}
	return a.statusChanged.Close()
}
