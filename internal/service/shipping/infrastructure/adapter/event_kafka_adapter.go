package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"supplyboost/internal/pkg/mq"
	"supplyboost/internal/service/shipping/domain"
)

// EventKafkaAdapter 实现 shipping 侧的 domain.EventPublisher。
type EventKafkaAdapter struct {
	shipmentCreated *kafka.Writer
}

func NewEventKafkaAdapter(shipmentCreated *kafka.Writer) *EventKafkaAdapter {
	return &EventKafkaAdapter{shipmentCreated: shipmentCreated}
}

func (a *EventKafkaAdapter) PublishShipmentCreated(ctx context.Context, event domain.ShipmentCreatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal shipment.created")
	}
	// key 用 orderNumber，和订单事件同键同分区
	return mq.ProduceMessage(ctx, a.shipmentCreated, []byte(event.OrderNumber), payload)
}

func (a *EventKafkaAdapter) Close() error {
	return a.shipmentCreated.Close()
}
