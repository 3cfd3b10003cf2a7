package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/pkg/mq"
	"supplyboost/internal/service/order/application/saga"
	"supplyboost/internal/service/order/domain"
)

// NewPaymentProcessedConsumer 订阅 payment.processed 并驱动 saga 编排器。
func NewPaymentProcessedConsumer(reader *kafka.Reader, orchestrator *saga.Orchestrator) *mq.Consumer {
	handle := func(ctx context.Context, msg kafka.Message) error {
		var evt domain.PaymentProcessedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			// 无法解析的消息重投也解析不了，记日志后丢弃
			logger.Ctx(ctx).Error().Err(err).
				Str("key", string(msg.Key)).
				Msg("malformed payment.processed payload, skipped")
			return nil
		}
		return orchestrator.HandlePaymentProcessed(ctx, &evt)
	}
	return mq.NewConsumer(reader, handle, domain.IsFatal)
}

// NewShipmentCreatedConsumer 订阅 shipment.created 并驱动 saga 编排器。
func NewShipmentCreatedConsumer(reader *kafka.Reader, orchestrator *saga.Orchestrator) *mq.Consumer {
	handle := func(ctx context.Context, msg kafka.Message) error {
		var evt domain.ShipmentCreatedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("key", string(msg.Key)).
				Msg("malformed shipment.created payload, skipped")
			return nil
		}
		return orchestrator.HandleShipmentCreated(ctx, &evt)
	}
	return mq.NewConsumer(reader, handle, domain.IsFatal)
}
