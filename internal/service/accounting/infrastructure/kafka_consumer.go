package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/pkg/mq"
	"supplyboost/internal/service/accounting/application"
	"supplyboost/internal/service/accounting/domain"
)

// NewPaymentProcessedConsumer 订阅 payment.processed，支付成功时开草稿发票。
func NewPaymentProcessedConsumer(reader *kafka.Reader, svc *application.InvoiceService) *mq.Consumer {
	handle := func(ctx context.Context, msg kafka.Message) error {
		var evt domain.PaymentProcessedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("key", string(msg.Key)).
				Msg("malformed payment.processed payload, skipped")
			return nil
		}
		return svc.HandlePaymentProcessed(ctx, &evt)
	}
	return mq.NewConsumer(reader, handle, domain.IsFatal)
}

// NewShipmentCreatedConsumer 订阅 shipment.created，驱动结算序列。
func NewShipmentCreatedConsumer(reader *kafka.Reader, svc *application.InvoiceService) *mq.Consumer {
	handle := func(ctx context.Context, msg kafka.Message) error {
		var evt domain.ShipmentCreatedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("key", string(msg.Key)).
				Msg("malformed shipment.created payload, skipped")
			return nil
		}
		return svc.HandleShipmentCreated(ctx, &evt)
	}
	return mq.NewConsumer(reader, handle, domain.IsFatal)
}

// NewOrderStatusChangedConsumer 订阅 order.status.changed，退款时作废发票。
func NewOrderStatusChangedConsumer(reader *kafka.Reader, svc *application.InvoiceService) *mq.Consumer {
	handle := func(ctx context.Context, msg kafka.Message) error {
		var evt domain.OrderStatusChangedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("key", string(msg.Key)).
				Msg("malformed order.status.changed payload, skipped")
			return nil
		}
		return svc.HandleOrderStatusChanged(ctx, &evt)
	}
	return mq.NewConsumer(reader, handle, domain.IsFatal)
}
