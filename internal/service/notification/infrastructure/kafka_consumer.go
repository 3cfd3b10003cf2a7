package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/pkg/mq"
	"supplyboost/internal/service/notification/application"
	"supplyboost/internal/service/notification/domain"
)

// NewOrderCreatedConsumer 订阅 order.created。
func NewOrderCreatedConsumer(reader *kafka.Reader, svc *application.NotificationService) *mq.Consumer {
	handle := func(ctx context.Context, msg kafka.Message) error {
		var evt domain.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("key", string(msg.Key)).
				Msg("malformed order.created payload, skipped")
			return nil
		}
		return svc.HandleOrderCreated(ctx, &evt)
	}
	return mq.NewConsumer(reader, handle, nil)
}

// NewOrderStatusChangedConsumer 订阅 order.status.changed。
func NewOrderStatusChangedConsumer(reader *kafka.Reader, svc *application.NotificationService) *mq.Consumer {
	handle := func(ctx context.Context, msg kafka.Message) error {
		var evt domain.OrderStatusChangedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("key", string(msg.Key)).
				Msg("malformed order.status.changed payload, skipped")
			return nil
		}
		return svc.HandleStatusChanged(ctx, &evt)
	}
	return mq.NewConsumer(reader, handle, nil)
}
