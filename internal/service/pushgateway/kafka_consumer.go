package pushgateway

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/pkg/mq"
)

// statusPush 是推给前端的消息体。
type statusPush struct {
	Type        string `json:"type"`
	OrderNumber string `json:"orderNumber"`
	NewStatus   string `json:"newStatus"`
	Reason      string `json:"reason,omitempty"`
}

// NewStatusChangedConsumer 订阅 order.status.changed，把状态变化实时推给在线用户。
// 推送纯属锦上添花，任何失败都不阻塞 offset。
func NewStatusChangedConsumer(reader *kafka.Reader, hub *Hub) *mq.Consumer {
	handle := func(ctx context.Context, msg kafka.Message) error {
		var evt struct {
			OrderNumber string `json:"orderNumber"`
			UserID      uint64 `json:"userId"`
			NewStatus   string `json:"newStatus"`
			Reason      string `json:"reason"`
		}
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("key", string(msg.Key)).
				Msg("malformed order.status.changed payload, skipped")
			return nil
		}

		payload, err := json.Marshal(statusPush{
			Type:        "ORDER_STATUS",
			OrderNumber: evt.OrderNumber,
			NewStatus:   evt.NewStatus,
			Reason:      evt.Reason,
		})
		if err != nil {
			return nil
		}
		if !hub.Push(evt.UserID, payload) {
			logger.Ctx(ctx).Debug().
				Uint64("user_id", evt.UserID).
				Str("order_number", evt.OrderNumber).
				Msg("user offline, push skipped")
		}
		return nil
	}
	return mq.NewConsumer(reader, handle, nil)
}
