package adapter

import (
	"context"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/service/notification/domain"
)

// LogSenderAdapter 把通知写进结构化日志，演示环境没有真实的邮件/短信网关。
// 每个渠道一个实例，channel 字段区分。
type LogSenderAdapter struct {
	channel domain.Channel
}

func NewLogSenderAdapter(channel domain.Channel) *LogSenderAdapter {
	return &LogSenderAdapter{channel: channel}
}

func (a *LogSenderAdapter) Send(ctx context.Context, n *domain.Notification) error {
	logger.Ctx(ctx).Info().
		Str("channel", string(a.channel)).
		Uint64("user_id", n.UserID).
		Str("order_number", n.OrderNumber).
		Str("subject", n.Subject).
		Str("body", n.Body).
		Msg("notification delivered")
	return nil
}
