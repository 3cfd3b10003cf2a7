package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/service/notification/domain"
)

// NotificationService 把订单事件过一遍规则引擎，命中的规则各发一条通知。
// 通知是尽力而为的：重试耗尽后吞掉错误，绝不把 offset 卡住。
type NotificationService struct {
	engine      *RuleEngine
	senders     map[domain.Channel]domain.Sender
	maxAttempts int
	tracer      trace.Tracer
}

func NewNotificationService(engine *RuleEngine, senders map[domain.Channel]domain.Sender,
	maxAttempts int, tracer trace.Tracer) *NotificationService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &NotificationService{engine: engine, senders: senders, maxAttempts: maxAttempts, tracer: tracer}
}

// HandleOrderCreated 处理 order.created。
func (s *NotificationService) HandleOrderCreated(ctx context.Context, evt *domain.OrderCreatedEvent) error {
	ctx, span := s.tracer.Start(ctx, "notification.HandleOrderCreated")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", evt.OrderNumber))

	amount, _ := evt.TotalAmount.Float64()
	s.dispatch(ctx, &domain.OrderEvent{
		EventType:   domain.EventTypeOrderCreated,
		OrderNumber: evt.OrderNumber,
		UserID:      evt.UserID,
		TotalAmount: amount,
	}, fmt.Sprintf("order %s received, total %s %s", evt.OrderNumber, evt.TotalAmount.StringFixed(2), evt.Currency))
	return nil
}

// HandleStatusChanged 处理 order.status.changed。
func (s *NotificationService) HandleStatusChanged(ctx context.Context, evt *domain.OrderStatusChangedEvent) error {
	ctx, span := s.tracer.Start(ctx, "notification.HandleStatusChanged")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.number", evt.OrderNumber),
		attribute.String("order.status", evt.NewStatus),
	)

	body := fmt.Sprintf("order %s moved from %s to %s", evt.OrderNumber, evt.PreviousStatus, evt.NewStatus)
	if evt.Reason != "" {
		body += " (" + evt.Reason + ")"
	}
	s.dispatch(ctx, &domain.OrderEvent{
		EventType:      domain.EventTypeStatusChanged,
		OrderNumber:    evt.OrderNumber,
		UserID:         evt.UserID,
		PreviousStatus: evt.PreviousStatus,
		NewStatus:      evt.NewStatus,
		Reason:         evt.Reason,
	}, body)
	return nil
}

func (s *NotificationService) dispatch(ctx context.Context, evt *domain.OrderEvent, body string) {
	hits, err := s.engine.Evaluate(evt)
	if err != nil {
		// 部分规则求值失败只记日志，命中的照发
		logger.Ctx(ctx).Warn().Err(err).
			Str("order_number", evt.OrderNumber).
			Msg("some notification rules failed to evaluate")
	}

	for _, hit := range hits {
		sender, ok := s.senders[hit.Channel]
		if !ok {
			logger.Ctx(ctx).Error().
				Str("rule", hit.Name).
				Str("channel", string(hit.Channel)).
				Msg("no sender registered for channel")
			continue
		}
		s.sendWithRetry(ctx, sender, &domain.Notification{
			OrderNumber: evt.OrderNumber,
			UserID:      evt.UserID,
			Channel:     hit.Channel,
			RuleName:    hit.Name,
			Subject:     evt.EventType,
			Body:        body,
			CreatedAt:   time.Now().UTC(),
		})
	}
}

func (s *NotificationService) sendWithRetry(ctx context.Context, sender domain.Sender, n *domain.Notification) {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err = sender.Send(ctx, n); err == nil {
			logger.Ctx(ctx).Info().
				Str("order_number", n.OrderNumber).
				Str("channel", string(n.Channel)).
				Str("rule", n.RuleName).
				Msg("notification sent")
			return
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	// 重试耗尽：通知丢了就丢了，不能反压消费循环
	logger.Ctx(ctx).Error().Err(err).
		Str("order_number", n.OrderNumber).
		Str("channel", string(n.Channel)).
		Int("attempts", s.maxAttempts).
		Msg("notification dropped after retries")
}
