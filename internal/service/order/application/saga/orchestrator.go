package saga

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/pkg/metrics"
	"supplyboost/internal/service/order/domain"
	"supplyboost/internal/service/order/domain/port"
)

// saveRetries 限定乐观锁冲突后的重试次数。
// 冲突方重读之后大多会命中幂等守卫直接变成 no-op，三次足够。
const saveRetries = 3

// Orchestrator 是订单履约 saga 的编排核心：
// 消费领域事件，校验状态前置条件，提交本地流转，再触发下游动作。
//
// 约束（顺序不可交换）：本地状态先提交，下游调用后发起。
// 编排器无法回滚已提交的状态，下游失败靠兜底态 + 重试收敛，不做两阶段提交。
type Orchestrator struct {
	repo      domain.OrderRepository
	shipping  port.ShippingClient
	inventory port.InventoryClient
	publisher port.EventPublisher
	dedup     port.EventDeduplicator
	tracer    trace.Tracer

	// downstreamTimeout 约束每一次下游调用，超时视为失败走兜底态
	downstreamTimeout time.Duration
}

func NewOrchestrator(
	repo domain.OrderRepository,
	shipping port.ShippingClient,
	inventory port.InventoryClient,
	publisher port.EventPublisher,
	dedup port.EventDeduplicator,
	tracer trace.Tracer,
	downstreamTimeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		repo:              repo,
		shipping:          shipping,
		inventory:         inventory,
		publisher:         publisher,
		dedup:             dedup,
		tracer:            tracer,
		downstreamTimeout: downstreamTimeout,
	}
}

// HandlePaymentProcessed 消费 payment.processed。
// SUCCEEDED 推进到 PAYMENT_CONFIRMED 并发起发货；FAILED 落账失败并补偿库存。
func (o *Orchestrator) HandlePaymentProcessed(ctx context.Context, evt *domain.PaymentProcessedEvent) error {
	ctx, span := o.tracer.Start(ctx, "saga.HandlePaymentProcessed", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("order.number", evt.OrderNumber),
		attribute.String("payment.status", evt.Status),
	)

	if o.alreadyProcessed(ctx, evt.EventID) {
		metrics.DuplicateEvents.WithLabelValues("payment.processed").Inc()
		span.AddEvent("duplicate eventId, skipped")
		return nil
	}

	var err error
	switch evt.Status {
	case domain.PaymentSucceeded:
		err = o.confirmPayment(ctx, evt)
	case domain.PaymentFailed:
		err = o.failPayment(ctx, evt)
	default:
		// 未知判别值说明上游契约破坏，留日志后跳过，重投没有意义
		logger.Ctx(ctx).Error().
			Str("order_number", evt.OrderNumber).
			Str("status", evt.Status).
			Msg("payment.processed carries unknown status discriminator")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment event handling failed")
		return err
	}

	o.markProcessed(ctx, evt.EventID)
	return nil
}

func (o *Orchestrator) confirmPayment(ctx context.Context, evt *domain.PaymentProcessedEvent) error {
	for attempt := 0; attempt < saveRetries; attempt++ {
		order, err := o.load(ctx, evt.OrderID, evt.OrderNumber)
		if err != nil {
			return err
		}

		if order.Status != domain.StatusPaymentPending {
			if order.Status.PaymentSettled() {
				// 幂等守卫：支付结果已经落账过，重复投递不产生任何副作用
				metrics.DuplicateEvents.WithLabelValues("payment.processed").Inc()
				logger.Ctx(ctx).Debug().
					Str("order_number", order.OrderNumber).
					Str("status", string(order.Status)).
					Msg("payment already settled, replay absorbed")
				return nil
			}
			// CREATED：支付结果先于支付发起到达，乱序，拒绝而不是强行套用
			return &domain.IllegalTransitionError{
				OrderNumber: order.OrderNumber,
				From:        order.Status,
				To:          domain.StatusPaymentConfirmed,
			}
		}

		if err := order.ConfirmPayment(evt.PaymentNumber, evt.PaymentMethod); err != nil {
			return err
		}
		if err := o.repo.Save(ctx, order); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue // 并发提交抢先，重读后重新评估守卫
			}
			return err
		}
		metrics.SagaTransitions.WithLabelValues(string(domain.StatusPaymentPending), string(domain.StatusPaymentConfirmed)).Inc()
		logger.Ctx(ctx).Info().
			Str("order_number", order.OrderNumber).
			Str("payment_ref", evt.PaymentNumber).
			Msg("payment confirmed, initiating shipment")

		// 本地流转已提交，此后的失败只影响下游动作，不回滚状态
		o.initiateShipment(ctx, order)
		o.publishStatusChanged(ctx, order, domain.StatusPaymentPending, "payment confirmed")
		return nil
	}
	return domain.ErrVersionConflict
}

func (o *Orchestrator) failPayment(ctx context.Context, evt *domain.PaymentProcessedEvent) error {
	for attempt := 0; attempt < saveRetries; attempt++ {
		order, err := o.load(ctx, evt.OrderID, evt.OrderNumber)
		if err != nil {
			return err
		}

		if order.Status == domain.StatusPaymentFailed {
			metrics.DuplicateEvents.WithLabelValues("payment.processed").Inc()
			return nil
		}

		if err := order.FailPayment(); err != nil {
			return err
		}
		if err := o.repo.Save(ctx, order); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue
			}
			return err
		}
		metrics.SagaTransitions.WithLabelValues(string(domain.StatusPaymentPending), string(domain.StatusPaymentFailed)).Inc()
		logger.Ctx(ctx).Warn().
			Str("order_number", order.OrderNumber).
			Str("reason", evt.FailureReason).
			Msg("payment failed, order settled as PAYMENT_FAILED")

		o.publishStatusChanged(ctx, order, domain.StatusPaymentPending, evt.FailureReason)
		o.releaseInventory(ctx, order)
		return nil
	}
	return domain.ErrVersionConflict
}

// releaseInventory 执行支付失败后的补偿：释放库存预占。
// 被调方幂等；这里的失败是资金一致性告警，与普通通知失败严格区分。
func (o *Orchestrator) releaseInventory(ctx context.Context, order *domain.Order) {
	callCtx, cancel := context.WithTimeout(ctx, o.downstreamTimeout)
	defer cancel()

	if err := o.inventory.ReleaseReservation(callCtx, order.ID, order.OrderNumber); err != nil {
		metrics.CompensationFailures.Inc()
		logger.Ctx(ctx).Error().
			Err(err).
			Str("alert", "financial-integrity").
			Str("order_number", order.OrderNumber).
			Msg("inventory release compensation failed, operator intervention required")
	}
}

// HandleShipmentCreated 消费 shipment.created，把订单推进到 SHIPPED。
func (o *Orchestrator) HandleShipmentCreated(ctx context.Context, evt *domain.ShipmentCreatedEvent) error {
	ctx, span := o.tracer.Start(ctx, "saga.HandleShipmentCreated", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("order.number", evt.OrderNumber),
		attribute.String("shipment.tracking", evt.TrackingNumber),
	)

	if o.alreadyProcessed(ctx, evt.EventID) {
		metrics.DuplicateEvents.WithLabelValues("shipment.created").Inc()
		return nil
	}

	for attempt := 0; attempt < saveRetries; attempt++ {
		order, err := o.load(ctx, evt.OrderID, evt.OrderNumber)
		if err != nil {
			span.RecordError(err)
			return err
		}

		if order.Status.ShippedOrLater() {
			metrics.DuplicateEvents.WithLabelValues("shipment.created").Inc()
			logger.Ctx(ctx).Debug().
				Str("order_number", order.OrderNumber).
				Msg("shipment already recorded, replay absorbed")
			return nil
		}

		prev := order.Status
		shippedAt := evt.EventTime
		if shippedAt.IsZero() {
			shippedAt = time.Now().UTC()
		}
		// 支付尚未确认时这里直接拒绝（乱序投递），等上游重放
		if err := order.MarkShipped(evt.ShipmentNumber, evt.TrackingNumber, shippedAt); err != nil {
			span.RecordError(err)
			return err
		}
		if err := o.repo.Save(ctx, order); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue
			}
			return err
		}
		metrics.SagaTransitions.WithLabelValues(string(prev), string(domain.StatusShipped)).Inc()
		logger.Ctx(ctx).Info().
			Str("order_number", order.OrderNumber).
			Str("tracking_number", evt.TrackingNumber).
			Msg("order shipped")

		o.publishStatusChanged(ctx, order, prev, "shipment created")
		o.markProcessed(ctx, evt.EventID)
		return nil
	}
	return domain.ErrVersionConflict
}

// Cancel 处理用户发起的取消。只接受未发货的非终态订单；
// 重复取消是 no-op，对 SHIPPED/DELIVERED 的取消被显式拒绝。
func (o *Orchestrator) Cancel(ctx context.Context, orderNumber, reason string) error {
	ctx, span := o.tracer.Start(ctx, "saga.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", orderNumber))

	for attempt := 0; attempt < saveRetries; attempt++ {
		order, err := o.repo.FindByNumber(ctx, orderNumber)
		if err != nil {
			return err
		}
		if order.Status == domain.StatusCancelled {
			return nil
		}

		prev := order.Status
		if err := order.Cancel(); err != nil {
			span.RecordError(err)
			return err
		}
		if err := o.repo.Save(ctx, order); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue
			}
			return err
		}
		metrics.SagaTransitions.WithLabelValues(string(prev), string(domain.StatusCancelled)).Inc()
		logger.Ctx(ctx).Info().
			Str("order_number", orderNumber).
			Str("reason", reason).
			Msg("order cancelled")

		o.publishStatusChanged(ctx, order, prev, reason)
		return nil
	}
	return domain.ErrVersionConflict
}

// MarkDelivered 把已发货订单推进到 DELIVERED（承运商回执触发）。
func (o *Orchestrator) MarkDelivered(ctx context.Context, orderNumber string) error {
	ctx, span := o.tracer.Start(ctx, "saga.MarkDelivered")
	defer span.End()

	for attempt := 0; attempt < saveRetries; attempt++ {
		order, err := o.repo.FindByNumber(ctx, orderNumber)
		if err != nil {
			return err
		}
		if order.Status == domain.StatusDelivered {
			return nil
		}

		prev := order.Status
		if err := order.MarkDelivered(time.Now().UTC()); err != nil {
			return err
		}
		if err := o.repo.Save(ctx, order); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue
			}
			return err
		}
		metrics.SagaTransitions.WithLabelValues(string(prev), string(domain.StatusDelivered)).Inc()
		o.publishStatusChanged(ctx, order, prev, "delivered")
		return nil
	}
	return domain.ErrVersionConflict
}

// Refund 是整单退款的补偿入口，只接受支付确认之后的订单。
func (o *Orchestrator) Refund(ctx context.Context, orderNumber, reason string) error {
	ctx, span := o.tracer.Start(ctx, "saga.Refund")
	defer span.End()

	for attempt := 0; attempt < saveRetries; attempt++ {
		order, err := o.repo.FindByNumber(ctx, orderNumber)
		if err != nil {
			return err
		}
		if order.Status == domain.StatusRefunded {
			return nil
		}

		prev := order.Status
		if err := order.Refund(); err != nil {
			return err
		}
		if err := o.repo.Save(ctx, order); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue
			}
			return err
		}
		metrics.SagaTransitions.WithLabelValues(string(prev), string(domain.StatusRefunded)).Inc()
		logger.Ctx(ctx).Warn().
			Str("order_number", orderNumber).
			Str("reason", reason).
			Msg("order refunded")
		o.publishStatusChanged(ctx, order, prev, reason)
		return nil
	}
	return domain.ErrVersionConflict
}

// InitiateShipment 重放发货指令，供兜底扫描对 READY_TO_SHIP 订单调用。
// 成功与否都不改订单状态：SHIPPED 要等 shipment.created 事件落账。
func (o *Orchestrator) InitiateShipment(ctx context.Context, order *domain.Order) error {
	callCtx, cancel := context.WithTimeout(ctx, o.downstreamTimeout)
	defer cancel()
	return o.shipping.CreateShipment(callCtx, shipmentRequestFrom(order))
}

// initiateShipment 在支付确认后第一次发起发货。
// 失败不报错：订单落入 READY_TO_SHIP 兜底态，由扫描任务接手。
func (o *Orchestrator) initiateShipment(ctx context.Context, order *domain.Order) {
	err := o.InitiateShipment(ctx, order)
	if err == nil {
		return
	}
	logger.Ctx(ctx).Warn().
		Err(err).
		Str("order_number", order.OrderNumber).
		Msg("shipment initiation failed, parking order as READY_TO_SHIP")

	for attempt := 0; attempt < saveRetries; attempt++ {
		if err := order.MarkReadyToShip(); err != nil {
			// 状态已被并发事件推进（比如发货回执先到了），无需兜底
			return
		}
		if err := o.repo.Save(ctx, order); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				reloaded, ferr := o.repo.FindByID(ctx, order.ID)
				if ferr != nil {
					return
				}
				order = reloaded
				continue
			}
			logger.Ctx(ctx).Error().Err(err).
				Str("order_number", order.OrderNumber).
				Msg("failed to persist READY_TO_SHIP holding state")
			return
		}
		metrics.SagaTransitions.WithLabelValues(string(domain.StatusPaymentConfirmed), string(domain.StatusReadyToShip)).Inc()
		return
	}
}

func (o *Orchestrator) load(ctx context.Context, orderID uint64, orderNumber string) (*domain.Order, error) {
	order, err := o.repo.FindByID(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		// 事件引用了不存在的聚合：致命不一致，告警而不是静默丢弃
		logger.Ctx(ctx).Error().
			Str("alert", "saga-inconsistency").
			Uint64("order_id", orderID).
			Str("order_number", orderNumber).
			Msg("event references an order that does not exist locally")
	}
	return order, err
}

func (o *Orchestrator) publishStatusChanged(ctx context.Context, order *domain.Order, prev domain.Status, reason string) {
	evt := domain.OrderStatusChangedEvent{
		EventID:        uuid.New().String(),
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		PreviousStatus: prev,
		NewStatus:      order.Status,
		Reason:         reason,
		EventTime:      time.Now().UTC(),
	}
	// 通知链路是尽力而为，发布失败不影响已提交的流转
	if err := o.publisher.PublishStatusChanged(ctx, evt); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("order_number", order.OrderNumber).
			Msg("failed to publish order.status.changed")
	}
}

func (o *Orchestrator) alreadyProcessed(ctx context.Context, eventID string) bool {
	if o.dedup == nil || eventID == "" {
		return false
	}
	seen, err := o.dedup.Seen(ctx, eventID)
	if err != nil {
		// 去重缓存不可用时退回状态守卫，宁可多查一次订单
		logger.Ctx(ctx).Warn().Err(err).Msg("event dedup lookup failed, falling back to status guard")
		return false
	}
	return seen
}

func (o *Orchestrator) markProcessed(ctx context.Context, eventID string) {
	if o.dedup == nil || eventID == "" {
		return
	}
	if err := o.dedup.MarkProcessed(ctx, eventID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to record processed eventId")
	}
}

func shipmentRequestFrom(order *domain.Order) port.ShipmentRequest {
	return port.ShipmentRequest{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		RecipientName:  order.CustomerName,
		RecipientEmail: order.CustomerEmail,
		RecipientPhone: order.CustomerPhone,
		AddressLine1:   order.Shipping.Line1,
		AddressLine2:   order.Shipping.Line2,
		City:           order.Shipping.City,
		State:          order.Shipping.State,
		PostalCode:     order.Shipping.PostalCode,
		Country:        order.Shipping.Country,
		DeclaredValue:  order.TotalAmount.StringFixed(2),
		Currency:       order.Currency,
	}
}
