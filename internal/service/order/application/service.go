package application

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/pkg/metrics"
	"supplyboost/internal/service/order/application/saga"
	"supplyboost/internal/service/order/domain"
	"supplyboost/internal/service/order/domain/port"
)

// OrderService 是订单服务的应用层入口：下单、取消、查询。
// 事件消费走 saga.Orchestrator，这里只编排客户端发起的动作。
type OrderService struct {
	repo      domain.OrderRepository
	publisher port.EventPublisher
	saga      *saga.Orchestrator
	tracer    trace.Tracer
}

func NewOrderService(repo domain.OrderRepository, publisher port.EventPublisher, orchestrator *saga.Orchestrator, tracer trace.Tracer) *OrderService {
	return &OrderService{repo: repo, publisher: publisher, saga: orchestrator, tracer: tracer}
}

// CreateOrder 落库新订单并发布 order.created，随后把订单推进到 PAYMENT_PENDING。
// order.created 是支付侧创建支付单的触发器。
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()

	order, err := domain.NewOrder(
		generateOrderNumber(),
		req.UserID,
		req.CustomerName, req.CustomerEmail, req.CustomerPhone,
		req.toDomainAddress(),
		req.toDomainItems(),
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("order.number", order.OrderNumber))

	if err := s.repo.Save(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist new order")
		return nil, err
	}

	evt := domain.OrderCreatedEvent{
		EventID:       uuid.New().String(),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		Items:         itemEvents(order),
		EventTime:     time.Now().UTC(),
	}
	if err := s.publisher.PublishOrderCreated(ctx, evt); err != nil {
		// 事件没发出去就不能宣称支付已发起，订单停留在 CREATED 可由客户端重试
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish order.created")
		return nil, err
	}

	if err := order.MarkPaymentPending(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}
	metrics.SagaTransitions.WithLabelValues(string(domain.StatusCreated), string(domain.StatusPaymentPending)).Inc()

	logger.Ctx(ctx).Info().
		Str("order_number", order.OrderNumber).
		Str("total_amount", order.TotalAmount.String()).
		Msg("order created, awaiting payment")
	return toOrderResponse(order), nil
}

// CancelOrder 转发到 saga 的取消入口。
func (s *OrderService) CancelOrder(ctx context.Context, orderNumber, reason string) error {
	return s.saga.Cancel(ctx, orderNumber, reason)
}

// MarkDelivered 承运商回调签收，转发给 saga。
func (s *OrderService) MarkDelivered(ctx context.Context, orderNumber string) error {
	return s.saga.MarkDelivered(ctx, orderNumber)
}

// RefundOrder 售后退款入口，转发给 saga。
func (s *OrderService) RefundOrder(ctx context.Context, orderNumber, reason string) error {
	return s.saga.Refund(ctx, orderNumber, reason)
}

// GetOrder 按订单号查询。
func (s *OrderService) GetOrder(ctx context.Context, orderNumber string) (*OrderResponse, error) {
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return toOrderResponse(order), nil
}

func itemEvents(order *domain.Order) []domain.OrderItemEvent {
	events := make([]domain.OrderItemEvent, 0, len(order.Items))
	for _, it := range order.Items {
		events = append(events, domain.OrderItemEvent{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return events
}

// generateOrderNumber 生成 ORD-yyyymmdd-xxxxx 形式的业务单号。
func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%05d", time.Now().UTC().Format("20060102"), rand.Intn(90000)+10000)
}
