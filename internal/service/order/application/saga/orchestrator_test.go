package saga

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"supplyboost/internal/service/order/domain"
	"supplyboost/internal/service/order/domain/port"
)

// memRepo 是带乐观锁语义的内存仓储。
type memRepo struct {
	mu     sync.Mutex
	orders map[uint64]*domain.Order

	// forcedConflicts 让接下来 n 次 Save 返回版本冲突，模拟并发提交
	forcedConflicts int
}

func newMemRepo() *memRepo {
	return &memRepo{orders: make(map[uint64]*domain.Order)}
}

func (r *memRepo) put(order *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
}

func (r *memRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (r *memRepo) FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.OrderNumber == orderNumber {
			cp := *order
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *memRepo) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forcedConflicts > 0 {
		r.forcedConflicts--
		return domain.ErrVersionConflict
	}
	stored, ok := r.orders[order.ID]
	if ok && stored.Version != order.Version {
		return domain.ErrVersionConflict
	}
	order.Version++
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *memRepo) FindByStatus(ctx context.Context, status domain.Status, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, order := range r.orders {
		if order.Status == status && len(out) < limit {
			cp := *order
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeShipping struct {
	mu       sync.Mutex
	requests []port.ShipmentRequest
	err      error
}

func (f *fakeShipping) CreateShipment(ctx context.Context, req port.ShipmentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeShipping) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeInventory struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeInventory) ReleaseReservation(ctx context.Context, orderID uint64, orderNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeInventory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu           sync.Mutex
	created      []domain.OrderCreatedEvent
	statusEvents []domain.OrderStatusChangedEvent
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, event domain.OrderCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, event)
	return nil
}

func (f *fakePublisher) PublishStatusChanged(ctx context.Context, event domain.OrderStatusChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusEvents = append(f.statusEvents, event)
	return nil
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeDedup() *fakeDedup { return &fakeDedup{seen: make(map[string]bool)} }

func (f *fakeDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.seen[eventID], nil
}

func (f *fakeDedup) MarkProcessed(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.seen[eventID] = true
	return nil
}

type fixture struct {
	repo      *memRepo
	shipping  *fakeShipping
	inventory *fakeInventory
	publisher *fakePublisher
	dedup     *fakeDedup
	saga      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      newMemRepo(),
		shipping:  &fakeShipping{},
		inventory: &fakeInventory{},
		publisher: &fakePublisher{},
		dedup:     newFakeDedup(),
	}
	f.saga = NewOrchestrator(f.repo, f.shipping, f.inventory, f.publisher, f.dedup,
		noop.NewTracerProvider().Tracer("test"), time.Second)
	return f
}

// seedOrder 放入一张处于指定状态的订单。
func (f *fixture) seedOrder(t *testing.T, id uint64, status domain.Status) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("ORD-20260901-00001", 42, "Alice", "alice@example.com", "555-0100",
		domain.Address{Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US"},
		[]domain.OrderItem{
			{ProductID: 1, Name: "keyboard", Quantity: 2, UnitPrice: decimal.RequireFromString("75.00")},
			{ProductID: 2, Name: "mouse", Quantity: 1, UnitPrice: decimal.RequireFromString("50.00")},
		})
	require.NoError(t, err)
	order.ID = id
	order.Version = 1
	order.Status = status
	f.repo.put(order)
	return order
}

func paymentEvent(eventID, status string) *domain.PaymentProcessedEvent {
	return &domain.PaymentProcessedEvent{
		EventID:       eventID,
		OrderID:       1,
		OrderNumber:   "ORD-20260901-00001",
		PaymentNumber: "PAY-1",
		PaymentMethod: "CREDIT_CARD",
		Status:        status,
		Amount:        decimal.RequireFromString("200.00"),
		EventTime:     time.Now().UTC(),
	}
}

func shipmentEvent(eventID string) *domain.ShipmentCreatedEvent {
	return &domain.ShipmentCreatedEvent{
		EventID:        eventID,
		OrderID:        1,
		OrderNumber:    "ORD-20260901-00001",
		ShipmentNumber: "SHP-1",
		TrackingNumber: "TRK-1",
		Carrier:        "UPS",
		EventTime:      time.Now().UTC(),
	}
}

func TestPaymentSucceededConfirmsAndInitiatesShipment(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusPaymentPending)

	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1", domain.PaymentSucceeded)))

	order, err := f.repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaymentConfirmed, order.Status)
	assert.Equal(t, "PAY-1", order.PaymentRef)

	require.Equal(t, 1, f.shipping.calls())
	req := f.shipping.requests[0]
	assert.Equal(t, "ORD-20260901-00001", req.OrderNumber)
	assert.Equal(t, "200.00", req.DeclaredValue)
	assert.Equal(t, "Alice", req.RecipientName)

	require.Len(t, f.publisher.statusEvents, 1)
	assert.Equal(t, domain.StatusPaymentPending, f.publisher.statusEvents[0].PreviousStatus)
	assert.Equal(t, domain.StatusPaymentConfirmed, f.publisher.statusEvents[0].NewStatus)
}

func TestDuplicatePaymentEventIsAbsorbed(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusPaymentPending)

	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1", domain.PaymentSucceeded)))
	// 同一 eventId 重投：dedup 缓存短路
	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1", domain.PaymentSucceeded)))
	// broker 重投可能带新的消费上下文；换个 eventId 走状态守卫
	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1b", domain.PaymentSucceeded)))

	assert.Equal(t, 1, f.shipping.calls(), "shipment must be initiated exactly once")

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusPaymentConfirmed, order.Status)
}

func TestDedupOutageFallsBackToStatusGuard(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusPaymentPending)
	f.dedup.err = errors.New("redis down")

	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1", domain.PaymentSucceeded)))
	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1", domain.PaymentSucceeded)))

	assert.Equal(t, 1, f.shipping.calls())
}

func TestPaymentBeforeInitiationIsRejected(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusCreated)

	err := f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1", domain.PaymentSucceeded))
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err), "out-of-order event must be a permanent rejection")

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusCreated, order.Status, "rejected event must not change state")
}

func TestPaymentEventForUnknownOrderIsFatal(t *testing.T) {
	f := newFixture(t)

	err := f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1", domain.PaymentSucceeded))
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
}

func TestUnknownPaymentStatusIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusPaymentPending)

	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1", "MAYBE")))

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusPaymentPending, order.Status)
	assert.Equal(t, 0, f.shipping.calls())
}

func TestPaymentFailedCompensatesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusPaymentPending)

	evt := paymentEvent("evt-1", domain.PaymentFailed)
	evt.FailureReason = "card declined"

	// 至少一次投递语义下连发三次，补偿只允许执行一次
	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), evt))
	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-2", domain.PaymentFailed)))
	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-3", domain.PaymentFailed)))

	assert.Equal(t, 1, f.inventory.count(), "inventory release must run exactly once")

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusPaymentFailed, order.Status)
	assert.Equal(t, 0, f.shipping.calls())
}

func TestCompensationFailureStillAcksEvent(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusPaymentPending)
	f.inventory.err = errors.New("inventory unreachable")

	// 补偿失败走资金一致性告警，不能让事件无限重投
	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1", domain.PaymentFailed)))

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusPaymentFailed, order.Status)
}

func TestShippingFailureParksOrderAsReadyToShip(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusPaymentPending)
	f.shipping.err = errors.New("shipping service down")

	// 下游失败不是消费失败：本地流转已提交，事件应被确认
	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1", domain.PaymentSucceeded)))

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusReadyToShip, order.Status)
}

func TestShipmentCreatedMovesOrderToShipped(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusPaymentConfirmed)

	require.NoError(t, f.saga.HandleShipmentCreated(context.Background(), shipmentEvent("evt-s1")))

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusShipped, order.Status)
	assert.Equal(t, "SHP-1", order.ShipmentRef)
	assert.Equal(t, "TRK-1", order.TrackingNumber)
	require.NotNil(t, order.ShippedAt)

	// 重投（新 eventId）被状态守卫吸收
	require.NoError(t, f.saga.HandleShipmentCreated(context.Background(), shipmentEvent("evt-s2")))
	again, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, order.Version, again.Version, "replay must not write")
}

func TestShipmentFromHoldingStateMovesToShipped(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusReadyToShip)

	require.NoError(t, f.saga.HandleShipmentCreated(context.Background(), shipmentEvent("evt-s1")))

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusShipped, order.Status)
}

func TestShipmentBeforePaymentConfirmationIsRejected(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusPaymentPending)

	err := f.saga.HandleShipmentCreated(context.Background(), shipmentEvent("evt-s1"))
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusPaymentPending, order.Status)
}

func TestVersionConflictRetriesUntilSuccess(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusPaymentPending)
	f.repo.forcedConflicts = 2

	require.NoError(t, f.saga.HandlePaymentProcessed(context.Background(), paymentEvent("evt-1", domain.PaymentSucceeded)))

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusPaymentConfirmed, order.Status)
}

func TestCancelRules(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusPaymentPending)

	require.NoError(t, f.saga.Cancel(context.Background(), "ORD-20260901-00001", "changed my mind"))
	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusCancelled, order.Status)

	// 重复取消是 no-op
	require.NoError(t, f.saga.Cancel(context.Background(), "ORD-20260901-00001", "again"))
}

func TestCancelRejectedOnceShipped(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusShipped)

	err := f.saga.Cancel(context.Background(), "ORD-20260901-00001", "too late")
	require.Error(t, err)
	assert.True(t, domain.IsIllegalTransition(err))

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusShipped, order.Status)
}

func TestDeliveredAndRefundAreIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, 1, domain.StatusShipped)

	require.NoError(t, f.saga.MarkDelivered(context.Background(), "ORD-20260901-00001"))
	require.NoError(t, f.saga.MarkDelivered(context.Background(), "ORD-20260901-00001"))

	order, _ := f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusDelivered, order.Status)

	require.NoError(t, f.saga.Refund(context.Background(), "ORD-20260901-00001", "damaged in transit"))
	require.NoError(t, f.saga.Refund(context.Background(), "ORD-20260901-00001", "damaged in transit"))

	order, _ = f.repo.FindByID(context.Background(), 1)
	assert.Equal(t, domain.StatusRefunded, order.Status)
}
