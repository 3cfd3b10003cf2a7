package application

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

	"supplyboost/internal/service/order/application/saga"
	"supplyboost/internal/service/order/domain"
	"supplyboost/internal/service/order/domain/port"
)

type sweepRepo struct {
	mu     sync.Mutex
	orders map[uint64]*domain.Order
}

func (r *sweepRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (r *sweepRepo) FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return nil, domain.ErrOrderNotFound
}

func (r *sweepRepo) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *sweepRepo) FindByStatus(ctx context.Context, status domain.Status, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.Status == status && len(out) < limit {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

type flakyShipping struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *flakyShipping) CreateShipment(ctx context.Context, req port.ShipmentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *flakyShipping) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type nopInventory struct{}

func (nopInventory) ReleaseReservation(ctx context.Context, orderID uint64, orderNumber string) error {
	return nil
}

type nopPublisher struct{}

func (nopPublisher) PublishOrderCreated(ctx context.Context, event domain.OrderCreatedEvent) error {
	return nil
}
func (nopPublisher) PublishStatusChanged(ctx context.Context, event domain.OrderStatusChangedEvent) error {
	return nil
}

func newParkedOrder(t *testing.T, id uint64) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("ORD-20260901-00002", 7, "Bob", "bob@example.com", "555-0101",
		domain.Address{Line1: "2 Oak Ave", City: "Portland", State: "OR", PostalCode: "97201", Country: "US"},
		[]domain.OrderItem{{ProductID: 3, Name: "monitor", Quantity: 1, UnitPrice: decimal.RequireFromString("320.00")}})
	require.NoError(t, err)
	order.ID = id
	order.Version = 3
	order.Status = domain.StatusReadyToShip
	return order
}

func TestSweeperRetriesUpToMaxAttempts(t *testing.T) {
	repo := &sweepRepo{orders: make(map[uint64]*domain.Order)}
	shipping := &flakyShipping{err: errors.New("still down")}
	tracer := noop.NewTracerProvider().Tracer("test")

	orchestrator := saga.NewOrchestrator(repo, shipping, nopInventory{}, nopPublisher{}, nil, tracer, time.Second)
	sweeper := NewSweeper(repo, orchestrator, tracer, time.Minute, 3, 50)

	order := newParkedOrder(t, 9)
	repo.orders[order.ID] = order

	// 额度内每轮都重放一次
	for i := 0; i < 3; i++ {
		sweeper.sweep(context.Background())
	}
	assert.Equal(t, 3, shipping.count())

	// 额度耗尽后只告警，不再打下游
	sweeper.sweep(context.Background())
	sweeper.sweep(context.Background())
	assert.Equal(t, 3, shipping.count())
}

func TestSweeperForgetsDepartedOrders(t *testing.T) {
	repo := &sweepRepo{orders: make(map[uint64]*domain.Order)}
	shipping := &flakyShipping{}
	tracer := noop.NewTracerProvider().Tracer("test")

	orchestrator := saga.NewOrchestrator(repo, shipping, nopInventory{}, nopPublisher{}, nil, tracer, time.Second)
	sweeper := NewSweeper(repo, orchestrator, tracer, time.Minute, 3, 50)

	order := newParkedOrder(t, 9)
	repo.orders[order.ID] = order

	sweeper.sweep(context.Background())
	assert.Equal(t, 1, shipping.count())
	assert.Equal(t, 1, sweeper.attempts[order.ID])

	// 发货回执落账，订单离开兜底态后计数被回收
	repo.mu.Lock()
	repo.orders[order.ID].Status = domain.StatusShipped
	repo.mu.Unlock()

	sweeper.sweep(context.Background())
	_, tracked := sweeper.attempts[order.ID]
	assert.False(t, tracked)
}
