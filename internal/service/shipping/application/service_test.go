package application

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"supplyboost/internal/service/shipping/domain"
)

type memShipments struct {
	mu     sync.Mutex
	byID   map[uint64]*domain.Shipment
	nextID uint64
}

func newMemShipments() *memShipments {
	return &memShipments{byID: make(map[uint64]*domain.Shipment), nextID: 1}
}

func (r *memShipments) FindByOrderID(ctx context.Context, orderID uint64) (*domain.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.OrderID == orderID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrShipmentNotFound
}

func (r *memShipments) FindByNumber(ctx context.Context, shipmentNumber string) (*domain.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.ShipmentNumber == shipmentNumber {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrShipmentNotFound
}

func (r *memShipments) Save(ctx context.Context, shipment *domain.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	shipment.ID = r.nextID
	r.nextID++
	cp := *shipment
	r.byID[shipment.ID] = &cp
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ShipmentCreatedEvent
}

func (p *recordingPublisher) PublishShipmentCreated(ctx context.Context, event domain.ShipmentCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func createReq() *CreateShipmentRequest {
	return &CreateShipmentRequest{
		OrderID:       1,
		OrderNumber:   "ORD-1",
		UserID:        42,
		RecipientName: "Alice",
		AddressLine1:  "1 Main St",
		City:          "Springfield",
		State:         "IL",
		PostalCode:    "62701",
		Country:       "US",
		DeclaredValue: "200.00",
		Currency:      "USD",
	}
}

func TestCreateShipmentPublishesEvent(t *testing.T) {
	repo := newMemShipments()
	publisher := &recordingPublisher{}
	svc := NewShipmentService(repo, publisher, noop.NewTracerProvider().Tracer("test"))

	resp, err := svc.CreateShipment(context.Background(), createReq())
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", resp.OrderNumber)
	assert.NotEmpty(t, resp.ShipmentNumber)
	assert.NotEmpty(t, resp.TrackingNumber)
	assert.Equal(t, string(domain.ShipmentShipped), resp.Status)

	require.Len(t, publisher.events, 1)
	evt := publisher.events[0]
	assert.Equal(t, resp.ShipmentNumber, evt.ShipmentNumber)
	assert.Equal(t, uint64(1), evt.OrderID)
	assert.NotEmpty(t, evt.EventID)
	assert.True(t, evt.DeclaredValue.Equal(decimal.RequireFromString("200.00")), "got %s", evt.DeclaredValue)
}

func TestCreateShipmentIsIdempotentPerOrder(t *testing.T) {
	repo := newMemShipments()
	publisher := &recordingPublisher{}
	svc := NewShipmentService(repo, publisher, noop.NewTracerProvider().Tracer("test"))

	first, err := svc.CreateShipment(context.Background(), createReq())
	require.NoError(t, err)

	// 编排器或兜底扫描重放同一订单的创建请求
	second, err := svc.CreateShipment(context.Background(), createReq())
	require.NoError(t, err)

	assert.Equal(t, first.ShipmentNumber, second.ShipmentNumber)
	assert.Equal(t, first.TrackingNumber, second.TrackingNumber)
	assert.Len(t, repo.byID, 1)
	assert.Len(t, publisher.events, 1, "replay must not publish a second event")
}

func TestCreateShipmentValidatesRequest(t *testing.T) {
	svc := NewShipmentService(newMemShipments(), &recordingPublisher{}, noop.NewTracerProvider().Tracer("test"))

	req := createReq()
	req.OrderID = 0
	_, err := svc.CreateShipment(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidShipment)

	req = createReq()
	req.RecipientName = ""
	_, err = svc.CreateShipment(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidShipment)
}
