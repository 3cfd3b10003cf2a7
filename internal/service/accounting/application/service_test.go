package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"supplyboost/internal/service/accounting/domain"
)

type memInvoices struct {
	mu       sync.Mutex
	byID     map[uint64]*domain.Invoice
	nextID   uint64
	saveErrs int
}

func newMemInvoices() *memInvoices {
	return &memInvoices{byID: make(map[uint64]*domain.Invoice), nextID: 1}
}

func (r *memInvoices) FindByOrderID(ctx context.Context, orderID uint64) (*domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.byID {
		if inv.OrderID == orderID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrInvoiceNotFound
}

func (r *memInvoices) FindByNumber(ctx context.Context, invoiceNumber string) (*domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.byID {
		if inv.InvoiceNumber == invoiceNumber {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrInvoiceNotFound
}

func (r *memInvoices) Save(ctx context.Context, invoice *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if invoice.ID == 0 {
		invoice.ID = r.nextID
		r.nextID++
	}
	cp := *invoice
	r.byID[invoice.ID] = &cp
	return nil
}

type memRevenues struct {
	mu      sync.Mutex
	entries []*domain.RevenueRecognition
	failOn  domain.RecognitionType // 入账该科目时报错一次
}

func (r *memRevenues) Exists(ctx context.Context, invoiceID uint64, typ domain.RecognitionType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.InvoiceID == invoiceID && e.Type == typ {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRevenues) Record(ctx context.Context, entry *domain.RevenueRecognition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == entry.Type {
		r.failOn = ""
		return assert.AnError
	}
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memRevenues) count(typ domain.RecognitionType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (r *memRevenues) amount(typ domain.RecognitionType) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, e := range r.entries {
		if e.Type == typ {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// inlineLock 直接执行临界区，测试里没有并发实例。
type inlineLock struct{ acquired int }

func (l *inlineLock) WithLock(ctx context.Context, resourceID string, fn func() error) error {
	l.acquired++
	return fn()
}

func newTestService(invoices *memInvoices, revenues *memRevenues, lock *inlineLock) *InvoiceService {
	return NewInvoiceService(invoices, revenues, lock,
		decimal.RequireFromString("0.20"), noop.NewTracerProvider().Tracer("test"))
}

func paymentEvt() *domain.PaymentProcessedEvent {
	return &domain.PaymentProcessedEvent{
		EventID:       "evt-p1",
		OrderID:       1,
		OrderNumber:   "ORD-1",
		PaymentNumber: "PAY-1",
		Status:        domain.PaymentSucceeded,
		Amount:        decimal.RequireFromString("200.00"),
		Currency:      "USD",
		EventTime:     time.Now().UTC(),
	}
}

func shipmentEvt() *domain.ShipmentCreatedEvent {
	return &domain.ShipmentCreatedEvent{
		EventID:        "evt-s1",
		ShipmentID:     5,
		ShipmentNumber: "SHP-1",
		OrderID:        1,
		OrderNumber:    "ORD-1",
		DeclaredValue:  decimal.RequireFromString("200.00"),
		Currency:       "USD",
		EventTime:      time.Now().UTC(),
	}
}

func TestPaymentSucceededCreatesDraftInvoiceOnce(t *testing.T) {
	invoices := newMemInvoices()
	svc := newTestService(invoices, &memRevenues{}, &inlineLock{})

	require.NoError(t, svc.HandlePaymentProcessed(context.Background(), paymentEvt()))
	require.NoError(t, svc.HandlePaymentProcessed(context.Background(), paymentEvt()))

	assert.Len(t, invoices.byID, 1)
	inv, err := invoices.FindByOrderID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceDraft, inv.Status)
	// 支付金额是净额，税率 0.20 另计
	assert.True(t, inv.Subtotal.Equal(decimal.RequireFromString("200.00")), "got %s", inv.Subtotal)
	assert.True(t, inv.TotalAmount.Equal(decimal.RequireFromString("240.00")), "got %s", inv.TotalAmount)
}

func TestFailedPaymentCreatesNoInvoice(t *testing.T) {
	invoices := newMemInvoices()
	svc := newTestService(invoices, &memRevenues{}, &inlineLock{})

	evt := paymentEvt()
	evt.Status = domain.PaymentFailed
	require.NoError(t, svc.HandlePaymentProcessed(context.Background(), evt))
	assert.Empty(t, invoices.byID)
}

func TestSettlementRunsFullSequence(t *testing.T) {
	invoices := newMemInvoices()
	revenues := &memRevenues{}
	lock := &inlineLock{}
	svc := newTestService(invoices, revenues, lock)

	require.NoError(t, svc.HandlePaymentProcessed(context.Background(), paymentEvt()))
	require.NoError(t, svc.HandleShipmentCreated(context.Background(), shipmentEvt()))

	inv, err := invoices.FindByOrderID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, inv.Status)
	assert.Equal(t, "SHP-1", inv.ShipmentNumber)
	require.NotNil(t, inv.IssuedAt)
	require.NotNil(t, inv.PaidAt)

	// 入账金额：商品收入 = 支付金额，税金 = 净额 × 税率
	assert.Equal(t, 1, revenues.count(domain.RecognitionProductSale))
	assert.True(t, revenues.amount(domain.RecognitionProductSale).Equal(decimal.RequireFromString("200.00")),
		"got %s", revenues.amount(domain.RecognitionProductSale))
	assert.Equal(t, 1, revenues.count(domain.RecognitionTaxCollected))
	assert.True(t, revenues.amount(domain.RecognitionTaxCollected).Equal(decimal.RequireFromString("40.00")),
		"got %s", revenues.amount(domain.RecognitionTaxCollected))
	assert.Equal(t, 1, lock.acquired)
}

func TestSettlementReplayIsNoOp(t *testing.T) {
	invoices := newMemInvoices()
	revenues := &memRevenues{}
	svc := newTestService(invoices, revenues, &inlineLock{})

	require.NoError(t, svc.HandlePaymentProcessed(context.Background(), paymentEvt()))
	require.NoError(t, svc.HandleShipmentCreated(context.Background(), shipmentEvt()))
	require.NoError(t, svc.HandleShipmentCreated(context.Background(), shipmentEvt()))
	require.NoError(t, svc.HandleShipmentCreated(context.Background(), shipmentEvt()))

	// 重放不会产生重复分录，金额也不会被累加
	assert.Equal(t, 1, revenues.count(domain.RecognitionProductSale))
	assert.True(t, revenues.amount(domain.RecognitionProductSale).Equal(decimal.RequireFromString("200.00")))
	assert.Equal(t, 1, revenues.count(domain.RecognitionTaxCollected))
	assert.True(t, revenues.amount(domain.RecognitionTaxCollected).Equal(decimal.RequireFromString("40.00")))
}

func TestSettlementResumesFromBreakpoint(t *testing.T) {
	invoices := newMemInvoices()
	revenues := &memRevenues{failOn: domain.RecognitionTaxCollected}
	svc := newTestService(invoices, revenues, &inlineLock{})

	require.NoError(t, svc.HandlePaymentProcessed(context.Background(), paymentEvt()))

	// 第一次结算断在税金入账：商品收入已入账，发票停在 ISSUED
	require.Error(t, svc.HandleShipmentCreated(context.Background(), shipmentEvt()))
	inv, _ := invoices.FindByOrderID(context.Background(), 1)
	assert.Equal(t, domain.InvoiceIssued, inv.Status)
	assert.Equal(t, 1, revenues.count(domain.RecognitionProductSale))
	assert.Equal(t, 0, revenues.count(domain.RecognitionTaxCollected))

	// 重投从断点续跑：跳过已入账科目，补上税金并核销
	require.NoError(t, svc.HandleShipmentCreated(context.Background(), shipmentEvt()))
	inv, _ = invoices.FindByOrderID(context.Background(), 1)
	assert.Equal(t, domain.InvoicePaid, inv.Status)
	assert.Equal(t, 1, revenues.count(domain.RecognitionProductSale))
	assert.Equal(t, 1, revenues.count(domain.RecognitionTaxCollected))
}

func TestSettlementWithoutInvoiceIsFatal(t *testing.T) {
	invoices := newMemInvoices()
	revenues := &memRevenues{}
	svc := newTestService(invoices, revenues, &inlineLock{})

	// 发票本该在支付成功时建好，缺失是数据不一致，重试修不好
	err := svc.HandleShipmentCreated(context.Background(), shipmentEvt())
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
	assert.Empty(t, invoices.byID)
	assert.Empty(t, revenues.entries)
}

func TestRefundVoidsInvoice(t *testing.T) {
	invoices := newMemInvoices()
	svc := newTestService(invoices, &memRevenues{}, &inlineLock{})

	require.NoError(t, svc.HandlePaymentProcessed(context.Background(), paymentEvt()))
	require.NoError(t, svc.HandleOrderStatusChanged(context.Background(), &domain.OrderStatusChangedEvent{
		EventID:     "evt-r1",
		OrderID:     1,
		OrderNumber: "ORD-1",
		NewStatus:   "REFUNDED",
		Reason:      "damaged in transit",
	}))

	inv, _ := invoices.FindByOrderID(context.Background(), 1)
	assert.Equal(t, domain.InvoiceVoided, inv.Status)

	// 非退款状态与未知订单都不动账
	require.NoError(t, svc.HandleOrderStatusChanged(context.Background(), &domain.OrderStatusChangedEvent{
		OrderID: 99, OrderNumber: "ORD-99", NewStatus: "REFUNDED",
	}))
	require.NoError(t, svc.HandleOrderStatusChanged(context.Background(), &domain.OrderStatusChangedEvent{
		OrderID: 1, OrderNumber: "ORD-1", NewStatus: "SHIPPED",
	}))
}
