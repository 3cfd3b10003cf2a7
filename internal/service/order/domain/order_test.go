package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	order, err := NewOrder("ORD-20260901-00001", 42, "Alice", "alice@example.com", "555-0100",
		Address{Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US"},
		[]OrderItem{
			{ProductID: 1, Name: "keyboard", Quantity: 2, UnitPrice: decimal.RequireFromString("75.00")},
			{ProductID: 2, Name: "mouse", Quantity: 1, UnitPrice: decimal.RequireFromString("50.00")},
		})
	require.NoError(t, err)
	return order
}

func TestNewOrderComputesTotals(t *testing.T) {
	order := newTestOrder(t)

	assert.Equal(t, StatusCreated, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("200.00")), "got %s", order.TotalAmount)
	assert.True(t, order.Items[0].Subtotal.Equal(decimal.RequireFromString("150.00")))
	assert.True(t, order.Subtotal().Equal(order.TotalAmount))
}

func TestNewOrderValidation(t *testing.T) {
	_, err := NewOrder("", 42, "Alice", "", "", Address{}, []OrderItem{{ProductID: 1, Quantity: 1}})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrder("ORD-1", 0, "Alice", "", "", Address{}, []OrderItem{{ProductID: 1, Quantity: 1}})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrder("ORD-1", 42, "Alice", "", "", Address{}, nil)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestConfirmPaymentRequiresPendingState(t *testing.T) {
	order := newTestOrder(t)

	err := order.ConfirmPayment("PAY-1", "CREDIT_CARD")
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, StatusCreated, illegal.From)

	require.NoError(t, order.MarkPaymentPending())
	require.NoError(t, order.ConfirmPayment("PAY-1", "CREDIT_CARD"))
	assert.Equal(t, StatusPaymentConfirmed, order.Status)
	assert.Equal(t, "PAY-1", order.PaymentRef)
}

func TestMarkShippedRecordsReferences(t *testing.T) {
	order := newTestOrder(t)
	require.NoError(t, order.MarkPaymentPending())
	require.NoError(t, order.ConfirmPayment("PAY-1", "CREDIT_CARD"))

	shippedAt := time.Now().UTC()
	require.NoError(t, order.MarkShipped("SHP-1", "TRK-1", shippedAt))
	assert.Equal(t, StatusShipped, order.Status)
	assert.Equal(t, "SHP-1", order.ShipmentRef)
	assert.Equal(t, "TRK-1", order.TrackingNumber)
	require.NotNil(t, order.ShippedAt)
}

func TestCancelRejectedAfterShipment(t *testing.T) {
	order := newTestOrder(t)
	require.NoError(t, order.MarkPaymentPending())
	require.NoError(t, order.ConfirmPayment("PAY-1", "CREDIT_CARD"))
	require.NoError(t, order.MarkShipped("SHP-1", "TRK-1", time.Now().UTC()))

	err := order.Cancel()
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, StatusShipped, order.Status, "rejected cancel must not change state")

	// 已发货只能走退款
	require.NoError(t, order.Refund())
	assert.Equal(t, StatusRefunded, order.Status)
}

func TestReadyToShipIsRetryableHoldingState(t *testing.T) {
	order := newTestOrder(t)
	require.NoError(t, order.MarkPaymentPending())
	require.NoError(t, order.ConfirmPayment("PAY-1", "CREDIT_CARD"))
	require.NoError(t, order.MarkReadyToShip())

	// 兜底态既能继续发货也能取消
	assert.True(t, order.Status.CanTransitionTo(StatusShipped))
	assert.True(t, order.Status.Cancellable())
	require.NoError(t, order.MarkShipped("SHP-1", "TRK-1", time.Now().UTC()))
}
