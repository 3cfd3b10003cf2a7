package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvoiceAddsTaxOnTop(t *testing.T) {
	inv, err := NewInvoice("INV-20260901-00001", 1, "ORD-1", "PAY-1",
		decimal.RequireFromString("200.00"), decimal.RequireFromString("0.20"), "USD")
	require.NoError(t, err)

	// 支付金额即商品净额，税在其上另计
	assert.Equal(t, InvoiceDraft, inv.Status)
	assert.True(t, inv.Subtotal.Equal(decimal.RequireFromString("200.00")), "got %s", inv.Subtotal)
	assert.True(t, inv.TaxAmount.Equal(decimal.RequireFromString("40.00")), "got %s", inv.TaxAmount)
	assert.True(t, inv.TotalAmount.Equal(decimal.RequireFromString("240.00")), "got %s", inv.TotalAmount)
	// 价税合计不允许丢分
	assert.True(t, inv.Subtotal.Add(inv.TaxAmount).Equal(inv.TotalAmount))
}

func TestNewInvoiceValidation(t *testing.T) {
	_, err := NewInvoice("INV-1", 0, "", "", decimal.Zero, decimal.Zero, "USD")
	assert.ErrorIs(t, err, ErrInvalidInvoice)

	_, err = NewInvoice("INV-1", 1, "ORD-1", "", decimal.RequireFromString("-1"), decimal.Zero, "USD")
	assert.ErrorIs(t, err, ErrInvalidInvoice)
}

func TestInvoiceLifecycle(t *testing.T) {
	inv, err := NewInvoice("INV-1", 1, "ORD-1", "PAY-1",
		decimal.RequireFromString("120.00"), decimal.RequireFromString("0.20"), "USD")
	require.NoError(t, err)

	// 不能跳过开票直接核销
	err = inv.MarkPaid()
	var illegal *IllegalInvoiceTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.True(t, IsFatal(err))

	require.NoError(t, inv.AssociateShipment("SHP-1"))
	require.NoError(t, inv.Issue())
	require.NotNil(t, inv.IssuedAt)

	// 开票后不能再换运单
	err = inv.AssociateShipment("SHP-2")
	require.ErrorAs(t, err, &illegal)
	// 同一运单的重放无害
	require.NoError(t, inv.AssociateShipment("SHP-1"))

	require.NoError(t, inv.MarkPaid())
	assert.Equal(t, InvoicePaid, inv.Status)
	require.NotNil(t, inv.PaidAt)

	// 作废幂等
	require.NoError(t, inv.Void())
	require.NoError(t, inv.Void())
	assert.Equal(t, InvoiceVoided, inv.Status)
}
