package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// InvoiceStatus 是发票的生命周期状态。状态同时充当结算序列的断点：
// 重投的 shipment.created 从发票当前状态续跑，而不是从头重来。
type InvoiceStatus string

const (
	InvoiceDraft  InvoiceStatus = "DRAFT"
	InvoiceIssued InvoiceStatus = "ISSUED"
	InvoicePaid   InvoiceStatus = "PAID"
	InvoiceVoided InvoiceStatus = "VOIDED"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvalidInvoice  = errors.New("invalid invoice")
)

// IllegalInvoiceTransitionError 表示发票状态流转违规。
type IllegalInvoiceTransitionError struct {
	InvoiceNumber string
	From, To      InvoiceStatus
}

func (e *IllegalInvoiceTransitionError) Error() string {
	return fmt.Sprintf("invoice %s: illegal transition %s -> %s", e.InvoiceNumber, e.From, e.To)
}

// IsFatal 判定重试无益的错误：流转违规重投多少次都违规，
// 结算时发票缺失是数据不一致，聚合不存在靠重试变不出来。
func IsFatal(err error) bool {
	var illegal *IllegalInvoiceTransitionError
	return errors.As(err, &illegal) || errors.Is(err, ErrInvoiceNotFound)
}

// Invoice 是发票聚合根，一张订单对应一张发票。
type Invoice struct {
	ID             uint64
	InvoiceNumber  string
	OrderID        uint64
	OrderNumber    string
	ShipmentNumber string
	PaymentNumber  string

	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	Currency    string

	Status   InvoiceStatus
	IssuedAt *time.Time
	PaidAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewInvoice 按支付金额和税率构造草稿发票。
// 支付金额即商品净额，税在其上另计：tax = subtotal × rate，total = subtotal + tax。
func NewInvoice(invoiceNumber string, orderID uint64, orderNumber, paymentNumber string,
	subtotal decimal.Decimal, taxRate decimal.Decimal, currency string) (*Invoice, error) {
	if orderID == 0 || orderNumber == "" {
		return nil, errors.Wrap(ErrInvalidInvoice, "order reference is required")
	}
	if subtotal.IsNegative() {
		return nil, errors.Wrap(ErrInvalidInvoice, "subtotal must not be negative")
	}
	taxAmount := subtotal.Mul(taxRate).Round(2)
	now := time.Now().UTC()
	return &Invoice{
		InvoiceNumber: invoiceNumber,
		OrderID:       orderID,
		OrderNumber:   orderNumber,
		PaymentNumber: paymentNumber,
		Subtotal:      subtotal,
		TaxAmount:     taxAmount,
		TotalAmount:   subtotal.Add(taxAmount),
		Currency:      currency,
		Status:        InvoiceDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// AssociateShipment 把运单号挂到发票上，只允许在草稿态做。
func (inv *Invoice) AssociateShipment(shipmentNumber string) error {
	if inv.Status != InvoiceDraft {
		// 已关联过同一运单的重放是无害的
		if inv.ShipmentNumber == shipmentNumber {
			return nil
		}
		return &IllegalInvoiceTransitionError{InvoiceNumber: inv.InvoiceNumber, From: inv.Status, To: inv.Status}
	}
	inv.ShipmentNumber = shipmentNumber
	inv.UpdatedAt = time.Now().UTC()
	return nil
}

// Issue 开具发票。
func (inv *Invoice) Issue() error {
	if inv.Status != InvoiceDraft {
		return &IllegalInvoiceTransitionError{InvoiceNumber: inv.InvoiceNumber, From: inv.Status, To: InvoiceIssued}
	}
	now := time.Now().UTC()
	inv.Status = InvoiceIssued
	inv.IssuedAt = &now
	inv.UpdatedAt = now
	return nil
}

// MarkPaid 核销发票。
func (inv *Invoice) MarkPaid() error {
	if inv.Status != InvoiceIssued {
		return &IllegalInvoiceTransitionError{InvoiceNumber: inv.InvoiceNumber, From: inv.Status, To: InvoicePaid}
	}
	now := time.Now().UTC()
	inv.Status = InvoicePaid
	inv.PaidAt = &now
	inv.UpdatedAt = now
	return nil
}

// Void 作废发票，退款路径使用。
func (inv *Invoice) Void() error {
	if inv.Status == InvoiceVoided {
		return nil
	}
	now := time.Now().UTC()
	inv.Status = InvoiceVoided
	inv.UpdatedAt = now
	return nil
}
