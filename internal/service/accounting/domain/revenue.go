package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecognitionType 区分收入确认的科目。
type RecognitionType string

const (
	RecognitionProductSale  RecognitionType = "PRODUCT_SALE"
	RecognitionTaxCollected RecognitionType = "TAX_COLLECTED"
)

// RevenueRecognition 是收入确认分录。(invoice_id, type) 唯一，
// 结算序列重放时靠这条约束保证每个科目只入账一次。
type RevenueRecognition struct {
	ID           uint64
	InvoiceID    uint64
	OrderNumber  string
	Type         RecognitionType
	Amount       decimal.Decimal
	Currency     string
	RecognizedAt time.Time
}

func NewRevenueRecognition(invoiceID uint64, orderNumber string, typ RecognitionType, amount decimal.Decimal, currency string) *RevenueRecognition {
	return &RevenueRecognition{
		InvoiceID:    invoiceID,
		OrderNumber:  orderNumber,
		Type:         typ,
		Amount:       amount,
		Currency:     currency,
		RecognizedAt: time.Now().UTC(),
	}
}
