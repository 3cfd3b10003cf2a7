package domain

import "context"

// InvoiceRepository 是发票的持久化出端口。
type InvoiceRepository interface {
	FindByOrderID(ctx context.Context, orderID uint64) (*Invoice, error)
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)
	// Save 新建或整单更新。order_id 唯一约束兜底并发重复创建。
	Save(ctx context.Context, invoice *Invoice) error
}

// RevenueRepository 是收入确认分录的出端口。
type RevenueRepository interface {
	// Exists 判断该发票在某个科目下是否已入账。
	Exists(ctx context.Context, invoiceID uint64, typ RecognitionType) (bool, error)
	Record(ctx context.Context, entry *RevenueRecognition) error
}
