package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"supplyboost/internal/service/accounting/domain"
)

// InvoiceModel 是发票的 GORM 映射，order_id 唯一。
type InvoiceModel struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	InvoiceNumber  string `gorm:"type:varchar(32);uniqueIndex;not null"`
	OrderID        uint64 `gorm:"uniqueIndex;not null"`
	OrderNumber    string `gorm:"type:varchar(32);index;not null"`
	ShipmentNumber string `gorm:"type:varchar(32)"`
	PaymentNumber  string `gorm:"type:varchar(32)"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(10,2)"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(10,2)"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(10,2)"`
	Currency       string          `gorm:"type:varchar(8)"`
	Status         string          `gorm:"type:varchar(16);not null"`
	IssuedAt       *time.Time
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (InvoiceModel) TableName() string { return "invoices" }

// RevenueRecognitionModel 是收入确认分录的映射。
// (invoice_id, type) 复合唯一索引是重复入账的数据库级防线。
type RevenueRecognitionModel struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	InvoiceID    uint64          `gorm:"uniqueIndex:idx_invoice_type;not null"`
	Type         string          `gorm:"type:varchar(16);uniqueIndex:idx_invoice_type;not null"`
	OrderNumber  string          `gorm:"type:varchar(32);index"`
	Amount       decimal.Decimal `gorm:"type:decimal(10,2)"`
	Currency     string          `gorm:"type:varchar(8)"`
	RecognizedAt time.Time
}

func (RevenueRecognitionModel) TableName() string { return "revenue_recognitions" }

// GormInvoiceRepository 实现 domain.InvoiceRepository。
type GormInvoiceRepository struct {
	db *gorm.DB
}

func NewGormInvoiceRepository(db *gorm.DB) (*GormInvoiceRepository, error) {
	if err := db.AutoMigrate(&InvoiceModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate invoices")
	}
	return &GormInvoiceRepository{db: db}, nil
}

func (r *GormInvoiceRepository) FindByOrderID(ctx context.Context, orderID uint64) (*domain.Invoice, error) {
	var model InvoiceModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, errors.Wrap(err, "find invoice by order id")
	}
	return toDomainInvoice(&model), nil
}

func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, invoiceNumber string) (*domain.Invoice, error) {
	var model InvoiceModel
	if err := r.db.WithContext(ctx).Where("invoice_number = ?", invoiceNumber).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, errors.Wrap(err, "find invoice by number")
	}
	return toDomainInvoice(&model), nil
}

func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *domain.Invoice) error {
	model := toInvoiceModel(invoice)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return errors.Wrap(err, "save invoice")
	}
	invoice.ID = model.ID
	return nil
}

// GormRevenueRepository 实现 domain.RevenueRepository。
type GormRevenueRepository struct {
	db *gorm.DB
}

func NewGormRevenueRepository(db *gorm.DB) (*GormRevenueRepository, error) {
	if err := db.AutoMigrate(&RevenueRecognitionModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate revenue recognitions")
	}
	return &GormRevenueRepository{db: db}, nil
}

func (r *GormRevenueRepository) Exists(ctx context.Context, invoiceID uint64, typ domain.RecognitionType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&RevenueRecognitionModel{}).
		Where("invoice_id = ? AND type = ?", invoiceID, string(typ)).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "count revenue recognitions")
	}
	return count > 0, nil
}

func (r *GormRevenueRepository) Record(ctx context.Context, entry *domain.RevenueRecognition) error {
	model := &RevenueRecognitionModel{
		InvoiceID:    entry.InvoiceID,
		Type:         string(entry.Type),
		OrderNumber:  entry.OrderNumber,
		Amount:       entry.Amount,
		Currency:     entry.Currency,
		RecognizedAt: entry.RecognizedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(err, "record revenue recognition")
	}
	entry.ID = model.ID
	return nil
}

func toInvoiceModel(inv *domain.Invoice) *InvoiceModel {
	return &InvoiceModel{
		ID:             inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		OrderID:        inv.OrderID,
		OrderNumber:    inv.OrderNumber,
		ShipmentNumber: inv.ShipmentNumber,
		PaymentNumber:  inv.PaymentNumber,
		Subtotal:       inv.Subtotal,
		TaxAmount:      inv.TaxAmount,
		TotalAmount:    inv.TotalAmount,
		Currency:       inv.Currency,
		Status:         string(inv.Status),
		IssuedAt:       inv.IssuedAt,
		PaidAt:         inv.PaidAt,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func toDomainInvoice(m *InvoiceModel) *domain.Invoice {
	return &domain.Invoice{
		ID:             m.ID,
		InvoiceNumber:  m.InvoiceNumber,
		OrderID:        m.OrderID,
		OrderNumber:    m.OrderNumber,
		ShipmentNumber: m.ShipmentNumber,
		PaymentNumber:  m.PaymentNumber,
		Subtotal:       m.Subtotal,
		TaxAmount:      m.TaxAmount,
		TotalAmount:    m.TotalAmount,
		Currency:       m.Currency,
		Status:         domain.InvoiceStatus(m.Status),
		IssuedAt:       m.IssuedAt,
		PaidAt:         m.PaidAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
