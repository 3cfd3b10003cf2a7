package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"supplyboost/internal/service/shipping/domain"
)

// ShipmentModel 是运单的 GORM 映射。order_id 上的唯一索引
// 是幂等创建的最后一道闸。
type ShipmentModel struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	ShipmentNumber string `gorm:"type:varchar(32);uniqueIndex;not null"`
	OrderID        uint64 `gorm:"uniqueIndex;not null"`
	OrderNumber    string `gorm:"type:varchar(32);index;not null"`
	TrackingNumber string `gorm:"type:varchar(32);not null"`
	Carrier        string `gorm:"type:varchar(16);not null"`
	Status         string `gorm:"type:varchar(16);not null"`
	RecipientName  string `gorm:"type:varchar(128)"`
	AddressLine    string `gorm:"type:varchar(256)"`
	City           string `gorm:"type:varchar(64)"`
	PostalCode     string `gorm:"type:varchar(16)"`
	Country        string `gorm:"type:varchar(64)"`
	DeclaredValue  decimal.Decimal `gorm:"type:decimal(10,2)"`
	Currency       string          `gorm:"type:varchar(8)"`
	ShippedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ShipmentModel) TableName() string { return "shipments" }

// GormShipmentRepository 实现 domain.ShipmentRepository。
type GormShipmentRepository struct {
	db *gorm.DB
}

func NewGormShipmentRepository(db *gorm.DB) (*GormShipmentRepository, error) {
	if err := db.AutoMigrate(&ShipmentModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate shipments")
	}
	return &GormShipmentRepository{db: db}, nil
}

func (r *GormShipmentRepository) FindByOrderID(ctx context.Context, orderID uint64) (*domain.Shipment, error) {
	var model ShipmentModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, errors.Wrap(err, "find shipment by order id")
	}
	return toDomainShipment(&model), nil
}

func (r *GormShipmentRepository) FindByNumber(ctx context.Context, shipmentNumber string) (*domain.Shipment, error) {
	var model ShipmentModel
	if err := r.db.WithContext(ctx).Where("shipment_number = ?", shipmentNumber).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, errors.Wrap(err, "find shipment by number")
	}
	return toDomainShipment(&model), nil
}

func (r *GormShipmentRepository) Save(ctx context.Context, shipment *domain.Shipment) error {
	model := toShipmentModel(shipment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(err, "save shipment")
	}
	shipment.ID = model.ID
	return nil
}

func toShipmentModel(s *domain.Shipment) *ShipmentModel {
	return &ShipmentModel{
		ID:             s.ID,
		ShipmentNumber: s.ShipmentNumber,
		OrderID:        s.OrderID,
		OrderNumber:    s.OrderNumber,
		TrackingNumber: s.TrackingNumber,
		Carrier:        s.Carrier,
		Status:         string(s.Status),
		RecipientName:  s.RecipientName,
		AddressLine:    s.AddressLine,
		City:           s.City,
		PostalCode:     s.PostalCode,
		Country:        s.Country,
		DeclaredValue:  s.DeclaredValue,
		Currency:       s.Currency,
		ShippedAt:      s.ShippedAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func toDomainShipment(m *ShipmentModel) *domain.Shipment {
	return &domain.Shipment{
		ID:             m.ID,
		ShipmentNumber: m.ShipmentNumber,
		OrderID:        m.OrderID,
		OrderNumber:    m.OrderNumber,
		TrackingNumber: m.TrackingNumber,
		Carrier:        m.Carrier,
		Status:         domain.ShipmentStatus(m.Status),
		RecipientName:  m.RecipientName,
		AddressLine:    m.AddressLine,
		City:           m.City,
		PostalCode:     m.PostalCode,
		Country:        m.Country,
		DeclaredValue:  m.DeclaredValue,
		Currency:       m.Currency,
		ShippedAt:      m.ShippedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
