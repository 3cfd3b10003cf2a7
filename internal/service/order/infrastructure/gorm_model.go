package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"

	"supplyboost/internal/service/order/domain"
)

// OrderModel 对应 orders 表。
type OrderModel struct {
	ID          uint64        `gorm:"primaryKey;autoIncrement"`
	OrderNumber string        `gorm:"uniqueIndex;size:32;not null"`
	UserID      uint64        `gorm:"index;not null"`
	Status      domain.Status `gorm:"index;size:32;not null"`

	TotalAmount decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency    string          `gorm:"size:3;not null;default:USD"`

	CustomerName  string `gorm:"size:128"`
	CustomerEmail string `gorm:"size:128;not null"`
	CustomerPhone string `gorm:"size:32"`

	ShippingLine1      string `gorm:"size:255"`
	ShippingLine2      string `gorm:"size:255"`
	ShippingCity       string `gorm:"size:64"`
	ShippingState      string `gorm:"size:64"`
	ShippingPostalCode string `gorm:"size:16"`
	ShippingCountry    string `gorm:"size:64"`

	PaymentRef     string `gorm:"size:64"`
	PaymentMethod  string `gorm:"size:32"`
	ShipmentRef    string `gorm:"size:64"`
	TrackingNumber string `gorm:"size:64"`

	ShippedAt   *time.Time
	DeliveredAt *time.Time

	// Version 是乐观锁列，UPDATE 带 WHERE version=? 校验
	Version   int64 `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel 对应 order_items 表，订单确认后不可变。
type OrderItemModel struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	OrderID   uint64          `gorm:"index;not null"`
	ProductID uint64          `gorm:"not null"`
	Name      string          `gorm:"size:255"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

func (OrderItemModel) TableName() string { return "order_items" }

func toOrderModel(order *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		UserID:             order.UserID,
		Status:             order.Status,
		TotalAmount:        order.TotalAmount,
		Currency:           order.Currency,
		CustomerName:       order.CustomerName,
		CustomerEmail:      order.CustomerEmail,
		CustomerPhone:      order.CustomerPhone,
		ShippingLine1:      order.Shipping.Line1,
		ShippingLine2:      order.Shipping.Line2,
		ShippingCity:       order.Shipping.City,
		ShippingState:      order.Shipping.State,
		ShippingPostalCode: order.Shipping.PostalCode,
		ShippingCountry:    order.Shipping.Country,
		PaymentRef:         order.PaymentRef,
		PaymentMethod:      order.PaymentMethod,
		ShipmentRef:        order.ShipmentRef,
		TrackingNumber:     order.TrackingNumber,
		ShippedAt:          order.ShippedAt,
		DeliveredAt:        order.DeliveredAt,
		Version:            order.Version,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
	for _, it := range order.Items {
		m.Items = append(m.Items, OrderItemModel{
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return m
}

func toDomainOrder(m *OrderModel) *domain.Order {
	order := &domain.Order{
		ID:          m.ID,
		OrderNumber: m.OrderNumber,
		UserID:      m.UserID,
		Status:      m.Status,
		TotalAmount: m.TotalAmount,
		Currency:    m.Currency,

		CustomerName:  m.CustomerName,
		CustomerEmail: m.CustomerEmail,
		CustomerPhone: m.CustomerPhone,
		Shipping: domain.Address{
			Line1:      m.ShippingLine1,
			Line2:      m.ShippingLine2,
			City:       m.ShippingCity,
			State:      m.ShippingState,
			PostalCode: m.ShippingPostalCode,
			Country:    m.ShippingCountry,
		},

		PaymentRef:     m.PaymentRef,
		PaymentMethod:  m.PaymentMethod,
		ShipmentRef:    m.ShipmentRef,
		TrackingNumber: m.TrackingNumber,
		ShippedAt:      m.ShippedAt,
		DeliveredAt:    m.DeliveredAt,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	for _, it := range m.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return order
}
