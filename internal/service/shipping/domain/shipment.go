package domain

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ShipmentStatus 是运单自身的生命周期，和订单状态机解耦。
type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "PENDING"
	ShipmentShipped   ShipmentStatus = "SHIPPED"
	ShipmentDelivered ShipmentStatus = "DELIVERED"
)

var (
	ErrShipmentNotFound = errors.New("shipment not found")
	ErrInvalidShipment  = errors.New("invalid shipment")
)

// Shipment 是运单聚合根。OrderID 上有唯一约束，
// 同一订单的重复创建请求命中已有运单，这是调用方重试安全的根基。
type Shipment struct {
	ID             uint64
	ShipmentNumber string
	OrderID        uint64
	OrderNumber    string
	TrackingNumber string
	Carrier        string
	Status         ShipmentStatus

	RecipientName string
	AddressLine   string
	City          string
	PostalCode    string
	Country       string

	DeclaredValue decimal.Decimal
	Currency      string

	ShippedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewShipment 构造一张待发货运单并立即标记出库。
// 演示环境没有仓库作业环节，创建即发货。
func NewShipment(shipmentNumber string, orderID uint64, orderNumber, trackingNumber, carrier string,
	recipientName, addressLine, city, postalCode, country string,
	declaredValue decimal.Decimal, currency string) (*Shipment, error) {
	if orderID == 0 || orderNumber == "" {
		return nil, errors.Wrap(ErrInvalidShipment, "order reference is required")
	}
	if recipientName == "" || addressLine == "" {
		return nil, errors.Wrap(ErrInvalidShipment, "recipient address is required")
	}
	now := time.Now().UTC()
	return &Shipment{
		ShipmentNumber: shipmentNumber,
		OrderID:        orderID,
		OrderNumber:    orderNumber,
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
		Status:         ShipmentShipped,
		RecipientName:  recipientName,
		AddressLine:    addressLine,
		City:           city,
		PostalCode:     postalCode,
		Country:        country,
		DeclaredValue:  declaredValue,
		Currency:       currency,
		ShippedAt:      &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ShipmentRepository 是运单的持久化出端口。
type ShipmentRepository interface {
	FindByOrderID(ctx context.Context, orderID uint64) (*Shipment, error)
	FindByNumber(ctx context.Context, shipmentNumber string) (*Shipment, error)
	Save(ctx context.Context, shipment *Shipment) error
}
