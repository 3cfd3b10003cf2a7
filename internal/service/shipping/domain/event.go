package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ShipmentCreatedEvent 发往 shipment.created，订单侧和账务侧都消费它。
// 字段布局和订单侧的消费结构保持一致，靠 JSON 契约而不是共享类型耦合。
type ShipmentCreatedEvent struct {
	EventID        string          `json:"eventId"`
	ShipmentID     uint64          `json:"shipmentId"`
	ShipmentNumber string          `json:"shipmentNumber"`
	OrderID        uint64          `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	TrackingNumber string          `json:"trackingNumber"`
	Carrier        string          `json:"carrier"`
	DeclaredValue  decimal.Decimal `json:"declaredValue"`
	Currency       string          `json:"currency"`
	EventTime      time.Time       `json:"eventTime"`
}

// EventPublisher 是运单事件的出端口。
type EventPublisher interface {
	PublishShipmentCreated(ctx context.Context, event ShipmentCreatedEvent) error
}
