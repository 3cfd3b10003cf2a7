package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 跨服务事件契约。事件是不可变事实，全部扁平结构：
// orderId+orderNumber 做关联，eventId 做去重，金额一律用 decimal，时间 RFC-3339。

// OrderCreatedEvent 发布到 order.created，触发支付侧创建支付单。
type OrderCreatedEvent struct {
	EventID       string           `json:"eventId"`
	OrderID       uint64           `json:"orderId"`
	OrderNumber   string           `json:"orderNumber"`
	UserID        uint64           `json:"userId"`
	CustomerName  string           `json:"customerName"`
	CustomerEmail string           `json:"customerEmail"`
	TotalAmount   decimal.Decimal  `json:"totalAmount"`
	Currency      string           `json:"currency"`
	Items         []OrderItemEvent `json:"items"`
	EventTime     time.Time        `json:"eventTime"`
}

type OrderItemEvent struct {
	ProductID uint64          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// 支付结果的 outcome 判别值。
const (
	PaymentSucceeded = "SUCCEEDED"
	PaymentFailed    = "FAILED"
)

// PaymentProcessedEvent 从 payment.processed 消费，支付服务发布。
type PaymentProcessedEvent struct {
	EventID       string          `json:"eventId"`
	OrderID       uint64          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	PaymentNumber string          `json:"paymentNumber"`
	PaymentMethod string          `json:"paymentMethod"`
	Status        string          `json:"status"` // SUCCEEDED | FAILED
	FailureReason string          `json:"failureReason,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	EventTime     time.Time       `json:"eventTime"`
}

// ShipmentCreatedEvent 从 shipment.created 消费，shipping 服务发布。
type ShipmentCreatedEvent struct {
	EventID        string    `json:"eventId"`
	OrderID        uint64    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	ShipmentID     uint64    `json:"shipmentId"`
	ShipmentNumber string    `json:"shipmentNumber"`
	TrackingNumber string    `json:"trackingNumber"`
	Carrier        string    `json:"carrier,omitempty"`
	EventTime      time.Time `json:"eventTime"`
}

// OrderStatusChangedEvent 发布到 order.status.changed，
// 通知服务和推送网关据此提醒用户。
type OrderStatusChangedEvent struct {
	EventID        string    `json:"eventId"`
	OrderID        uint64    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	UserID         uint64    `json:"userId"`
	PreviousStatus Status    `json:"previousStatus"`
	NewStatus      Status    `json:"newStatus"`
	Reason         string    `json:"reason,omitempty"`
	EventTime      time.Time `json:"eventTime"`
}
