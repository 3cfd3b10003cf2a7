package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 账务侧消费的上游事件。字段是各 topic JSON 契约的本地投影，
// 只声明自己用得到的字段。

const (
	PaymentSucceeded = "SUCCEEDED"
	PaymentFailed    = "FAILED"
)

type PaymentProcessedEvent struct {
	EventID       string          `json:"eventId"`
	OrderID       uint64          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	PaymentNumber string          `json:"paymentNumber"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	EventTime     time.Time       `json:"eventTime"`
}

type ShipmentCreatedEvent struct {
	EventID        string          `json:"eventId"`
	ShipmentID     uint64          `json:"shipmentId"`
	ShipmentNumber string          `json:"shipmentNumber"`
	OrderID        uint64          `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	DeclaredValue  decimal.Decimal `json:"declaredValue"`
	Currency       string          `json:"currency"`
	EventTime      time.Time       `json:"eventTime"`
}

type OrderStatusChangedEvent struct {
	EventID     string    `json:"eventId"`
	OrderID     uint64    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	NewStatus   string    `json:"newStatus"`
	Reason      string    `json:"reason"`
	EventTime   time.Time `json:"eventTime"`
}
