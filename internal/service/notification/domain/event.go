package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 通知服务消费的上游事件投影。

const (
	EventTypeOrderCreated  = "order.created"
	EventTypeStatusChanged = "order.status.changed"
)

type OrderCreatedEvent struct {
	EventID       string          `json:"eventId"`
	OrderID       uint64          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	UserID        uint64          `json:"userId"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency"`
	EventTime     time.Time       `json:"eventTime"`
}

type OrderStatusChangedEvent struct {
	EventID        string    `json:"eventId"`
	OrderID        uint64    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	UserID         uint64    `json:"userId"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	Reason         string    `json:"reason"`
	EventTime      time.Time `json:"eventTime"`
}
