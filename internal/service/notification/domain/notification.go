package domain

import (
	"context"
	"time"
)

// Channel 是通知的投递渠道。
type Channel string

const (
	ChannelEmail   Channel = "EMAIL"
	ChannelSMS     Channel = "SMS"
	ChannelWebhook Channel = "WEBHOOK"
)

// Notification 是一条待投递的通知。
type Notification struct {
	OrderNumber string
	UserID      uint64
	Channel     Channel
	RuleName    string
	Subject     string
	Body        string
	CreatedAt   time.Time
}

// Sender 把通知投到某个渠道。实现必须可重试：
// 同一条通知发两次的代价远小于漏发。
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// OrderEvent 是路由规则的求值输入，摊平了两个订单 topic 的字段。
type OrderEvent struct {
	EventType      string
	OrderNumber    string
	UserID         uint64
	PreviousStatus string
	NewStatus      string
	Reason         string
	TotalAmount    float64
}
