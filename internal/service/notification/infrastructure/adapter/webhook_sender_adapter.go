package adapter

import (
	"context"
	"time"

	"supplyboost/internal/pkg/httpclient"
	"supplyboost/internal/service/notification/domain"
)

// WebhookSenderAdapter 把通知以 JSON 投递到目标服务的回调端点，
// 寻址走注册中心。推送网关的站内信就走这个渠道。
type WebhookSenderAdapter struct {
	client      *httpclient.Client
	serviceName string
	path        string
}

func NewWebhookSenderAdapter(client *httpclient.Client, serviceName, path string) *WebhookSenderAdapter {
	return &WebhookSenderAdapter{client: client, serviceName: serviceName, path: path}
}

type webhookPayload struct {
	UserID      uint64    `json:"userId"`
	OrderNumber string    `json:"orderNumber"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sentAt"`
}

func (a *WebhookSenderAdapter) Send(ctx context.Context, n *domain.Notification) error {
	return a.client.PostJSON(ctx, a.serviceName, a.path, webhookPayload{
		UserID:      n.UserID,
		OrderNumber: n.OrderNumber,
		Subject:     n.Subject,
		Body:        n.Body,
		SentAt:      time.Now().UTC(),
	}, nil)
}
