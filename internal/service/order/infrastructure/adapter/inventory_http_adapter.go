package adapter

import (
	"context"

	"supplyboost/internal/pkg/httpclient"
)

// InventoryHTTPAdapter 实现 port.InventoryClient。
// 库存服务尚未拆分成独立部署，这里挂在订单服务自己的预留端点上；
// 被调方对不存在或已释放的预占返回成功，保证补偿可重放。
type InventoryHTTPAdapter struct {
	client      *httpclient.Client
	serviceName string
	path        string
}

func NewInventoryHTTPAdapter(client *httpclient.Client, serviceName, path string) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, serviceName: serviceName, path: path}
}

type releaseRequest struct {
	OrderID     uint64 `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

func (a *InventoryHTTPAdapter) ReleaseReservation(ctx context.Context, orderID uint64, orderNumber string) error {
	return a.client.PostJSON(ctx, a.serviceName, a.path, releaseRequest{OrderID: orderID, OrderNumber: orderNumber}, nil)
}
