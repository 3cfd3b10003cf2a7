package adapter

import (
	"context"

	"supplyboost/internal/pkg/constants"
	"supplyboost/internal/pkg/httpclient"
	"supplyboost/internal/service/order/domain/port"
)

// ShippingHTTPAdapter 实现 port.ShippingClient，走 nacos 寻址的 HTTP 调用。
// 重试安全性由 shipping 服务按 orderId 去重保证，这里只管把请求送到。
type ShippingHTTPAdapter struct {
	client *httpclient.Client
}

func NewShippingHTTPAdapter(client *httpclient.Client) *ShippingHTTPAdapter {
	return &ShippingHTTPAdapter{client: client}
}

func (a *ShippingHTTPAdapter) CreateShipment(ctx context.Context, req port.ShipmentRequest) error {
	return a.client.PostJSON(ctx, constants.ShippingService, constants.ShipmentCreatePath, req, nil)
}
