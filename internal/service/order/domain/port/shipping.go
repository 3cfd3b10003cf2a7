package port

import "context"

// ShipmentRequest 是发货指令的快照，内容在支付确认时从订单固化。
type ShipmentRequest struct {
	OrderID        uint64 `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	UserID         uint64 `json:"userId"`
	RecipientName  string `json:"recipientName"`
	RecipientEmail string `json:"recipientEmail"`
	RecipientPhone string `json:"recipientPhone"`
	AddressLine1   string `json:"addressLine1"`
	AddressLine2   string `json:"addressLine2,omitempty"`
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postalCode"`
	Country        string `json:"country"`

	// DeclaredValue 是申报金额（订单总额），十进制字符串避免精度问题。
	DeclaredValue string `json:"declaredValue"`
	Currency      string `json:"currency"`
}

// ShippingClient 是 shipping 服务的出站端口。
//
// CreateShipment 必须可安全重试：编排器先本地提交状态再发起调用，
// 失败后由兜底扫描用同一请求重放，去重由被调方按 orderId 保证。
type ShippingClient interface {
	CreateShipment(ctx context.Context, req ShipmentRequest) error
}
