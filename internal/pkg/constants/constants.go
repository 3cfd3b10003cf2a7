package constants

// 服务名即 Nacos 里的注册名，httpclient 以此做寻址。
const (
	OrderService        = "order-service"
	ShippingService     = "shipping-service"
	AccountingService   = "accounting-service"
	NotificationService = "notification-service"
	PushGateway         = "push-gateway"
)

const (
	ShipmentCreatePath   = "/api/v1/shipments"
	InventoryReleasePath = "/api/v1/reservations/release"
)
