package port

import "context"

// InventoryClient 是库存服务的出站端口。
//
// ReleaseReservation 是支付失败后的补偿动作，必须幂等：
// 预占不存在或已释放时是 no-op，因为触发它的事件本身可能被重复投递。
type InventoryClient interface {
	ReleaseReservation(ctx context.Context, orderID uint64, orderNumber string) error
}
