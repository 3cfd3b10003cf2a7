package domain

// Status 定义订单在履约流程中的生命周期状态。
type Status string

const (
	StatusCreated                    Status = "CREATED"                      // 已落库，未发起支付
	StatusPaymentPending             Status = "PAYMENT_PENDING"              // 等待支付结果
	StatusPaymentConfirmed           Status = "PAYMENT_CONFIRMED"            // 支付成功
	StatusPaymentFailed              Status = "PAYMENT_FAILED"               // 支付失败
	StatusInventoryReserved          Status = "INVENTORY_RESERVED"           // 库存已预占（预留流转位）
	StatusInventoryReservationFailed Status = "INVENTORY_RESERVATION_FAILED" // 库存预占失败（预留流转位）
	StatusReadyToShip                Status = "READY_TO_SHIP"                // 发货指令未确认的兜底态
	StatusShipped                    Status = "SHIPPED"                      // 已发货
	StatusDelivered                  Status = "DELIVERED"                    // 已签收
	StatusCancelled                  Status = "CANCELLED"                    // 已取消
	StatusRefunded                   Status = "REFUNDED"                     // 已退款
)

// transitions 是状态机允许的有向边。状态只能沿这张表前进，
// 重复应用同一条边由调用方的幂等守卫识别为 no-op，不在表内的边一律拒绝。
var transitions = map[Status][]Status{
	StatusCreated:                    {StatusPaymentPending, StatusCancelled},
	StatusPaymentPending:             {StatusPaymentConfirmed, StatusPaymentFailed, StatusCancelled},
	StatusPaymentConfirmed:           {StatusInventoryReserved, StatusInventoryReservationFailed, StatusReadyToShip, StatusShipped, StatusCancelled, StatusRefunded},
	StatusPaymentFailed:              {StatusCancelled},
	StatusInventoryReserved:          {StatusReadyToShip, StatusShipped, StatusCancelled},
	StatusInventoryReservationFailed: {StatusCancelled},
	StatusReadyToShip:                {StatusShipped, StatusCancelled},
	StatusShipped:                    {StatusDelivered, StatusRefunded},
	StatusDelivered:                  {StatusRefunded},
	StatusCancelled:                  nil,
	StatusRefunded:                   nil,
}

// CanTransitionTo 判断 s→next 是否是合法边。
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal 报告状态是否为终态。终态订单只保留，不再流转。
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusDelivered, StatusRefunded:
		return true
	}
	return false
}

// PaymentSettled 报告支付结果是否已经落账。
// 幂等守卫用它识别 payment.processed 的重复投递。
func (s Status) PaymentSettled() bool {
	return s != StatusCreated && s != StatusPaymentPending
}

// ShippedOrLater 报告订单是否已经走过发货这一步。
func (s Status) ShippedOrLater() bool {
	switch s {
	case StatusShipped, StatusDelivered, StatusRefunded:
		return true
	}
	return false
}

// Cancellable 报告当前状态下是否接受取消请求。
// 已发货的订单不可取消，只能走退款。
func (s Status) Cancellable() bool {
	return !s.IsTerminal() && !s.ShippedOrLater()
}
