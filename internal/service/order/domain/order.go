package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 是订单聚合根。
// 状态只能由 saga 编排器推进，且必须走 transition 以保证只沿状态机前进。
type Order struct {
	ID          uint64
	OrderNumber string // 业务键，saga 关联键，也是 Kafka 分区键
	UserID      uint64
	Status      Status

	Items       []OrderItem
	TotalAmount decimal.Decimal
	Currency    string

	// 收货快照，下单时从购物车固化，发起发货时原样下发
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Shipping      Address

	// 下游引用只在对应事件落账之后才被写入
	PaymentRef     string
	PaymentMethod  string
	ShipmentRef    string
	TrackingNumber string

	ShippedAt   *time.Time
	DeliveredAt *time.Time

	// Version 是乐观锁版本号，Save 时校验
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem 是订单行。Subtotal = UnitPrice × Quantity，订单确认后不可变。
type OrderItem struct {
	ProductID uint64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// NewOrder 构造处于 CREATED 状态的新订单，并按订单行计算总额。
func NewOrder(orderNumber string, userID uint64, customerName, customerEmail, customerPhone string, shipping Address, items []OrderItem) (*Order, error) {
	if orderNumber == "" || userID == 0 || len(items) == 0 {
		return nil, ErrInvalidOrder
	}

	total := decimal.Zero
	for i := range items {
		items[i].Subtotal = items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity)))
		total = total.Add(items[i].Subtotal)
	}

	now := time.Now().UTC()
	return &Order{
		OrderNumber:   orderNumber,
		UserID:        userID,
		Status:        StatusCreated,
		Items:         items,
		TotalAmount:   total,
		Currency:      "USD",
		CustomerName:  customerName,
		CustomerEmail: customerEmail,
		CustomerPhone: customerPhone,
		Shipping:      shipping,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// transition 是唯一的状态写入口，非法边返回 IllegalTransitionError。
func (o *Order) transition(next Status) error {
	if !o.Status.CanTransitionTo(next) {
		return &IllegalTransitionError{OrderNumber: o.OrderNumber, From: o.Status, To: next}
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPaymentPending 在支付发起后调用。
func (o *Order) MarkPaymentPending() error {
	return o.transition(StatusPaymentPending)
}

// ConfirmPayment 落账支付成功结果。前置状态必须是 PAYMENT_PENDING。
func (o *Order) ConfirmPayment(paymentRef, paymentMethod string) error {
	if err := o.transition(StatusPaymentConfirmed); err != nil {
		return err
	}
	o.PaymentRef = paymentRef
	o.PaymentMethod = paymentMethod
	return nil
}

// FailPayment 落账支付失败结果。
func (o *Order) FailPayment() error {
	return o.transition(StatusPaymentFailed)
}

// MarkReadyToShip 进入兜底态：支付已确认但发货指令未被下游确认，
// 等待兜底扫描重试。
func (o *Order) MarkReadyToShip() error {
	return o.transition(StatusReadyToShip)
}

// MarkShipped 落账发货结果。
func (o *Order) MarkShipped(shipmentRef, trackingNumber string, shippedAt time.Time) error {
	if err := o.transition(StatusShipped); err != nil {
		return err
	}
	o.ShipmentRef = shipmentRef
	o.TrackingNumber = trackingNumber
	o.ShippedAt = &shippedAt
	return nil
}

// MarkDelivered 落账签收。
func (o *Order) MarkDelivered(deliveredAt time.Time) error {
	if err := o.transition(StatusDelivered); err != nil {
		return err
	}
	o.DeliveredAt = &deliveredAt
	return nil
}

// Cancel 处理用户取消。已发货或终态订单拒绝，返回非法流转错误。
func (o *Order) Cancel() error {
	if !o.Status.Cancellable() {
		return &IllegalTransitionError{OrderNumber: o.OrderNumber, From: o.Status, To: StatusCancelled}
	}
	return o.transition(StatusCancelled)
}

// Refund 是补偿入口：支付确认之后的订单可以整单退款。
func (o *Order) Refund() error {
	return o.transition(StatusRefunded)
}

// Subtotal 返回各订单行小计之和（税在 accounting 侧另算）。
func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal)
	}
	return total
}
