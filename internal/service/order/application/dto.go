package application

import (
	"time"

	"github.com/shopspring/decimal"

	"supplyboost/internal/service/order/domain"
)

// CreateOrderRequest 是下单入参，由 HTTP 接口层解码后传入。
type CreateOrderRequest struct {
	UserID        uint64             `json:"userId"`
	CustomerName  string             `json:"customerName"`
	CustomerEmail string             `json:"customerEmail"`
	CustomerPhone string             `json:"customerPhone"`
	Shipping      AddressDTO         `json:"shippingAddress"`
	Items         []CreateOrderItem  `json:"items"`
}

type CreateOrderItem struct {
	ProductID uint64          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type AddressDTO struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// OrderResponse 是对外返回的订单视图。
type OrderResponse struct {
	OrderID        uint64          `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	Status         domain.Status   `json:"status"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Currency       string          `json:"currency"`
	TrackingNumber string          `json:"trackingNumber,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func toOrderResponse(order *domain.Order) *OrderResponse {
	return &OrderResponse{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		TotalAmount:    order.TotalAmount,
		Currency:       order.Currency,
		TrackingNumber: order.TrackingNumber,
		CreatedAt:      order.CreatedAt,
	}
}

func (r *CreateOrderRequest) toDomainItems() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domain.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return items
}

func (r *CreateOrderRequest) toDomainAddress() domain.Address {
	return domain.Address{
		Line1:      r.Shipping.Line1,
		Line2:      r.Shipping.Line2,
		City:       r.Shipping.City,
		State:      r.Shipping.State,
		PostalCode: r.Shipping.PostalCode,
		Country:    r.Shipping.Country,
	}
}
