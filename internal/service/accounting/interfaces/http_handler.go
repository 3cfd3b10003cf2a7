package interfaces

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"supplyboost/internal/pkg/constants"
	"supplyboost/internal/service/accounting/application"
	"supplyboost/internal/service/accounting/domain"
)

// InvoiceHandler 提供发票的只读查询接口，写路径全部走事件。
type InvoiceHandler struct {
	service *application.InvoiceService
	tracer  trace.Tracer
}

func NewInvoiceHandler(service *application.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
		tracer:  otel.Tracer(constants.AccountingService),
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InvoiceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/invoices/{invoiceNumber}", h.getInvoice)
}

type invoiceResponse struct {
	InvoiceNumber  string     `json:"invoiceNumber"`
	OrderNumber    string     `json:"orderNumber"`
	ShipmentNumber string     `json:"shipmentNumber,omitempty"`
	Subtotal       string     `json:"subtotal"`
	TaxAmount      string     `json:"taxAmount"`
	TotalAmount    string     `json:"totalAmount"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	IssuedAt       *time.Time `json:"issuedAt,omitempty"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
}

func (h *InvoiceHandler) getInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "http.GetInvoice")
	defer span.End()

	invoice, err := h.service.GetInvoice(ctx, r.PathValue("invoiceNumber"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvoiceNotFound) {
			status = http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(invoiceResponse{
		InvoiceNumber:  invoice.InvoiceNumber,
		OrderNumber:    invoice.OrderNumber,
		ShipmentNumber: invoice.ShipmentNumber,
		Subtotal:       invoice.Subtotal.StringFixed(2),
		TaxAmount:      invoice.TaxAmount.StringFixed(2),
		TotalAmount:    invoice.TotalAmount.StringFixed(2),
		Currency:       invoice.Currency,
		Status:         string(invoice.Status),
		IssuedAt:       invoice.IssuedAt,
		PaidAt:         invoice.PaidAt,
	})
}
