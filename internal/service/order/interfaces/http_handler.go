package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"supplyboost/internal/pkg/constants"
	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/service/order/application"
	"supplyboost/internal/service/order/domain"
)

// OrderHandler 封装订单服务的 HTTP 处理器。
type OrderHandler struct {
	service *application.OrderService
	tracer  trace.Tracer
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderService) *OrderHandler {
	return &OrderHandler{
		service: service,
		tracer:  otel.Tracer(constants.OrderService),
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/orders", h.createOrder)
	mux.HandleFunc("GET /api/v1/orders/{orderNumber}", h.getOrder)
	mux.HandleFunc("POST /api/v1/orders/{orderNumber}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /api/v1/orders/{orderNumber}/delivered", h.markDelivered)
	mux.HandleFunc("POST /api/v1/orders/{orderNumber}/refund", h.refundOrder)
	// 库存预占释放还挂在订单服务上，等库存独立部署后迁走
	mux.HandleFunc("POST "+constants.InventoryReleasePath, h.releaseReservation)
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "http.CreateOrder")
	defer span.End()

	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	resp, err := h.service.CreateOrder(ctx, &req)
	if err != nil {
		span.RecordError(err)
		writeError(w, statusFor(err), err)
		return
	}
	span.SetAttributes(attribute.String("order.number", resp.OrderNumber))
	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "http.GetOrder")
	defer span.End()

	resp, err := h.service.GetOrder(ctx, r.PathValue("orderNumber"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "http.CancelOrder")
	defer span.End()

	var req reasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.service.CancelOrder(ctx, r.PathValue("orderNumber"), req.Reason); err != nil {
		span.RecordError(err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "cancelled"})
}

func (h *OrderHandler) markDelivered(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "http.MarkDelivered")
	defer span.End()

	if err := h.service.MarkDelivered(ctx, r.PathValue("orderNumber")); err != nil {
		span.RecordError(err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "delivered"})
}

func (h *OrderHandler) refundOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "http.RefundOrder")
	defer span.End()

	var req reasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.service.RefundOrder(ctx, r.PathValue("orderNumber"), req.Reason); err != nil {
		span.RecordError(err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "refunded"})
}

// releaseReservation 幂等地确认库存释放。预占记录不存在视同已释放，
// 这样 saga 的补偿重放永远安全。
func (h *OrderHandler) releaseReservation(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "http.ReleaseReservation")
	defer span.End()

	var req struct {
		OrderID     uint64 `json:"orderId"`
		OrderNumber string `json:"orderNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	logger.Ctx(ctx).Info().
		Str("order_number", req.OrderNumber).
		Msg("inventory reservation released")
	writeJSON(w, http.StatusOK, map[string]string{"result": "released"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case domain.IsIllegalTransition(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidOrder):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
