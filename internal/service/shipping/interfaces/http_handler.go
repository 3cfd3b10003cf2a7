package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"supplyboost/internal/pkg/constants"
	"supplyboost/internal/service/shipping/application"
	"supplyboost/internal/service/shipping/domain"
)

// ShipmentHandler 封装运单服务的 HTTP 处理器。
type ShipmentHandler struct {
	service *application.ShipmentService
	tracer  trace.Tracer
}

func NewShipmentHandler(service *application.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{
		service: service,
		tracer:  otel.Tracer(constants.ShippingService),
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *ShipmentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+constants.ShipmentCreatePath, h.createShipment)
	mux.HandleFunc("GET /api/v1/shipments/{shipmentNumber}", h.getShipment)
}

func (h *ShipmentHandler) createShipment(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "http.CreateShipment")
	defer span.End()

	var req application.CreateShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	resp, err := h.service.CreateShipment(ctx, &req)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrInvalidShipment) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ShipmentHandler) getShipment(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "http.GetShipment")
	defer span.End()

	resp, err := h.service.GetShipment(ctx, r.PathValue("shipmentNumber"))
	if err != nil {
		if errors.Is(err, domain.ErrShipmentNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
