package application

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/service/shipping/domain"
)

var carriers = []string{"UPS", "FEDEX", "DHL", "SF_EXPRESS"}

// CreateShipmentRequest 是订单服务发来的创建运单请求，
// 携带完整的收件快照，shipping 不回查订单库。
type CreateShipmentRequest struct {
	OrderID        uint64 `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	UserID         uint64 `json:"userId"`
	RecipientName  string `json:"recipientName"`
	RecipientEmail string `json:"recipientEmail"`
	RecipientPhone string `json:"recipientPhone"`
	AddressLine1   string `json:"addressLine1"`
	AddressLine2   string `json:"addressLine2"`
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postalCode"`
	Country        string `json:"country"`
	DeclaredValue  string `json:"declaredValue"`
	Currency       string `json:"currency"`
}

type ShipmentResponse struct {
	ShipmentNumber string `json:"shipmentNumber"`
	OrderNumber    string `json:"orderNumber"`
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
	Status         string `json:"status"`
}

// ShipmentService 是运单服务的应用层。
type ShipmentService struct {
	repo      domain.ShipmentRepository
	publisher domain.EventPublisher
	tracer    trace.Tracer
}

func NewShipmentService(repo domain.ShipmentRepository, publisher domain.EventPublisher, tracer trace.Tracer) *ShipmentService {
	return &ShipmentService{repo: repo, publisher: publisher, tracer: tracer}
}

// CreateShipment 按 orderId 幂等创建运单。
// 已存在则直接返回既有运单且不重发事件；订单侧的重试因此永远安全。
func (s *ShipmentService) CreateShipment(ctx context.Context, req *CreateShipmentRequest) (*ShipmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateShipment")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", req.OrderNumber))

	existing, err := s.repo.FindByOrderID(ctx, req.OrderID)
	if err == nil {
		logger.Ctx(ctx).Info().
			Str("order_number", req.OrderNumber).
			Str("shipment_number", existing.ShipmentNumber).
			Msg("shipment already exists, returning existing")
		return toResponse(existing), nil
	}
	if !errors.Is(err, domain.ErrShipmentNotFound) {
		span.RecordError(err)
		return nil, err
	}

	declared, err := decimal.NewFromString(req.DeclaredValue)
	if err != nil {
		declared = decimal.Zero
	}

	addressLine := req.AddressLine1
	if req.AddressLine2 != "" {
		addressLine += ", " + req.AddressLine2
	}
	shipment, err := domain.NewShipment(
		generateShipmentNumber(),
		req.OrderID, req.OrderNumber,
		generateTrackingNumber(), pickCarrier(),
		req.RecipientName, addressLine, req.City, req.PostalCode, req.Country,
		declared, req.Currency,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.repo.Save(ctx, shipment); err != nil {
		// 并发重复请求可能撞唯一约束，重读一次即可收敛
		if again, findErr := s.repo.FindByOrderID(ctx, req.OrderID); findErr == nil {
			return toResponse(again), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist shipment")
		return nil, err
	}

	evt := domain.ShipmentCreatedEvent{
		EventID:        uuid.New().String(),
		ShipmentID:     shipment.ID,
		ShipmentNumber: shipment.ShipmentNumber,
		OrderID:        shipment.OrderID,
		OrderNumber:    shipment.OrderNumber,
		TrackingNumber: shipment.TrackingNumber,
		Carrier:        shipment.Carrier,
		DeclaredValue:  shipment.DeclaredValue,
		Currency:       shipment.Currency,
		EventTime:      time.Now().UTC(),
	}
	if err := s.publisher.PublishShipmentCreated(ctx, evt); err != nil {
		// 运单已落库，事件发不出去只能靠日志告警人工补投；
		// 不回滚运单，否则订单侧重试会生成新的运单号
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).
			Str("shipment_number", shipment.ShipmentNumber).
			Str("alert", "event-publish-failed").
			Msg("shipment persisted but shipment.created not published")
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_number", shipment.OrderNumber).
		Str("shipment_number", shipment.ShipmentNumber).
		Str("tracking_number", shipment.TrackingNumber).
		Msg("shipment created")
	return toResponse(shipment), nil
}

// GetShipment 按运单号查询。
func (s *ShipmentService) GetShipment(ctx context.Context, shipmentNumber string) (*ShipmentResponse, error) {
	shipment, err := s.repo.FindByNumber(ctx, shipmentNumber)
	if err != nil {
		return nil, err
	}
	return toResponse(shipment), nil
}

func toResponse(s *domain.Shipment) *ShipmentResponse {
	return &ShipmentResponse{
		ShipmentNumber: s.ShipmentNumber,
		OrderNumber:    s.OrderNumber,
		TrackingNumber: s.TrackingNumber,
		Carrier:        s.Carrier,
		Status:         string(s.Status),
	}
}

// generateShipmentNumber 生成 SHP-yyyymmdd-xxxxx 形式的运单号。
func generateShipmentNumber() string {
	return fmt.Sprintf("SHP-%s-%05d", time.Now().UTC().Format("20060102"), rand.Intn(90000)+10000)
}

func generateTrackingNumber() string {
	return "TRK-" + strings.ToUpper(uuid.New().String()[:12])
}

func pickCarrier() string {
	return carriers[rand.Intn(len(carriers))]
}
