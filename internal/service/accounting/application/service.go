package application

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/pkg/metrics"
	"supplyboost/internal/service/accounting/domain"
	"supplyboost/internal/service/accounting/domain/port"
)

// InvoiceService 是账务服务的应用层：
// 支付成功建发票，发货事件触发结算序列，退款作废发票。
// 结算序列的每一步都幂等，发票状态是断点，重投从断点续跑。
type InvoiceService struct {
	invoices domain.InvoiceRepository
	revenues domain.RevenueRepository
	lock     port.SettlementLock
	taxRate  decimal.Decimal
	tracer   trace.Tracer
}

func NewInvoiceService(invoices domain.InvoiceRepository, revenues domain.RevenueRepository,
	lock port.SettlementLock, taxRate decimal.Decimal, tracer trace.Tracer) *InvoiceService {
	return &InvoiceService{invoices: invoices, revenues: revenues, lock: lock, taxRate: taxRate, tracer: tracer}
}

// HandlePaymentProcessed 在支付成功时建草稿发票。重复事件命中已有发票直接返回。
func (s *InvoiceService) HandlePaymentProcessed(ctx context.Context, evt *domain.PaymentProcessedEvent) error {
	ctx, span := s.tracer.Start(ctx, "accounting.HandlePaymentProcessed")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", evt.OrderNumber))

	if evt.Status != domain.PaymentSucceeded {
		logger.Ctx(ctx).Info().
			Str("order_number", evt.OrderNumber).
			Str("payment_status", evt.Status).
			Msg("payment not successful, no invoice to create")
		return nil
	}

	if _, err := s.invoices.FindByOrderID(ctx, evt.OrderID); err == nil {
		metrics.DuplicateEvents.WithLabelValues("payment.processed").Inc()
		return nil
	} else if !errors.Is(err, domain.ErrInvoiceNotFound) {
		return err
	}

	invoice, err := domain.NewInvoice(generateInvoiceNumber(), evt.OrderID, evt.OrderNumber,
		evt.PaymentNumber, evt.Amount, s.taxRate, evt.Currency)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.invoices.Save(ctx, invoice); err != nil {
		// 并发重复事件可能撞 order_id 唯一约束，重读收敛
		if _, findErr := s.invoices.FindByOrderID(ctx, evt.OrderID); findErr == nil {
			return nil
		}
		span.RecordError(err)
		return err
	}

	logger.Ctx(ctx).Info().
		Str("order_number", evt.OrderNumber).
		Str("invoice_number", invoice.InvoiceNumber).
		Str("total_amount", invoice.TotalAmount.String()).
		Msg("draft invoice created")
	return nil
}

// HandleShipmentCreated 执行结算序列：
// 关联运单 → 开票 → 确认商品收入 → 确认税金 → 核销。
// 按订单号加分布式锁，同一订单的结算不跨实例交错。
func (s *InvoiceService) HandleShipmentCreated(ctx context.Context, evt *domain.ShipmentCreatedEvent) error {
	ctx, span := s.tracer.Start(ctx, "accounting.HandleShipmentCreated")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", evt.OrderNumber))

	return s.lock.WithLock(ctx, evt.OrderNumber, func() error {
		return s.settle(ctx, evt)
	})
}

func (s *InvoiceService) settle(ctx context.Context, evt *domain.ShipmentCreatedEvent) error {
	invoice, err := s.invoices.FindByOrderID(ctx, evt.OrderID)
	if errors.Is(err, domain.ErrInvoiceNotFound) {
		// 发票在支付成功时就该建好。走到这说明数据不一致，重试修不好
		logger.Ctx(ctx).Error().
			Str("order_number", evt.OrderNumber).
			Str("shipment_number", evt.ShipmentNumber).
			Str("alert", "financial-integrity").
			Msg("invoice missing at settlement")
		return errors.Wrapf(domain.ErrInvoiceNotFound, "settle order %s", evt.OrderNumber)
	} else if err != nil {
		return err
	}

	// 运单申报额来自订单总额，应与发票净额一致
	if !evt.DeclaredValue.IsZero() && !evt.DeclaredValue.Equal(invoice.Subtotal) {
		logger.Ctx(ctx).Warn().
			Str("invoice_number", invoice.InvoiceNumber).
			Str("invoice_subtotal", invoice.Subtotal.String()).
			Str("declared_value", evt.DeclaredValue.String()).
			Msg("shipment declared value differs from invoice subtotal")
	}

	switch invoice.Status {
	case domain.InvoicePaid:
		metrics.DuplicateEvents.WithLabelValues("shipment.created").Inc()
		logger.Ctx(ctx).Info().
			Str("invoice_number", invoice.InvoiceNumber).
			Msg("settlement already complete, duplicate ignored")
		return nil
	case domain.InvoiceVoided:
		logger.Ctx(ctx).Error().
			Str("invoice_number", invoice.InvoiceNumber).
			Str("alert", "financial-integrity").
			Msg("shipment arrived for voided invoice")
		return nil
	case domain.InvoiceDraft:
		if err := invoice.AssociateShipment(evt.ShipmentNumber); err != nil {
			return err
		}
		if err := invoice.Issue(); err != nil {
			return err
		}
		if err := s.invoices.Save(ctx, invoice); err != nil {
			return err
		}
		logger.Ctx(ctx).Info().
			Str("invoice_number", invoice.InvoiceNumber).
			Str("shipment_number", evt.ShipmentNumber).
			Msg("invoice issued")
	}

	// 此处发票必为 ISSUED：要么刚开具，要么上次结算断在入账中途
	if err := s.recognizeOnce(ctx, invoice, domain.RecognitionProductSale, invoice.Subtotal); err != nil {
		return err
	}
	if err := s.recognizeOnce(ctx, invoice, domain.RecognitionTaxCollected, invoice.TaxAmount); err != nil {
		return err
	}

	if err := invoice.MarkPaid(); err != nil {
		return err
	}
	if err := s.invoices.Save(ctx, invoice); err != nil {
		return err
	}
	logger.Ctx(ctx).Info().
		Str("invoice_number", invoice.InvoiceNumber).
		Str("order_number", invoice.OrderNumber).
		Msg("invoice settled and marked paid")
	return nil
}

// recognizeOnce 单科目入账，(invoice_id, type) 已存在则跳过。
func (s *InvoiceService) recognizeOnce(ctx context.Context, invoice *domain.Invoice, typ domain.RecognitionType, amount decimal.Decimal) error {
	exists, err := s.revenues.Exists(ctx, invoice.ID, typ)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	entry := domain.NewRevenueRecognition(invoice.ID, invoice.OrderNumber, typ, amount, invoice.Currency)
	if err := s.revenues.Record(ctx, entry); err != nil {
		return errors.Wrapf(err, "recognize %s", typ)
	}
	logger.Ctx(ctx).Info().
		Str("invoice_number", invoice.InvoiceNumber).
		Str("recognition_type", string(typ)).
		Str("amount", amount.String()).
		Msg("revenue recognized")
	return nil
}

// HandleOrderStatusChanged 在订单退款时作废发票。其余状态变化不关账务的事。
func (s *InvoiceService) HandleOrderStatusChanged(ctx context.Context, evt *domain.OrderStatusChangedEvent) error {
	if evt.NewStatus != "REFUNDED" {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "accounting.VoidInvoice")
	defer span.End()

	return s.lock.WithLock(ctx, evt.OrderNumber, func() error {
		invoice, err := s.invoices.FindByOrderID(ctx, evt.OrderID)
		if errors.Is(err, domain.ErrInvoiceNotFound) {
			// 没开过票的订单退款，账务无事可做
			return nil
		}
		if err != nil {
			return err
		}
		if err := invoice.Void(); err != nil {
			return err
		}
		if err := s.invoices.Save(ctx, invoice); err != nil {
			return err
		}
		logger.Ctx(ctx).Info().
			Str("invoice_number", invoice.InvoiceNumber).
			Str("reason", evt.Reason).
			Msg("invoice voided on refund")
		return nil
	})
}

// GetInvoice 按发票号查询。
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceNumber string) (*domain.Invoice, error) {
	return s.invoices.FindByNumber(ctx, invoiceNumber)
}

// generateInvoiceNumber 生成 INV-yyyymmdd-xxxxx 形式的发票号。
func generateInvoiceNumber() string {
	return fmt.Sprintf("INV-%s-%05d", time.Now().UTC().Format("20060102"), rand.Intn(90000)+10000)
}
