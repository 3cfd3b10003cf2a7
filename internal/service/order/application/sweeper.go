package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/pkg/metrics"
	"supplyboost/internal/service/order/application/saga"
	"supplyboost/internal/service/order/domain"
)

// Sweeper 周期性扫描 READY_TO_SHIP 的订单并重放发货指令。
// 这是兜底态的消化通道：节奏和重试上限都来自配置，不写死在代码里。
// 重试额度耗尽的订单只告警（stuck），等运维介入，不再无限打下游。
type Sweeper struct {
	repo        domain.OrderRepository
	saga        *saga.Orchestrator
	tracer      trace.Tracer
	interval    time.Duration
	maxAttempts int
	batchSize   int

	// 进程内的尝试计数。重启后清零意味着重新给一轮额度，可以接受：
	// 发货创建是被调方幂等的
	attempts map[uint64]int
}

func NewSweeper(repo domain.OrderRepository, orchestrator *saga.Orchestrator, tracer trace.Tracer, interval time.Duration, maxAttempts, batchSize int) *Sweeper {
	return &Sweeper{
		repo:        repo,
		saga:        orchestrator,
		tracer:      tracer,
		interval:    interval,
		maxAttempts: maxAttempts,
		batchSize:   batchSize,
		attempts:    make(map[uint64]int),
	}
}

// Run 阻塞运行直到 ctx 取消，适配 bootstrap 的 Runner 形态。
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "saga.SweepReadyToShip")
	defer span.End()

	orders, err := s.repo.FindByStatus(ctx, domain.StatusReadyToShip, s.batchSize)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("sweep query failed")
		return
	}

	live := make(map[uint64]struct{}, len(orders))
	stuck := 0
	for _, order := range orders {
		live[order.ID] = struct{}{}

		if s.attempts[order.ID] >= s.maxAttempts {
			stuck++
			logger.Ctx(ctx).Error().
				Str("alert", "order-stuck").
				Str("order_number", order.OrderNumber).
				Int("attempts", s.attempts[order.ID]).
				Msg("shipment retries exhausted, operator intervention required")
			continue
		}

		s.attempts[order.ID]++
		if err := s.saga.InitiateShipment(ctx, order); err != nil {
			logger.Ctx(ctx).Warn().Err(err).
				Str("order_number", order.OrderNumber).
				Int("attempt", s.attempts[order.ID]).
				Msg("shipment retry failed")
			continue
		}
		logger.Ctx(ctx).Info().
			Str("order_number", order.OrderNumber).
			Msg("shipment re-initiated, waiting for shipment.created")
	}

	// 订单离开 READY_TO_SHIP 后清掉计数，避免 map 无界增长
	for id := range s.attempts {
		if _, ok := live[id]; !ok {
			delete(s.attempts, id)
		}
	}
	metrics.StuckOrders.Set(float64(stuck))
}
