package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// saga 可观测性的最小集合：状态流转、重复事件、补偿失败、卡单。
var (
	// SagaTransitions 按 from/to 维度统计每一次成功的状态流转。
	SagaTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "supplyboost",
		Subsystem: "saga",
		Name:      "transitions_total",
		Help:      "Order status transitions applied, by edge.",
	}, []string{"from", "to"})

	// DuplicateEvents 统计被幂等守卫吸收的重复投递。
	DuplicateEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "supplyboost",
		Subsystem: "saga",
		Name:      "duplicate_events_total",
		Help:      "Redelivered events absorbed as no-ops.",
	}, []string{"event"})

	// CompensationFailures 是资金一致性告警，和普通失败分开计数。
	CompensationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "supplyboost",
		Subsystem: "saga",
		Name:      "compensation_failures_total",
		Help:      "Failed compensating actions requiring operator attention.",
	})

	// StuckOrders 记录重试额度耗尽、需要人工介入的订单数。
	StuckOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "supplyboost",
		Subsystem: "saga",
		Name:      "stuck_orders",
		Help:      "Orders stuck in READY_TO_SHIP after exhausting retries.",
	})

	// EventProcessing 观察消费端单条消息的处理耗时。
	EventProcessing = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "supplyboost",
		Subsystem: "saga",
		Name:      "event_processing_seconds",
		Help:      "Per-event processing latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic", "outcome"})
)
