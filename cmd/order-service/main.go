package main

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"supplyboost/internal/pkg/bootstrap"
	"supplyboost/internal/pkg/config"
	"supplyboost/internal/pkg/constants"
	"supplyboost/internal/pkg/httpclient"
	"supplyboost/internal/pkg/mq"
	"supplyboost/internal/service/order/application"
	"supplyboost/internal/service/order/application/saga"
	"supplyboost/internal/service/order/infrastructure"
	"supplyboost/internal/service/order/infrastructure/adapter"
	"supplyboost/internal/service/order/interfaces"
)

const port = 8081

func main() {
	bootstrap.Init(constants.OrderService)
	cfg := config.Current()

	db, err := gorm.Open(mysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("connect mysql")
	}
	repo := infrastructure.NewGormOrderRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("migrate order tables")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Infra.Redis.Addr,
		Password: cfg.Infra.Redis.Password,
	})
	dedup := adapter.NewDedupRedisAdapter(rdb, cfg.Saga.Dedup.TTL.Std())

	publisher := adapter.NewEventKafkaAdapter(
		mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, mq.TopicOrderCreated),
		mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, mq.TopicOrderStatusChanged),
	)
	defer publisher.Close()

	tracer := otel.Tracer(constants.OrderService)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.OrderService,
		Port:        port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) []bootstrap.Runner {
			httpClient := httpclient.NewClient(tracer, appCtx.Nacos)
			shipping := adapter.NewShippingHTTPAdapter(httpClient)
			inventory := adapter.NewInventoryHTTPAdapter(httpClient, constants.OrderService, constants.InventoryReleasePath)

			orchestrator := saga.NewOrchestrator(repo, shipping, inventory, publisher, dedup, tracer, cfg.Saga.DownstreamTimeout.Std())
			orderService := application.NewOrderService(repo, publisher, orchestrator, tracer)
			interfaces.NewOrderHandler(orderService).RegisterRoutes(appCtx.Mux)

			sweeper := application.NewSweeper(repo, orchestrator, tracer,
				cfg.Saga.Sweep.Interval.Std(), cfg.Saga.Sweep.MaxAttempts, cfg.Saga.Sweep.BatchSize)

			paymentConsumer := infrastructure.NewPaymentProcessedConsumer(
				mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, mq.TopicPaymentProcessed, constants.OrderService), orchestrator)
			shipmentConsumer := infrastructure.NewShipmentCreatedConsumer(
				mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, mq.TopicShipmentCreated, constants.OrderService), orchestrator)

			return []bootstrap.Runner{paymentConsumer.Run, shipmentConsumer.Run, sweeper.Run}
		},
	})
}
