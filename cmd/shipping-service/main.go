package main

import (
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"supplyboost/internal/pkg/bootstrap"
	"supplyboost/internal/pkg/config"
	"supplyboost/internal/pkg/constants"
	"supplyboost/internal/pkg/mq"
	"supplyboost/internal/service/shipping/application"
	"supplyboost/internal/service/shipping/infrastructure"
	"supplyboost/internal/service/shipping/infrastructure/adapter"
	"supplyboost/internal/service/shipping/interfaces"
)

const port = 8082

func main() {
	bootstrap.Init(constants.ShippingService)
	cfg := config.Current()

	db, err := gorm.Open(mysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("connect mysql")
	}
	repo, err := infrastructure.NewGormShipmentRepository(db)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate shipment tables")
	}

	publisher := adapter.NewEventKafkaAdapter(
		mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, mq.TopicShipmentCreated),
	)
	defer publisher.Close()

	tracer := otel.Tracer(constants.ShippingService)
	service := application.NewShipmentService(repo, publisher, tracer)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.ShippingService,
		Port:        port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) []bootstrap.Runner {
			interfaces.NewShipmentHandler(service).RegisterRoutes(appCtx.Mux)
			return nil
		},
	})
}
