package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"supplyboost/internal/pkg/bootstrap"
	"supplyboost/internal/pkg/config"
	"supplyboost/internal/pkg/constants"
	"supplyboost/internal/pkg/dlock"
	"supplyboost/internal/pkg/mq"
	"supplyboost/internal/service/accounting/application"
	"supplyboost/internal/service/accounting/infrastructure"
	"supplyboost/internal/service/accounting/infrastructure/adapter"
	"supplyboost/internal/service/accounting/interfaces"
)

const (
	port     = 8083
	lockWait = 10 * time.Second
)

func main() {
	bootstrap.Init(constants.AccountingService)
	cfg := config.Current()

	db, err := gorm.Open(mysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("connect mysql")
	}
	invoices, err := infrastructure.NewGormInvoiceRepository(db)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate invoice tables")
	}
	revenues, err := infrastructure.NewGormRevenueRepository(db)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate revenue tables")
	}

	zkConn, err := dlock.Conn(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout.Std())
	if err != nil {
		log.Fatal().Err(err).Msg("connect zookeeper")
	}
	defer zkConn.Close()
	lock := adapter.NewZkLockAdapter(zkConn, lockWait)

	taxRate, err := decimal.NewFromString(cfg.Saga.Accounting.TaxRate)
	if err != nil {
		log.Fatal().Err(err).Str("tax_rate", cfg.Saga.Accounting.TaxRate).Msg("parse tax rate")
	}

	tracer := otel.Tracer(constants.AccountingService)
	service := application.NewInvoiceService(invoices, revenues, lock, taxRate, tracer)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.AccountingService,
		Port:        port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) []bootstrap.Runner {
			interfaces.NewInvoiceHandler(service).RegisterRoutes(appCtx.Mux)

			paymentConsumer := infrastructure.NewPaymentProcessedConsumer(
				mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, mq.TopicPaymentProcessed, constants.AccountingService), service)
			shipmentConsumer := infrastructure.NewShipmentCreatedConsumer(
				mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, mq.TopicShipmentCreated, constants.AccountingService), service)
			statusConsumer := infrastructure.NewOrderStatusChangedConsumer(
				mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, mq.TopicOrderStatusChanged, constants.AccountingService), service)

			return []bootstrap.Runner{paymentConsumer.Run, shipmentConsumer.Run, statusConsumer.Run}
		},
	})
}
