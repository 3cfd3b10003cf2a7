package main

import (
	"supplyboost/internal/pkg/bootstrap"
	"supplyboost/internal/pkg/config"
	"supplyboost/internal/pkg/constants"
	"supplyboost/internal/pkg/mq"
	"supplyboost/internal/service/pushgateway"
)

const port = 8088

func main() {
	bootstrap.Init(constants.PushGateway)
	cfg := config.Current()

	hub := pushgateway.NewHub()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.PushGateway,
		Port:        port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) []bootstrap.Runner {
			pushgateway.NewHandler(hub).RegisterRoutes(appCtx.Mux)

			statusConsumer := pushgateway.NewStatusChangedConsumer(
				mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, mq.TopicOrderStatusChanged, constants.PushGateway), hub)

			return []bootstrap.Runner{hub.Run, statusConsumer.Run}
		},
	})
}
