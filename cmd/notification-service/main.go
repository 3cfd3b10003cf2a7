package main

import (
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"supplyboost/internal/pkg/bootstrap"
	"supplyboost/internal/pkg/config"
	"supplyboost/internal/pkg/constants"
	"supplyboost/internal/pkg/httpclient"
	"supplyboost/internal/pkg/mq"
	"supplyboost/internal/service/notification/application"
	"supplyboost/internal/service/notification/domain"
	"supplyboost/internal/service/notification/infrastructure"
	"supplyboost/internal/service/notification/infrastructure/adapter"
)

const port = 8084

func main() {
	bootstrap.Init(constants.NotificationService)
	cfg := config.Current()

	engine, err := application.NewRuleEngine(cfg.Saga.Notification.Rules)
	if err != nil {
		log.Fatal().Err(err).Msg("compile notification rules")
	}

	tracer := otel.Tracer(constants.NotificationService)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.NotificationService,
		Port:        port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) []bootstrap.Runner {
			httpClient := httpclient.NewClient(tracer, appCtx.Nacos)
			senders := map[domain.Channel]domain.Sender{
				domain.ChannelEmail: adapter.NewLogSenderAdapter(domain.ChannelEmail),
				domain.ChannelSMS:   adapter.NewLogSenderAdapter(domain.ChannelSMS),
				domain.ChannelWebhook: adapter.NewWebhookSenderAdapter(
					httpClient, constants.PushGateway, "/internal/notify"),
			}
			service := application.NewNotificationService(engine, senders, cfg.Saga.Notification.MaxAttempts, tracer)

			createdConsumer := infrastructure.NewOrderCreatedConsumer(
				mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, mq.TopicOrderCreated, constants.NotificationService), service)
			statusConsumer := infrastructure.NewOrderStatusChangedConsumer(
				mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, mq.TopicOrderStatusChanged, constants.NotificationService), service)

			return []bootstrap.Runner{createdConsumer.Run, statusConsumer.Run}
		},
	})
}
