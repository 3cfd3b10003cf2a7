package mq

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/pkg/metrics"
)

// handleRetries 是单条消息在进程内的处理重试次数。
// 超过之后消费循环带错退出，offset 不提交，重启后按至少一次语义重投。
const handleRetries = 3

// EventHandler 处理一条消息，追踪上下文已从消息头恢复进 ctx。
type EventHandler func(ctx context.Context, msg kafka.Message) error

// Consumer 驱动一个 topic 的消费循环。
// ack 语义是"先处理后提交"：只有副作用全部完成（或确认重试无益）才提交 offset。
// isFatal 判定重试无益的错误类别，由各服务按自己的领域错误给出。
type Consumer struct {
	reader  *kafka.Reader
	handle  EventHandler
	isFatal func(error) bool
}

func NewConsumer(reader *kafka.Reader, handle EventHandler, isFatal func(error) bool) *Consumer {
	if isFatal == nil {
		isFatal = func(error) bool { return false }
	}
	return &Consumer{reader: reader, handle: handle, isFatal: isFatal}
}

// Run 阻塞消费直到 ctx 取消，适配 bootstrap 的 Runner 形态。
func (c *Consumer) Run(ctx context.Context) error {
	topic := c.reader.Config().Topic
	logger.Ctx(ctx).Info().Str("topic", topic).Msg("kafka consumer started")
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Str("topic", topic).Msg("kafka consumer stopping")
				return ctx.Err()
			}
			logger.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("fetch message failed, retrying")
			time.Sleep(time.Second)
			continue
		}

		if err := c.process(ctx, msg); err != nil {
			// 可恢复错误且进程内重试也没救：不提交 offset，
			// 让重启后的重投来兜底，这里只能带错退出
			return errors.Wrapf(err, "processing %s@%d", topic, msg.Offset)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("commit offset failed")
		}
	}
}

func (c *Consumer) process(parentCtx context.Context, msg kafka.Message) error {
	ctx := ExtractTraceContext(parentCtx, msg.Headers)
	topic := c.reader.Config().Topic
	start := time.Now()

	var err error
	for attempt := 0; attempt < handleRetries; attempt++ {
		err = c.handle(ctx, msg)
		if err == nil {
			metrics.EventProcessing.WithLabelValues(topic, "ok").Observe(time.Since(start).Seconds())
			return nil
		}
		if c.isFatal(err) {
			// 重试无益的类别（聚合缺失、非法流转）：告警后提交，不再重投
			metrics.EventProcessing.WithLabelValues(topic, "rejected").Observe(time.Since(start).Seconds())
			logger.Ctx(ctx).Error().Err(err).
				Str("topic", topic).
				Str("key", string(msg.Key)).
				Msg("event permanently rejected")
			return nil
		}
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	metrics.EventProcessing.WithLabelValues(topic, "error").Observe(time.Since(start).Seconds())
	return err
}
