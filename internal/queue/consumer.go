package queue

import (
	"context"

	"go.uber.org/zap"

	"github.com/dumeirei/referral-settlement/internal/common/logger"
	"github.com/dumeirei/referral-settlement/internal/common/metrics"
	"github.com/dumeirei/referral-settlement/internal/common/mq"
	"github.com/dumeirei/referral-settlement/internal/service/distribution"
)

// CommissionCalculator 订单支付后的佣金计算
type CommissionCalculator interface {
	Calculate(ctx context.Context, orderID int64) (*distribution.CalculateResult, error)
}

// CommissionCanceller 订单退款后的佣金取消
type CommissionCanceller interface {
	CancelByOrderID(ctx context.Context, orderID int64) (int, error)
}

// Consumer 绑定一条队列拓扑的消费者，失败消息按拓扑重试或进入死信
type Consumer struct {
	topology mq.Topology
	producer *Producer
	process  func(ctx context.Context, msg *Message) error
}

// deadLetterBody 无法解析的原始消息
type deadLetterBody struct {
	Raw string `json:"raw"`
}

// NewOrderPaidConsumer 订单支付消费者
func NewOrderPaidConsumer(t mq.Topology, producer *Producer, calculator CommissionCalculator) *Consumer {
	return &Consumer{
		topology: t,
		producer: producer,
		process: func(ctx context.Context, msg *Message) error {
			result, err := calculator.Calculate(ctx, msg.OrderID)
			if err != nil {
				return err
			}
			if result.SkipReason != "" {
				logger.Info("Order commission skipped",
					logger.OrderID(msg.OrderID),
					logger.Reason(result.SkipReason),
				)
			}
			return nil
		},
	}
}

// NewOrderRefundedConsumer 订单退款消费者
func NewOrderRefundedConsumer(t mq.Topology, producer *Producer, canceller CommissionCanceller) *Consumer {
	return &Consumer{
		topology: t,
		producer: producer,
		process: func(ctx context.Context, msg *Message) error {
			n, err := canceller.CancelByOrderID(ctx, msg.OrderID)
			if err != nil {
				return err
			}
			logger.Info("Order commissions cancelled", logger.OrderID(msg.OrderID), zap.Int("count", n))
			return nil
		},
	}
}

// Topology 消费者使用的队列拓扑
func (c *Consumer) Topology() mq.Topology {
	return c.topology
}

// Options 生成消费参数
func (c *Consumer) Options(consumerTag string, prefetch int) mq.ConsumeOptions {
	return mq.ConsumeOptions{
		Queue:         c.topology.Queue,
		ConsumerTag:   consumerTag,
		PrefetchCount: prefetch,
		Handler:       c.Handle,
	}
}

// Handle 处理一条消息。
// 处理失败时重新发布到重试或死信队列后返回 nil；只有重新发布也失败时才返回错误，由连接层重新入队。
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	queue := c.topology.Queue
	m := metrics.GetMetrics()

	msg, decodeErr := decodeMessage(body)
	if decodeErr != nil {
		logger.Error("Dropping invalid message to dead letter queue",
			zap.String("queue", queue),
			zap.ByteString("body", body),
			zap.Error(decodeErr),
		)
		if err := c.producer.DeadLetter(ctx, c.topology, &deadLetterBody{Raw: string(body)}, decodeErr); err != nil {
			m.RecordQueueMessage(queue, "error")
			return err
		}
		m.RecordQueueMessage(queue, RouteDeadLetter.String())
		return nil
	}

	err := c.process(ctx, msg)
	route := Decide(msg.Attempt, c.topology.MaxAttempts, err, true)

	switch route {
	case RouteRetry:
		logger.Warn("Message failed, scheduling retry",
			zap.String("queue", queue),
			logger.OrderID(msg.OrderID),
			zap.Int("attempt", msg.Attempt),
			zap.Duration("backoff", c.topology.Backoff(msg.Attempt)),
			zap.Error(err),
		)
		if pubErr := c.producer.Retry(ctx, c.topology, msg); pubErr != nil {
			m.RecordQueueMessage(queue, "error")
			return pubErr
		}
	case RouteDeadLetter:
		logger.Error("Message retries exhausted, moved to dead letter queue",
			zap.String("queue", queue),
			logger.OrderID(msg.OrderID),
			zap.Int("attempt", msg.Attempt),
			zap.Error(err),
		)
		if pubErr := c.producer.DeadLetter(ctx, c.topology, msg, err); pubErr != nil {
			m.RecordQueueMessage(queue, "error")
			return pubErr
		}
	}

	m.RecordQueueMessage(queue, route.String())
	return nil
}
