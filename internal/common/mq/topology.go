package mq

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology 一条业务队列及其重试、死信队列
//
//	exchange --routingKey--> Queue
//	"" --Queue.retry.N--> Queue.retry.N (TTL = base*2^(N-1)) --DLX--> exchange/routingKey
//	"" --Queue.dlq--> Queue.dlq
type Topology struct {
	Exchange    string
	Queue       string
	RoutingKey  string
	MaxAttempts int
	RetryBase   time.Duration
}

// RetryQueue 第 attempt 次失败后使用的延迟队列
func (t Topology) RetryQueue(attempt int) string {
	return fmt.Sprintf("%s.retry.%d", t.Queue, attempt)
}

// DeadLetterQueue 重试耗尽后的死信队列
func (t Topology) DeadLetterQueue() string {
	return t.Queue + ".dlq"
}

// Backoff 第 attempt 次失败后的等待时长：base, 2*base, 4*base...
func (t Topology) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return t.RetryBase << (attempt - 1)
}

// Declare 声明交换机、主队列、各级重试队列与死信队列
func (c *Client) Declare(t Topology) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.Exchange, err)
	}

	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", t.Queue, err)
	}
	if err := ch.QueueBind(t.Queue, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", t.Queue, err)
	}

	for attempt := 1; attempt < t.MaxAttempts; attempt++ {
		args := amqp.Table{
			"x-message-ttl":             t.Backoff(attempt).Milliseconds(),
			"x-dead-letter-exchange":    t.Exchange,
			"x-dead-letter-routing-key": t.RoutingKey,
		}
		if _, err := ch.QueueDeclare(t.RetryQueue(attempt), true, false, false, false, args); err != nil {
			return fmt.Errorf("declare retry queue %s: %w", t.RetryQueue(attempt), err)
		}
	}

	if _, err := ch.QueueDeclare(t.DeadLetterQueue(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead letter queue %s: %w", t.DeadLetterQueue(), err)
	}
	return nil
}
