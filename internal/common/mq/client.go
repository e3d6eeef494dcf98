// Package mq 封装 RabbitMQ 连接、发布与消费
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/dumeirei/referral-settlement/internal/common/logger"
)

// Publisher 消息发布接口，便于业务层替换为测试实现
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}, opts ...PublishOption) error
}

// PublishOption 发布选项
type PublishOption func(*amqp.Publishing)

// WithExpiration 设置单条消息 TTL
func WithExpiration(d time.Duration) PublishOption {
	return func(p *amqp.Publishing) {
		p.Expiration = strconv.FormatInt(d.Milliseconds(), 10)
	}
}

// WithHeader 设置消息头
func WithHeader(key string, value interface{}) PublishOption {
	return func(p *amqp.Publishing) {
		if p.Headers == nil {
			p.Headers = amqp.Table{}
		}
		p.Headers[key] = value
	}
}

// Client RabbitMQ 客户端，发布通道懒创建并在关闭后重建
type Client struct {
	conn *amqp.Connection

	pubMu sync.Mutex
	pubCh *amqp.Channel
}

// Dial 建立连接
func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rabbitmq: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close 关闭连接
func (c *Client) Close() error {
	c.pubMu.Lock()
	if c.pubCh != nil && !c.pubCh.IsClosed() {
		_ = c.pubCh.Close()
	}
	c.pubMu.Unlock()
	return c.conn.Close()
}

// IsClosed 连接是否已断开
func (c *Client) IsClosed() bool {
	return c.conn == nil || c.conn.IsClosed()
}

func (c *Client) publisherChannel() (*amqp.Channel, error) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	if c.pubCh != nil && !c.pubCh.IsClosed() {
		return c.pubCh, nil
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}
	c.pubCh = ch

	logger.Info("Publisher channel created", zap.String("component", "rabbitmq"))
	return ch, nil
}

// Publish 以 JSON 持久化消息发布
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, body interface{}, opts ...PublishOption) error {
	ch, err := c.publisherChannel()
	if err != nil {
		return err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}
	for _, opt := range opts {
		opt(&msg)
	}

	if err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// MessageHandler 消息处理函数。返回错误时消息会被重新入队，
// 业务级重试与死信由处理函数自行发布，处理完毕返回 nil
type MessageHandler func(ctx context.Context, body []byte) error

// ConsumeOptions 消费配置
type ConsumeOptions struct {
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 阻塞消费直到 ctx 取消或通道关闭
func (c *Client) Consume(ctx context.Context, opts ConsumeOptions) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(opts.Queue, opts.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Info("Started consuming messages",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel closed: %s", opts.Queue)
			}
			if err := opts.Handler(ctx, msg.Body); err != nil {
				logger.Error("Failed to process message",
					zap.String("queue", opts.Queue),
					zap.Error(err),
				)
				_ = msg.Nack(false, true)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}
