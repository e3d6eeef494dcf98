package queue

import (
	"context"

	"github.com/dumeirei/referral-settlement/internal/common/mq"
)

// HeaderLastError 进入死信队列时记录的最后一次错误
const HeaderLastError = "x-last-error"

// Producer 订单事件生产者
type Producer struct {
	publisher mq.Publisher
	exchange  string
}

// NewProducer 创建生产者
func NewProducer(publisher mq.Publisher, exchange string) *Producer {
	return &Producer{publisher: publisher, exchange: exchange}
}

// PublishOrderPaid 投递订单支付事件
func (p *Producer) PublishOrderPaid(ctx context.Context, orderID, tenantID int64) error {
	return p.publisher.Publish(ctx, p.exchange, RoutingKeyOrderPaid, &Message{OrderID: orderID, TenantID: tenantID, Attempt: 1})
}

// PublishOrderRefunded 投递订单退款事件
func (p *Producer) PublishOrderRefunded(ctx context.Context, orderID, tenantID int64) error {
	return p.publisher.Publish(ctx, p.exchange, RoutingKeyOrderRefunded, &Message{OrderID: orderID, TenantID: tenantID, Attempt: 1})
}

// Retry 把第 msg.Attempt 次失败的消息投入对应的延迟队列，到期后回到主队列
func (p *Producer) Retry(ctx context.Context, t mq.Topology, msg *Message) error {
	next := *msg
	next.Attempt = msg.Attempt + 1
	return p.publisher.Publish(ctx, "", t.RetryQueue(msg.Attempt), &next)
}

// DeadLetter 投入死信队列
func (p *Producer) DeadLetter(ctx context.Context, t mq.Topology, body interface{}, cause error) error {
	var opts []mq.PublishOption
	if cause != nil {
		opts = append(opts, mq.WithHeader(HeaderLastError, cause.Error()))
	}
	return p.publisher.Publish(ctx, "", t.DeadLetterQueue(), body, opts...)
}
