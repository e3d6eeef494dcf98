// Package queue 订单事件消费：支付后计算佣金，退款后取消佣金
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/dumeirei/referral-settlement/internal/common/config"
	"github.com/dumeirei/referral-settlement/internal/common/mq"
)

// 队列与路由键
const (
	QueueOrderPaid          = "commission.order_paid"
	QueueOrderRefunded      = "commission.order_refunded"
	RoutingKeyOrderPaid     = "order.paid"
	RoutingKeyOrderRefunded = "order.refunded"
)

// Message 订单事件消息，Attempt 从 1 开始
type Message struct {
	OrderID  int64 `json:"order_id"`
	TenantID int64 `json:"tenant_id"`
	Attempt  int   `json:"attempt"`
}

// decodeMessage 解析消息体，缺少订单号视为无效消息
func decodeMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("invalid message body: %w", err)
	}
	if msg.OrderID <= 0 {
		return nil, fmt.Errorf("invalid message: order_id is required")
	}
	if msg.Attempt < 1 {
		msg.Attempt = 1
	}
	return &msg, nil
}

// OrderPaidTopology 订单支付事件队列拓扑
func OrderPaidTopology(cfg *config.RabbitMQConfig) mq.Topology {
	return topology(cfg, QueueOrderPaid, RoutingKeyOrderPaid)
}

// OrderRefundedTopology 订单退款事件队列拓扑
func OrderRefundedTopology(cfg *config.RabbitMQConfig) mq.Topology {
	return topology(cfg, QueueOrderRefunded, RoutingKeyOrderRefunded)
}

func topology(cfg *config.RabbitMQConfig, queue, routingKey string) mq.Topology {
	return mq.Topology{
		Exchange:    cfg.Exchange,
		Queue:       queue,
		RoutingKey:  routingKey,
		MaxAttempts: cfg.MaxAttempts,
		RetryBase:   cfg.RetryBase(),
	}
}
