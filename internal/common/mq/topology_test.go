package mq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestTopology_Names(t *testing.T) {
	topo := Topology{Exchange: "commission", Queue: "commission.order_paid", RoutingKey: "order.paid"}
	assert.Equal(t, "commission.order_paid.retry.1", topo.RetryQueue(1))
	assert.Equal(t, "commission.order_paid.retry.2", topo.RetryQueue(2))
	assert.Equal(t, "commission.order_paid.dlq", topo.DeadLetterQueue())
}

func TestTopology_Backoff(t *testing.T) {
	topo := Topology{RetryBase: 5 * time.Second}
	assert.Equal(t, 5*time.Second, topo.Backoff(1))
	assert.Equal(t, 10*time.Second, topo.Backoff(2))
	assert.Equal(t, 20*time.Second, topo.Backoff(3))
	assert.Equal(t, 5*time.Second, topo.Backoff(0))
}

func TestPublishOptions(t *testing.T) {
	var p amqp.Publishing
	WithExpiration(1500 * time.Millisecond)(&p)
	WithHeader("x-attempt", 2)(&p)

	assert.Equal(t, "1500", p.Expiration)
	assert.Equal(t, 2, p.Headers["x-attempt"])
}
