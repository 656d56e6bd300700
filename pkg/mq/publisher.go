package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"taskmanager/pkg/circuitbreaker"
	"taskmanager/pkg/trace"
)

const publishTimeout = 2 * time.Second

type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	breaker *circuitbreaker.CircuitBreaker

	mu sync.Mutex
}

func NewPublisher(url string, breaker *circuitbreaker.CircuitBreaker) (*Publisher, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}

	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	}

	return &Publisher{
		conn:    conn,
		channel: ch,
		breaker: breaker,
	}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// IsConnected checks if the publisher connection is still alive
func (p *Publisher) IsConnected() bool {
	if p.conn == nil || p.channel == nil {
		return false
	}
	return !p.conn.IsClosed()
}

// Publish sends payload as JSON to the events exchange. The trace id in ctx,
// if any, travels in the message headers. While the breaker is open the call
// fails fast with circuitbreaker.ErrCircuitBreakerOpen.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", routingKey, err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	if traceID := trace.FromContext(ctx); traceID != "" {
		msg.Headers = amqp091.Table{"trace_id": traceID}
	}

	return p.breaker.Execute(func() error {
		if !p.IsConnected() {
			return fmt.Errorf("publisher connection closed")
		}

		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		p.mu.Lock()
		defer p.mu.Unlock()
		return p.channel.PublishWithContext(pubCtx, ExchangeName, routingKey, false, false, msg)
	})
}
