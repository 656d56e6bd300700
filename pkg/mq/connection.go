package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the topic exchange task events are published to.
const ExchangeName = "events"

const (
	connectionName = "taskmanager-api"
	heartbeat      = 10 * time.Second
)

// dial opens a named connection and one channel, and declares the durable
// events exchange on it. Nothing is left open on error.
func dial(url string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat:  heartbeat,
		Properties: amqp091.Table{"connection_name": connectionName},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(ExchangeName, amqp091.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err)
	}
	return conn, ch, nil
}
